package queue

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestBusyRetryRetriesLockedDatabase(t *testing.T) {
	calls := 0
	value, err := busyRetry(context.Background(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return 42, nil
	})
	if err != nil || value != 42 {
		t.Fatalf("expected success after busy retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestBusyRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	_, err := busyRetry(context.Background(), func() (*Entry, error) {
		calls++
		return nil, sql.ErrNoRows
	})
	if !errors.Is(err, sql.ErrNoRows) || calls != 1 {
		t.Fatalf("expected one call returning ErrNoRows, got %d calls (%v)", calls, err)
	}
}

func TestBusyRetryGivesUpAfterLimit(t *testing.T) {
	calls := 0
	_, err := busyRetry(context.Background(), func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != busyRetryAttempts {
		t.Fatalf("expected failure after %d calls, got %d (%v)", busyRetryAttempts, calls, err)
	}
}
