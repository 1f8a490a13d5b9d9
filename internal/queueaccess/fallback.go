package queueaccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crate/internal/api"
	"crate/internal/digging"
)

// drainTimeout bounds how long Close waits for in-process lookups.
const drainTimeout = 30 * time.Second

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	// Remote is true when a running server answered.
	Remote bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// LocalService is an in-process queue service plus the cleanup for its store.
type LocalService struct {
	Service *digging.Service
	Close   func() error
}

// OpenWithFallback tries the server first, then falls back to direct store
// access when nothing answers. Other server errors are returned as-is.
func OpenWithFallback(
	ctx context.Context,
	dial func() (*api.Client, error),
	openLocal func() (LocalService, error),
) (Session, error) {
	if dial != nil {
		client, err := dial()
		if err == nil {
			_, err = client.Health(ctx)
		}
		switch {
		case err == nil:
			return Session{Access: NewHTTPAccess(client), Remote: true}, nil
		case !api.IsAPIUnavailable(err):
			return Session{}, fmt.Errorf("contact server: %w", err)
		}
	}

	if openLocal == nil {
		return Session{}, errors.New("open queue store: no store opener configured")
	}
	local, err := openLocal()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewServiceAccess(local.Service),
		close: func() error {
			waitCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			waitErr := local.Service.Wait(waitCtx)
			var closeErr error
			if local.Close != nil {
				closeErr = local.Close()
			}
			return errors.Join(waitErr, closeErr)
		},
	}, nil
}
