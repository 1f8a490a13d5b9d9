package testsupport

import (
	"context"
	"testing"

	"crate/internal/config"
	"crate/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEntry creates a pending entry for tests using the provided store.
func NewEntry(t testing.TB, store *queue.Store, artist, title, catalogText string) *queue.Entry {
	t.Helper()

	entry, err := store.NewEntry(context.Background(), artist, title, catalogText)
	if err != nil {
		t.Fatalf("store.NewEntry: %v", err)
	}
	return entry
}

// MustUpdate persists entry changes or fails the test.
func MustUpdate(t testing.TB, store *queue.Store, entry *queue.Entry) {
	t.Helper()

	if err := store.Update(context.Background(), entry); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
}
