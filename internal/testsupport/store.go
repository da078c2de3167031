package testsupport

import (
	"context"
	"testing"

	"scriber/internal/config"
	"scriber/internal/queue"
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

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, kind queue.SourceKind, source string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), kind, source, DefaultOptions())
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// DefaultOptions returns job options matching the config defaults.
func DefaultOptions() queue.Options {
	return queue.Options{
		Model:  "base",
		Format: "srt",
		Device: "auto",
	}
}
