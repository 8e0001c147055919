package testsupport

import (
	"context"
	"testing"

	"loom/internal/config"
	"loom/internal/queue"
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

// NewJob creates a pending job for tests using the provided store. A single
// placeholder source document is attached when none are given.
func NewJob(t testing.TB, store *queue.Store, title string, sources ...queue.SourceText) *queue.Job {
	t.Helper()

	if len(sources) == 0 {
		sources = []queue.SourceText{{Name: "notes.txt", Content: "Test source material for " + title + "."}}
	}
	job, err := store.NewJob(context.Background(), title, "educational", 300, "", sources)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
