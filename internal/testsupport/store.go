package testsupport

import (
	"context"
	"testing"

	"courier/internal/config"
	"courier/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedTask upserts a single task for tests using the provided store.
func SeedTask(t testing.TB, store *ledger.Store, task ledger.Task) {
	t.Helper()

	if err := store.UpdateTaskInfo(context.Background(), []ledger.Task{task}); err != nil {
		t.Fatalf("store.UpdateTaskInfo: %v", err)
	}
}
