package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunFailsBeforeOpeningLedgerWithoutSeedHost(t *testing.T) {
	dir := t.TempDir()
	storageDir := filepath.Join(dir, "storage")
	path := filepath.Join(dir, "courier.toml")
	body := `
[paths]
storage_dir = "` + storageDir + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err := run(context.Background(), path, "")
	if err == nil || !strings.Contains(err.Error(), "seedbox") {
		t.Fatalf("expected seedbox construction failure, got %v", err)
	}

	// Startup aborts before the ledger is opened, so no database is created.
	if _, err := os.Stat(filepath.Join(storageDir, "courier.db")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ledger must not be opened after seedbox failure, stat err = %v", err)
	}
}
