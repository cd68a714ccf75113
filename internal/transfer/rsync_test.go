package transfer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"courier/internal/logging"
	"courier/internal/testsupport"
	"courier/internal/transfer"
)

func readArgsFile(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read args file: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestTransferBuildsExpectedCommand(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "rsync.args")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedRsync(argsFile, 0))
	cfg.Transfer.SpeedLimitKBps = 2048
	gate := transfer.NewGate(cfg, logging.NewNop())

	dest := filepath.Join(cfg.Paths.StorageDir, "h1")
	if err := gate.Transfer(context.Background(), "/downloads/show", dest); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	lines := readArgsFile(t, argsFile)
	if len(lines) != 1 {
		t.Fatalf("expected one rsync invocation, got %d", len(lines))
	}
	line := lines[0]
	for _, want := range []string{
		"--delete",
		"--partial",
		"--recursive",
		"-s",
		"--bwlimit 2048",
		"-o StrictHostKeyChecking=no",
		"-o BatchMode=yes",
		"seed.test:/downloads/show " + dest,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("rsync args missing %q: %s", want, line)
		}
	}
	if !strings.Contains(line, "ssh -i "+cfg.Seedbox.SSHKey) {
		t.Fatalf("rsync args missing ssh identity: %s", line)
	}
}

func TestTransferOmitsBwlimitWhenUnset(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "rsync.args")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedRsync(argsFile, 0))
	gate := transfer.NewGate(cfg, logging.NewNop())

	if err := gate.Transfer(context.Background(), "/downloads/show", t.TempDir()); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if strings.Contains(readArgsFile(t, argsFile)[0], "--bwlimit") {
		t.Fatal("bwlimit should be absent when speed limit is zero")
	}
}

func TestTransferFailureCapturesStderr(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "rsync.args")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedRsync(argsFile, 23))
	gate := transfer.NewGate(cfg, logging.NewNop())

	dest := filepath.Join(cfg.Paths.StorageDir, "h1")
	err := gate.Transfer(context.Background(), "/downloads/show", dest)
	if err == nil {
		t.Fatal("expected transfer failure")
	}
	var terr *transfer.TransferError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransferError, got %T: %v", err, err)
	}
	if terr.Dest != dest {
		t.Fatalf("unexpected dest: %q", terr.Dest)
	}
	if !strings.Contains(terr.Reason, "simulated failure") {
		t.Fatalf("stderr not captured: %q", terr.Reason)
	}
}

func TestTransferFinishesInFlightCopyAfterCancel(t *testing.T) {
	base := t.TempDir()
	marker := filepath.Join(base, "rsync.done")
	cfg := testsupport.NewConfig(t)
	testsupport.StubSlowRsync(t, base, marker, 500*time.Millisecond)
	gate := transfer.NewGate(cfg, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if err := gate.Transfer(ctx, "/downloads/show", t.TempDir()); err != nil {
		t.Fatalf("cancellation must not kill a running copy: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("copy did not run to completion: %v", err)
	}
}

func TestTransferDryRunSkipsExecution(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "rsync.args")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedRsync(argsFile, 1), testsupport.WithDryRun())
	gate := transfer.NewGate(cfg, logging.NewNop())

	if err := gate.Transfer(context.Background(), "/downloads/show", t.TempDir()); err != nil {
		t.Fatalf("dry-run transfer: %v", err)
	}
	if _, err := os.Stat(argsFile); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run must not invoke rsync, stat err = %v", err)
	}
}
