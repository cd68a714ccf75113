package ledger_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"courier/internal/ledger"
	"courier/internal/testsupport"
)

func TestUpdateTaskInfoStatusIsMonotonic(t *testing.T) {
	sequences := [][]ledger.Status{
		{ledger.StatusTracked, ledger.StatusTorrentReady},
		{ledger.StatusTorrentReady, ledger.StatusTracked},
		{ledger.StatusTracked, ledger.StatusTorrentReady, ledger.StatusTracked, ledger.StatusTorrentReady},
		{ledger.StatusArtifactReady, ledger.StatusTracked, ledger.StatusTorrentReady},
	}

	for _, sequence := range sequences {
		cfg := testsupport.NewConfig(t)
		store := testsupport.MustOpenStore(t, cfg)
		ctx := context.Background()

		want := sequence[0]
		for _, status := range sequence {
			err := store.UpdateTaskInfo(ctx, []ledger.Task{{
				Hash:        "h1",
				Name:        "item-" + status.String(),
				Status:      status,
				ContentPath: "/downloads/item",
			}})
			if err != nil {
				t.Fatalf("UpdateTaskInfo(%v): %v", status, err)
			}
			if want.Before(status) {
				want = status
			}
		}

		task, err := store.GetTask(ctx, "h1")
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if task == nil {
			t.Fatal("expected task to exist")
		}
		if task.Status != want {
			t.Fatalf("sequence %v: got status %v want %v", sequence, task.Status, want)
		}
		// Name follows the winning status, not the last write.
		if task.Name != "item-"+want.String() {
			t.Fatalf("sequence %v: stale name %q", sequence, task.Name)
		}
	}
}

func TestUpdateTaskInfoRejectsLowerStatusSilently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTask(t, store, ledger.Task{Hash: "h1", Name: "done", Status: ledger.StatusTorrentReady, ContentPath: "/d/one"})

	// A stale discovery update must not error and must not change anything.
	err := store.UpdateTaskInfo(ctx, []ledger.Task{{Hash: "h1", Name: "stale", Status: ledger.StatusTracked, ContentPath: "/d/stale"}})
	if err != nil {
		t.Fatalf("UpdateTaskInfo: %v", err)
	}

	task, err := store.GetTask(ctx, "h1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != ledger.StatusTorrentReady || task.Name != "done" || task.ContentPath != "/d/one" {
		t.Fatalf("stale update applied: %+v", task)
	}
}

func TestEarliestImportDateIsStable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	first, err := store.EarliestImportDate(ctx)
	if err != nil {
		t.Fatalf("EarliestImportDate: %v", err)
	}
	if first.Before(before) {
		t.Fatalf("watermark %v predates test start %v", first, before)
	}

	second, err := store.EarliestImportDate(ctx)
	if err != nil {
		t.Fatalf("EarliestImportDate second call: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("watermark changed between calls: %v then %v", first, second)
	}
}

func TestMarkArtifactReadyRequiresTorrentReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTask(t, store, ledger.Task{Hash: "h1", Name: "a", Status: ledger.StatusTracked, ContentPath: "/d/a"})
	testsupport.SeedTask(t, store, ledger.Task{Hash: "h2", Name: "b", Status: ledger.StatusTorrentReady, ContentPath: "/d/b"})

	if err := store.MarkArtifactReady(ctx, "h1"); err != nil {
		t.Fatalf("MarkArtifactReady tracked: %v", err)
	}
	if err := store.MarkArtifactReady(ctx, "h2"); err != nil {
		t.Fatalf("MarkArtifactReady ready: %v", err)
	}
	if err := store.MarkArtifactReady(ctx, "missing"); err != nil {
		t.Fatalf("MarkArtifactReady missing: %v", err)
	}

	stillTracked, _ := store.GetTask(ctx, "h1")
	if stillTracked.Status != ledger.StatusTracked {
		t.Fatalf("tracked task moved to %v", stillTracked.Status)
	}
	promoted, _ := store.GetTask(ctx, "h2")
	if promoted.Status != ledger.StatusArtifactReady {
		t.Fatalf("expected artifact_ready, got %v", promoted.Status)
	}
}

func TestReadyArtifactsProjectsStoragePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTask(t, store, ledger.Task{Hash: "h1", Name: "show", Status: ledger.StatusArtifactReady, ContentPath: "/d/show"})
	testsupport.SeedTask(t, store, ledger.Task{Hash: "h2", Name: "pending", Status: ledger.StatusTorrentReady, ContentPath: "/d/p"})

	artifacts, err := store.ReadyArtifacts(ctx)
	if err != nil {
		t.Fatalf("ReadyArtifacts: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	want := filepath.Join(cfg.Paths.StorageDir, "h1")
	if artifacts[0].Path != want {
		t.Fatalf("unexpected path: got %q want %q", artifacts[0].Path, want)
	}
	if artifacts[0].Name != "show" {
		t.Fatalf("unexpected name: %q", artifacts[0].Name)
	}
}

func TestFinalizeArtifactLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTask(t, store, ledger.Task{Hash: "h1", Name: "a", Status: ledger.StatusArtifactReady, ContentPath: "/d/a"})
	if err := store.PrepareArtifactStorage("h1"); err != nil {
		t.Fatalf("PrepareArtifactStorage: %v", err)
	}
	dir := store.ArtifactPath("h1")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected artifact dir: %v", err)
	}

	if err := store.FinalizeArtifact(ctx, "h1"); err != nil {
		t.Fatalf("FinalizeArtifact: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected artifact dir removed, stat err = %v", err)
	}
	task, _ := store.GetTask(ctx, "h1")
	if task.Status != ledger.StatusArchived {
		t.Fatalf("expected archived, got %v", task.Status)
	}

	// Second confirm is a state conflict, not a repeat deletion.
	if err := store.FinalizeArtifact(ctx, "h1"); !errors.Is(err, ledger.ErrAlreadyArchived) {
		t.Fatalf("expected ErrAlreadyArchived, got %v", err)
	}
}

func TestFinalizeArtifactUnknownHash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := store.FinalizeArtifact(context.Background(), "unknown"); !errors.Is(err, ledger.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestFinalizeArtifactBeforeStagingReportsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTask(t, store, ledger.Task{Hash: "h1", Name: "a", Status: ledger.StatusTorrentReady, ContentPath: "/d/a"})

	if err := store.FinalizeArtifact(ctx, "h1"); !errors.Is(err, ledger.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for unstaged task, got %v", err)
	}
	task, _ := store.GetTask(ctx, "h1")
	if task.Status != ledger.StatusTorrentReady {
		t.Fatalf("status mutated to %v", task.Status)
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedTask(t, store, ledger.Task{Hash: "h1", Status: ledger.StatusTracked, Name: "a", ContentPath: "/a"})
	testsupport.SeedTask(t, store, ledger.Task{Hash: "h2", Status: ledger.StatusTracked, Name: "b", ContentPath: "/b"})
	testsupport.SeedTask(t, store, ledger.Task{Hash: "h3", Status: ledger.StatusArchived, Name: "c", ContentPath: "/c"})

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[ledger.StatusTracked] != 2 || stats[ledger.StatusArchived] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestStatelessStoreKeepsStateAcrossCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStateless())
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTask(t, store, ledger.Task{Hash: "h1", Status: ledger.StatusTracked, Name: "a", ContentPath: "/a"})
	task, err := store.GetTask(ctx, "h1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task == nil {
		t.Fatal("in-memory store lost the task between calls")
	}
}
