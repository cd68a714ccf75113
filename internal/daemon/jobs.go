package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"courier/internal/ledger"
	"courier/internal/logging"
)

// RunCommand executes a single job synchronously. The consumer goroutine
// funnels queued commands here; tests and the CLI surface may call it
// directly.
func (d *Daemon) RunCommand(ctx context.Context, cmd Command) error {
	runLogger := d.logger.With(
		logging.String(logging.FieldJob, string(cmd)),
		logging.String(logging.FieldRunID, uuid.NewString()),
	)

	switch cmd {
	case CommandPull:
		return d.runPullJob(ctx, runLogger)
	case CommandTransfer:
		return d.runTransferJob(ctx, runLogger)
	case CommandReport:
		return d.runReportJob(ctx, runLogger)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runPullJob refreshes the ledger from the seed host. Status regressions are
// rejected inside the store, so a stale snapshot can never undo progress.
func (d *Daemon) runPullJob(ctx context.Context, logger *slog.Logger) error {
	watermark, err := d.store.EarliestImportDate(ctx)
	if err != nil {
		return fmt.Errorf("load import watermark: %w", err)
	}

	tasks, err := d.source.QueryTasks(ctx, watermark)
	if err != nil {
		d.notifyError(ctx, err, "pull job")
		return fmt.Errorf("query seed host: %w", err)
	}

	if err := d.store.UpdateTaskInfo(ctx, tasks); err != nil {
		d.notifyError(ctx, err, "pull job")
		return fmt.Errorf("update ledger: %w", err)
	}

	logger.Info("pull job complete", logging.Int("tasks", len(tasks)))
	return nil
}

// runTransferJob copies every completed torrent into relay storage. The gate
// lease makes overlapping batches impossible; a run that cannot take the
// lease is skipped rather than queued. The first failed copy aborts the
// batch so partial relay state stays small.
func (d *Daemon) runTransferJob(ctx context.Context, logger *slog.Logger) error {
	lease, ok := d.gate.TryAcquire()
	if !ok {
		logger.Info("transfer already in progress, skipping run")
		return nil
	}
	defer lease.Release()

	tasks, err := d.store.TasksWithStatus(ctx, ledger.StatusTorrentReady)
	if err != nil {
		return fmt.Errorf("list transfer candidates: %w", err)
	}
	if len(tasks) == 0 {
		logger.Info("no completed torrents to transfer")
		return nil
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			logger.Info("shutdown requested, leaving remaining torrents for the next run")
			return err
		}

		taskLogger := logger.With(logging.String(logging.FieldHash, task.Hash))

		if err := d.store.PrepareArtifactStorage(task.Hash); err != nil {
			d.notifyError(ctx, err, "transfer job")
			return err
		}

		dest := d.store.ArtifactPath(task.Hash)
		if err := d.gate.Transfer(ctx, task.ContentPath, dest); err != nil {
			taskLogger.Error("transfer failed", logging.Error(err))
			d.notifyError(ctx, err, "transfer job")
			return err
		}

		if d.cfg.Transfer.DryRun {
			taskLogger.Info("dry run, leaving task status untouched")
			continue
		}

		// The copy finished, so its status commit must not be dropped
		// by a shutdown raised mid-copy.
		if err := d.store.MarkArtifactReady(context.WithoutCancel(ctx), task.Hash); err != nil {
			d.notifyError(ctx, err, "transfer job")
			return err
		}
		taskLogger.Info("artifact staged", logging.String("dest", dest))

		if err := d.notifier.NotifyArtifactTransferred(ctx, task.Name); err != nil {
			taskLogger.Warn("transfer notification failed", logging.Error(err))
		}
	}

	logger.Info("transfer job complete", logging.Int("tasks", len(tasks)))
	return nil
}

// runReportJob pushes a summary of seeding torrents and staged artifacts.
func (d *Daemon) runReportJob(ctx context.Context, logger *slog.Logger) error {
	torrents, err := d.store.TasksWithStatus(ctx, ledger.StatusTorrentReady)
	if err != nil {
		return fmt.Errorf("list ready torrents: %w", err)
	}
	artifacts, err := d.store.ReadyArtifacts(ctx)
	if err != nil {
		return fmt.Errorf("list ready artifacts: %w", err)
	}

	if err := d.notifier.ReportAvailable(ctx, torrents, artifacts); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	logger.Info("report sent",
		logging.Int("torrents", len(torrents)),
		logging.Int("artifacts", len(artifacts)),
	)
	return nil
}

func (d *Daemon) notifyError(ctx context.Context, err error, label string) {
	if notifyErr := d.notifier.NotifyError(ctx, err, label); notifyErr != nil {
		d.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
}
