package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"courier/internal/config"
	"courier/internal/ledger"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/seedbox"
	"courier/internal/transfer"
)

// Daemon coordinates the recurring jobs, the command queue, and the handoff
// API, and enforces single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	source   seedbox.TaskSource
	gate     *transfer.Gate
	notifier notifications.Service

	commands chan Command
	cron     *cron.Cron
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	shutdown func()
	wg       sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LedgerDBPath string
	LockFilePath string
	Tasks        map[ledger.Status]int
}

// New constructs a daemon with initialized dependencies. commands is the
// control channel the daemon drains; the owner closing it shuts the daemon
// down. A nil channel makes the daemon allocate and own its queue.
func New(cfg *config.Config, store *ledger.Store, source seedbox.TaskSource, gate *transfer.Gate, notifier notifications.Service, commands chan Command, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || source == nil || gate == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, task source, gate, and logger")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if commands == nil {
		commands = make(chan Command, commandBacklog)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "courierd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		source:   source,
		gate:     gate,
		notifier: notifier,
		commands: commands,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, starts the schedules, the command consumer,
// and the handoff API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another courier daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.shutdown = sync.OnceFunc(d.cancel)

	if err := d.startSchedules(); err != nil {
		d.teardown()
		return err
	}

	d.running.Store(true)
	d.wg.Add(1)
	go d.consumeCommands()

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.Stop()
		return err
	}
	d.api = api
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.Stop()
			return err
		}
	}

	d.logger.Info("courier daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()),
	)
	return nil
}

func (d *Daemon) startSchedules() error {
	scheduler := cron.New(cron.WithSeconds())
	entries := []struct {
		expr string
		cmd  Command
	}{
		{d.cfg.Schedule.PullCron, CommandPull},
		{d.cfg.Schedule.TransferCron, CommandTransfer},
	}
	for _, entry := range entries {
		cmd := entry.cmd
		if _, err := scheduler.AddFunc(entry.expr, func() {
			if err := d.Enqueue(cmd); err != nil {
				d.logger.Warn("scheduled trigger dropped",
					logging.String("command", string(cmd)),
					logging.Error(err),
				)
			}
		}); err != nil {
			return fmt.Errorf("schedule %s job: %w", cmd, err)
		}
	}
	scheduler.Start()
	d.cron = scheduler
	return nil
}

// Stop stops background processing and releases the daemon lock. Safe to
// call multiple times.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}

	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	d.teardown()
	d.wg.Wait()
	d.logger.Info("courier daemon stopped")
}

func (d *Daemon) teardown() {
	if d.cron != nil {
		d.cron.Stop()
		d.cron = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr reports the bound handoff listener address, empty when the API is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	dbPath := filepath.Join(d.cfg.Paths.StorageDir, "courier.db")
	if d.cfg.Paths.Stateless {
		dbPath = ":memory:"
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LedgerDBPath: dbPath,
		LockFilePath: d.lockPath,
		Tasks:        stats,
	}, nil
}
