package transfer

import (
	"context"
	"log/slog"
	"sync"

	"courier/internal/config"
	"courier/internal/logging"
)

// Gate serializes bulk transfer work behind a single exclusivity lease and
// executes individual transfers through the external synchronization tool.
// The lease guarantees at most one batch runs at a time; it says nothing
// about ordering between callers denied the lease.
type Gate struct {
	sem    chan struct{}
	logger *slog.Logger

	binary     string
	sshHost    string
	sshKey     string
	speedLimit int
	dryRun     bool
}

// Lease grants exclusive permission to run a transfer batch. Release is safe
// to call more than once.
type Lease struct {
	release func()
	once    sync.Once
}

// Release returns the lease to the gate.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(l.release)
}

// NewGate constructs a transfer gate from configuration.
func NewGate(cfg *config.Config, logger *slog.Logger) *Gate {
	return &Gate{
		sem:        make(chan struct{}, 1),
		logger:     logging.WithComponent(logger, "transfer-gate"),
		binary:     cfg.RsyncBinary(),
		sshHost:    cfg.Seedbox.SSHHost,
		sshKey:     cfg.Seedbox.SSHKey,
		speedLimit: cfg.Transfer.SpeedLimitKBps,
		dryRun:     cfg.Transfer.DryRun,
	}
}

// TryAcquire attempts to take the lease without blocking. The second return
// value is false when another batch already holds it; callers are expected to
// skip their run rather than queue.
func (g *Gate) TryAcquire() (*Lease, bool) {
	select {
	case g.sem <- struct{}{}:
		return g.newLease(), true
	default:
		return nil, false
	}
}

// Acquire blocks until the lease is free or the context is cancelled.
func (g *Gate) Acquire(ctx context.Context) (*Lease, error) {
	select {
	case g.sem <- struct{}{}:
		return g.newLease(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gate) newLease() *Lease {
	return &Lease{release: func() { <-g.sem }}
}
