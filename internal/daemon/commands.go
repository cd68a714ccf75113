package daemon

import (
	"errors"
	"strings"

	"courier/internal/logging"
)

// Command names a job the orchestrator knows how to run.
type Command string

const (
	CommandPull     Command = "pull"
	CommandTransfer Command = "transfer"
	CommandReport   Command = "report"
)

// commandBacklog bounds the number of queued commands. Triggers beyond the
// backlog are rejected instead of piling up behind a slow transfer.
const commandBacklog = 16

var (
	// ErrCommandBacklog indicates the command queue is full.
	ErrCommandBacklog = errors.New("command backlog full")
	// ErrNotRunning indicates the daemon has not been started.
	ErrNotRunning = errors.New("daemon not running")
)

// ParseCommand maps an external trigger name onto a Command.
func ParseCommand(name string) (Command, bool) {
	switch Command(strings.ToLower(strings.TrimSpace(name))) {
	case CommandPull:
		return CommandPull, true
	case CommandTransfer:
		return CommandTransfer, true
	case CommandReport:
		return CommandReport, true
	default:
		return "", false
	}
}

// Enqueue submits a command for asynchronous execution. It never blocks;
// when the backlog is full the caller gets ErrCommandBacklog and decides
// whether to retry.
func (d *Daemon) Enqueue(cmd Command) error {
	if !d.running.Load() {
		return ErrNotRunning
	}
	// Once shutdown is raised the channel owner may have closed it, so no
	// further sends are attempted.
	select {
	case <-d.ctx.Done():
		return ErrNotRunning
	default:
	}
	select {
	case d.commands <- cmd:
		return nil
	default:
		return ErrCommandBacklog
	}
}

func (d *Daemon) consumeCommands() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case cmd, ok := <-d.commands:
			if !ok {
				// A closed command source means the daemon is done.
				d.logger.Info("command channel closed, shutting down")
				d.shutdown()
				return
			}
			if err := d.RunCommand(d.ctx, cmd); err != nil {
				d.logger.Error("command failed",
					logging.String("command", string(cmd)),
					logging.Error(err),
				)
			}
		}
	}
}
