package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"courier/internal/logging"
)

// TransferError reports a failed invocation of the external synchronization
// tool, carrying the captured standard-error text.
type TransferError struct {
	Dest   string
	Reason string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer to %s failed: %s", e.Dest, e.Reason)
}

// Transfer mirrors source on the seed host into dest on the relay: recursive,
// delete-extraneous, partial-transfer tolerant. In dry-run mode the command is
// logged but not executed. The caller is expected to hold the gate's lease.
func (g *Gate) Transfer(ctx context.Context, source, dest string) error {
	args := g.rsyncArgs(source, dest)
	g.logger.Info("transferring content",
		logging.String("source", source),
		logging.String("dest", dest),
		logging.Bool("dry_run", g.dryRun),
	)
	g.logger.Debug("transfer command", logging.String("command", g.binary+" "+strings.Join(args, " ")))

	if g.dryRun {
		return nil
	}

	// Cancellation gates new transfers, never a copy already running; the
	// command must be left to finish or fail on its own.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), g.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		return &TransferError{Dest: dest, Reason: reason}
	}

	g.logger.Info("artifact available", logging.String("dest", dest))
	return nil
}

func (g *Gate) rsyncArgs(source, dest string) []string {
	// -s keeps remote paths with spaces intact without manual escaping.
	args := []string{"--delete", "--partial", "--recursive", "-s"}
	if g.speedLimit > 0 {
		args = append(args, "--bwlimit", strconv.Itoa(g.speedLimit))
	}
	args = append(args, "--rsh", sshCommand(g.sshKey))
	args = append(args, g.sshHost+":"+source, dest)
	return args
}

// sshCommand builds the non-interactive remote shell invocation. Host-key
// prompts are disabled because the daemon runs unattended.
func sshCommand(keyPath string) string {
	parts := []string{"ssh"}
	if keyPath != "" {
		parts = append(parts, "-i", shellQuote(keyPath))
	}
	parts = append(parts, "-o", "StrictHostKeyChecking=no", "-o", "BatchMode=yes")
	return strings.Join(parts, " ")
}

func shellQuote(value string) string {
	if !strings.ContainsAny(value, " \t'\"") {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
