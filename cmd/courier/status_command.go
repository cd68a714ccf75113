package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type daemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	LedgerDBPath string         `json:"ledger_db_path"`
	LockFilePath string         `json:"lock_file_path"`
	Tasks        map[string]int `json:"tasks"`
}

// statusOrder fixes the row order of the task table to the lifecycle order.
var statusOrder = []string{"tracked", "torrent_ready", "artifact_ready", "archived"}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var status daemonStatus
			if err := client.getJSON(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			running := "stopped"
			kind := statusError
			if status.Running {
				running = "running"
				kind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", kind, running, colorize))
			fmt.Fprintln(out, renderStatusLine("PID", statusInfo, strconv.Itoa(status.PID), colorize))
			fmt.Fprintln(out, renderStatusLine("Ledger", statusInfo, status.LedgerDBPath, colorize))
			fmt.Fprintln(out)

			rows := make([][]string, 0, len(statusOrder))
			for _, name := range statusOrder {
				rows = append(rows, []string{name, strconv.Itoa(status.Tasks[name])})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Tasks"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
