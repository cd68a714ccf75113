package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newJobCommands exposes one trigger subcommand per daemon job.
func newJobCommands(ctx *commandContext) []*cobra.Command {
	jobs := []struct {
		name  string
		short string
	}{
		{"pull", "Refresh the task ledger from the seed host"},
		{"transfer", "Copy completed torrents into relay storage"},
		{"report", "Send a notification listing ready torrents and artifacts"},
	}

	commands := make([]*cobra.Command, 0, len(jobs))
	for _, job := range jobs {
		name := job.name
		commands = append(commands, &cobra.Command{
			Use:   name,
			Short: job.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := ctx.client()
				if err != nil {
					return err
				}
				var resp struct {
					Job    string `json:"job"`
					Status string `json:"status"`
				}
				if err := client.postJSON(cmd.Context(), "/api/jobs/"+name, &resp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s job %s\n", resp.Job, resp.Status)
				return nil
			},
		})
	}
	return commands
}
