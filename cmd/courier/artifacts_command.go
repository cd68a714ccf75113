package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/ledger"
)

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts",
		Short: "List artifacts staged for consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var artifacts []ledger.ArtifactInfo
			if err := client.getJSON(cmd.Context(), "/api/artifacts", &artifacts); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(artifacts) == 0 {
				fmt.Fprintln(out, "No artifacts staged")
				return nil
			}

			rows := make([][]string, 0, len(artifacts))
			for _, artifact := range artifacts {
				rows = append(rows, []string{artifact.Hash, artifact.Name, artifact.Path})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Hash", "Name", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
