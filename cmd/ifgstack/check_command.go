package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ifgstack/internal/preflight"
	"ifgstack/internal/workflow"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, external binaries and the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir, err := ctx.workdir()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat := ctx.openCatalog()
			if cat != nil {
				defer cat.Close()
			}

			results := preflight.RunAll(cmd.Context(), cfg, workdir, workflow.StandardStages(cfg), cat)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			writeTable(cmd.OutOrStdout(), []string{"Check", "Status", "Detail"}, rows, nil)

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
