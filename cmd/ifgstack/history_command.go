package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ifgstack/internal/identity"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				duration := ""
				if !run.FinishedAt.IsZero() {
					duration = run.Duration().Round(time.Second).String()
				}
				track, window := identityColumns(run.Identity)
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					string(run.Status),
					run.Identity,
					track,
					window,
					strconv.Itoa(run.IfgCount),
					run.Stage,
					duration,
					truncate(run.Error, 60),
				})
			}
			writeTable(out, []string{"Started", "Status", "Identity", "Track", "Window", "Ifgs", "Last Stage", "Duration", "Error"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft})
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

// identityColumns splits a recorded identity into its track and acquisition
// window. Runs that never derived an identity render blank.
func identityColumns(value string) (string, string) {
	if value == "" {
		return "", ""
	}
	id, err := identity.Parse(value)
	if err != nil {
		return "", ""
	}
	return fmt.Sprintf("TN%d", id.Track), id.Start.Format("2006-01-02") + ".." + id.End.Format("2006-01-02")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
