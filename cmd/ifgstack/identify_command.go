package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "identify <request.json>",
		Short: "Filter a request and print its product identity without processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir, err := ctx.workdir()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			pipeline, closeAll, err := ctx.newPipeline()
			if err != nil {
				return err
			}
			defer closeAll()

			ident, err := pipeline.Identify(cmd.Context(), args[0], workdir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Identity:  %s\n", ident.Identity)
			fmt.Fprintf(out, "Cataloged: %s\n", yesNo(ident.Exists))
			fmt.Fprintf(out, "Retained:  %d of %d candidates\n\n", ident.Result.Len(), ident.Result.Candidates)

			rows := make([][]string, 0, ident.Result.Len())
			for _, key := range ident.Result.Keys() {
				rec := ident.Result.Records[key]
				rows = append(rows, []string{
					key,
					rec.Product,
					strconv.FormatFloat(rec.Bperp, 'f', 2, 64),
					strconv.FormatFloat(ident.Result.Coverage[key], 'f', 3, 64),
				})
			}
			writeTable(out, []string{"Date Pair", "Product", "Bperp", "Coverage"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight})
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
