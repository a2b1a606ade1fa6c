package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var workdirFlag string
	var skipPreflight bool

	ctx := newCommandContext(&configFlag, &logLevelFlag, &workdirFlag)

	rootCmd := &cobra.Command{
		Use:   "ifgstack [flags] <request.json>",
		Short: "Build a filtered interferogram time-series stack",
		Long: "Filters the interferograms named in the request descriptor, derives the product\n" +
			"identity, skips work already in the catalog and otherwise runs the four stack\n" +
			"processing stages and assembles the bundle in the working directory.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			if _, err := ctx.ensureConfig(); err != nil {
				// Only a processing run owes the working directory a report.
				if !cmd.HasParent() {
					return ctx.reportSetupFailure(err)
				}
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStack(cmd, ctx, args[0], skipPreflight)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&workdirFlag, "workdir", "w", "", "Working directory holding the products (default: current directory)")
	rootCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not verify binaries and directories before running")

	rootCmd.AddCommand(newIdentifyCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
