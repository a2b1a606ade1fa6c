package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ifgstack/internal/cleanup"
	"ifgstack/internal/services"
	"ifgstack/internal/workflow"
)

// reportSetupFailure leaves the run diagnostics in the working directory for
// failures that happen before the pipeline can report them itself.
func (c *commandContext) reportSetupFailure(err error) error {
	workdir, wdErr := c.workdir()
	if wdErr != nil {
		return errors.Join(err, wdErr)
	}
	if reportErr := (cleanup.Reporter{Dir: workdir}).Report(err); reportErr != nil {
		return errors.Join(err, reportErr)
	}
	return fmt.Errorf("%w (details in %s)", err, cleanup.ErrorFile)
}

func runStack(cmd *cobra.Command, ctx *commandContext, requestPath string, skipPreflight bool) error {
	workdir, err := ctx.workdir()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	pipeline, closeAll, err := ctx.newPipeline(workflow.WithPreflight(!skipPreflight))
	if err != nil {
		return ctx.reportSetupFailure(err)
	}
	defer closeAll()

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outcome, err := pipeline.Run(signalCtx, requestPath, workdir)
	if err != nil {
		if errors.Is(err, services.ErrBusy) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w (details in %s)", err, cleanup.ErrorFile)
	}

	out := cmd.OutOrStdout()
	if outcome.Skipped {
		fmt.Fprintf(out, "%s already exists in the catalog; nothing to do\n", outcome.Identity)
		return nil
	}
	fmt.Fprintf(out, "Created %s (%d interferograms, %d timesteps)\n",
		outcome.Bundle.Dir, outcome.Result.Len(), len(outcome.Bundle.Timesteps))
	for _, w := range outcome.Bundle.Warnings {
		fmt.Fprintf(out, "  warning: %s: %v\n", w.Step, w.Err)
	}
	if len(outcome.Published) > 0 {
		fmt.Fprintf(out, "Published %d objects\n", len(outcome.Published))
	}
	if n := len(outcome.Cleanup.Errors); n > 0 {
		fmt.Fprintf(out, "  warning: %d inputs could not be removed\n", n)
	}
	return nil
}
