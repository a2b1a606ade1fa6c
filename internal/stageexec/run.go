package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ifgstack/internal/logging"
	"ifgstack/internal/services"
	"ifgstack/internal/stage"
)

// Observer receives per-stage timing.
type Observer interface {
	StageFinished(name string, duration time.Duration, err error)
}

// Options controls stage execution.
type Options struct {
	Logger *slog.Logger
	// Timeout bounds each stage; zero waits indefinitely.
	Timeout  time.Duration
	Observer Observer
}

// Executor runs stages in order.
type Executor struct {
	logger   *slog.Logger
	timeout  time.Duration
	observer Observer
}

// New constructs an Executor.
func New(opts Options) *Executor {
	return &Executor{
		logger:   logging.NewComponentLogger(opts.Logger, "stageexec"),
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}
}

// Run executes stages in order inside workdir. The first failing stage stops
// the sequence with a *StageFailureError; nothing is retried.
func (e *Executor) Run(ctx context.Context, workdir string, stages []stage.Stage) error {
	for i, st := range stages {
		if err := e.runOne(ctx, workdir, i+1, len(stages), st); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runOne(ctx context.Context, workdir string, index, total int, st stage.Stage) error {
	name := st.Name()
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, e.logger)

	if missing := missingPaths(workdir, st.Inputs()); len(missing) > 0 {
		err := newStageFailure(index, name, fmt.Errorf("missing inputs: %s", strings.Join(missing, ", ")))
		e.logFailure(logger, err)
		e.observe(name, 0, err)
		return err
	}

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("label", Label(name)),
		logging.Int("index", index),
		logging.Int("total", total),
	)

	runCtx := stageCtx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(stageCtx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	runErr := st.Run(runCtx, workdir)
	elapsed := time.Since(started)
	if runErr == nil {
		if missing := missingPaths(workdir, st.Outputs()); len(missing) > 0 {
			runErr = fmt.Errorf("missing outputs: %s", strings.Join(missing, ", "))
		}
	} else if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		runErr = fmt.Errorf("timed out after %s: %w", e.timeout, runErr)
	}
	if runErr != nil {
		err := newStageFailure(index, name, runErr)
		e.logFailure(logger, err)
		e.observe(name, elapsed, err)
		return err
	}

	e.observe(name, elapsed, nil)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("label", Label(name)),
		logging.Duration("duration", elapsed.Round(time.Millisecond)),
	)
	return nil
}

func (e *Executor) logFailure(logger *slog.Logger, err *StageFailureError) {
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.Int("index", err.Index),
		logging.Int("exit_code", err.ExitCode),
		logging.Error(err.Err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldErrorHint, "inspect the stage output in the working directory; inputs were left in place"),
	)
}

func (e *Executor) observe(name string, d time.Duration, err error) {
	if e.observer != nil {
		e.observer.StageFinished(name, d, err)
	}
}

func missingPaths(workdir string, paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(workdir, p)); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}

var titleCaser = cases.Title(language.Und)

// Label converts a snake_case stage name to a display label.
func Label(name string) string {
	parts := strings.Fields(strings.ReplaceAll(name, "_", " "))
	return titleCaser.String(strings.Join(parts, " "))
}
