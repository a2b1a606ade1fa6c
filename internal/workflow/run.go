package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ifgstack/internal/bundle"
	"ifgstack/internal/catalog"
	"ifgstack/internal/cleanup"
	"ifgstack/internal/filter"
	"ifgstack/internal/identity"
	"ifgstack/internal/ledger"
	"ifgstack/internal/logging"
	"ifgstack/internal/metrics"
	"ifgstack/internal/render"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
	"ifgstack/internal/stageexec"
)

// stalePartialAge is how long a failed run's staging directory is kept for
// inspection before a later run in the same workdir removes it.
const stalePartialAge = 24 * time.Hour

// Outcome summarizes a finished run.
type Outcome struct {
	RunID    string
	Workdir  string
	Identity string
	// Skipped is set when the identity was already cataloged.
	Skipped   bool
	Result    *filter.Result
	Bundle    *bundle.Bundle
	Published []string
	Cleanup   cleanup.Result
}

// Run processes the request descriptor at requestPath inside workdir. An
// already-cataloged identity ends the run successfully with Skipped set and
// nothing written. Any other failure leaves the diagnostics files in workdir.
func (p *Pipeline) Run(ctx context.Context, requestPath, workdir string) (*Outcome, error) {
	workdir, err := filepath.Abs(workdir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfig, "workflow", "resolve workdir", workdir, err)
	}
	if !filepath.IsAbs(requestPath) {
		requestPath = filepath.Join(workdir, requestPath)
	}

	lock, err := acquireWorkdirLock(p.cfg.LockDir(), workdir)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.logger, "workflow"))
	started := time.Now()

	p.ledgerStart(ctx, logger, runID, requestPath, workdir)
	logger.Info("stack run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("request", requestPath),
		logging.String("workdir", workdir),
	)

	outcome := &Outcome{RunID: runID, Workdir: workdir}
	reporter := cleanup.Reporter{Dir: workdir}
	runErr := reporter.Guard(func() error {
		return p.execute(ctx, logger, requestPath, workdir, outcome)
	})
	p.finish(ctx, logger, outcome, runErr, time.Since(started))
	if runErr != nil {
		return outcome, runErr
	}
	return outcome, nil
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, requestPath, workdir string, outcome *Outcome) error {
	if p.preflight {
		if err := p.checkEnvironment(logger, workdir); err != nil {
			return err
		}
	}

	req, err := request.Load(requestPath)
	if err != nil {
		return err
	}

	result, err := p.adapter(workdir).Run(ctx, req)
	if err != nil {
		return err
	}
	outcome.Result = result
	p.metrics.SetIfgCount(result.Len())

	id, err := identity.Generator{Prefix: p.cfg.Bundle.IDPrefix}.Generate(identity.ParamsFrom(req, result))
	if err != nil {
		return err
	}
	idText := id.String()
	outcome.Identity = idText
	ctx = services.WithIdentity(ctx, idText)
	logger = logger.With(logging.String(logging.FieldIdentity, idText))
	if p.ledger != nil {
		if err := p.ledger.SetIdentity(ctx, outcome.RunID, idText, result.Len()); err != nil {
			logger.Warn("ledger identity update failed", logging.Error(err))
		}
	}
	logger.Info("product identity derived",
		logging.String(logging.FieldEventType, "identity"),
		logging.Int("ifg_count", result.Len()),
		logging.Int("candidates", result.Candidates),
	)

	gate := catalog.NewGate(p.catalog, p.logger)
	if check := gate.Check(ctx, idText); check.Exists {
		outcome.Skipped = true
		logger.Info("product already cataloged; nothing to do",
			logging.String(logging.FieldEventType, "run_skipped"),
		)
		return nil
	}

	b, err := bundle.Open(workdir, idText)
	if err != nil {
		return err
	}
	if b != nil {
		logging.WarnWithContext(logger, "resuming uncataloged bundle from an earlier run", "bundle_resumed",
			logging.String("dir", b.Dir),
			logging.String(logging.FieldImpact, "stages skipped; bundle is published and registered as found"),
		)
	} else {
		b, err = p.build(ctx, logger, workdir, id, req, result, outcome.RunID)
		if err != nil {
			return err
		}
	}
	outcome.Bundle = b

	if p.publisher != nil {
		keys, err := p.publisher.Publish(ctx, b.Dir, idText)
		if err != nil {
			return err
		}
		outcome.Published = keys
	}

	if err := gate.Register(ctx, catalog.Dataset{
		ID:        idText,
		Version:   b.Dataset.Version,
		Label:     b.Dataset.Label,
		Location:  b.Dataset.Footprint(),
		StartTime: b.Dataset.StartTime,
		EndTime:   b.Dataset.EndTime,
		Path:      b.Dir,
	}); err != nil {
		return err
	}

	outcome.Cleanup = cleanup.Success(ctx, workdir, req.Products, result.Keys(), p.logger)
	return nil
}

// build runs the stages for a new identity and assembles the bundle.
func (p *Pipeline) build(ctx context.Context, logger *slog.Logger, workdir string, id identity.Identity, req *request.StackRequest, result *filter.Result, runID string) (*bundle.Bundle, error) {
	if p.preflight {
		if err := p.checkProcessing(ctx, logger); err != nil {
			return nil, err
		}
	}
	cleanup.CleanStalePartials(ctx, workdir, stalePartialAge, p.logger)

	if _, err := filter.WriteSnapshot(workdir, result); err != nil {
		logging.WarnWithContext(logger, "filter snapshot not written", "snapshot_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "bundle will not include filt_info.json"),
		)
	}

	if _, err := render.NewRenderer(p.templates, p.logger).Render(workdir, req, result); err != nil {
		return nil, err
	}

	executor := stageexec.New(stageexec.Options{
		Logger:   p.logger,
		Timeout:  p.cfg.StageTimeout(),
		Observer: stageObserver{ctx: ctx, runID: runID, metrics: p.metrics, ledger: p.ledger, logger: logger},
	})
	if err := executor.Run(ctx, workdir, p.stages); err != nil {
		return nil, err
	}

	return p.assembler().Assemble(ctx, bundle.Input{
		ID:      id.String(),
		Version: id.Version,
		Workdir: workdir,
		Request: req,
		Result:  result,
	})
}

func (p *Pipeline) ledgerStart(ctx context.Context, logger *slog.Logger, runID, requestPath, workdir string) {
	if p.ledger == nil {
		return
	}
	if n, err := p.ledger.FailInterrupted(ctx, workdir); err != nil {
		logger.Warn("ledger recovery failed", logging.Error(err))
	} else if n > 0 {
		logger.Info("marked interrupted runs as failed", logging.Int64("runs", n))
	}
	if _, err := p.ledger.Start(ctx, runID, requestPath, workdir); err != nil {
		logging.WarnWithContext(logger, "ledger start failed", "ledger_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will be missing from history"),
		)
	}
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, outcome *Outcome, runErr error, elapsed time.Duration) {
	status, metric := ledger.StatusSucceeded, metrics.OutcomeSucceeded
	message := ""
	switch {
	case runErr != nil:
		status, metric = ledger.StatusFailed, metrics.OutcomeFailed
		message = runErr.Error()
	case outcome.Skipped:
		status, metric = ledger.StatusSkipped, metrics.OutcomeSkipped
	}

	if p.ledger != nil {
		// The run context may already be cancelled; the ledger row must still close.
		if err := p.ledger.Finish(context.WithoutCancel(ctx), outcome.RunID, status, message); err != nil {
			logger.Warn("ledger finish failed", logging.Error(err))
		}
	}
	p.metrics.RunFinished(metric, elapsed)
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.TextfilePath); err != nil {
		logging.WarnWithContext(logger, "metrics textfile not written", "metrics_failed",
			logging.String("path", p.cfg.Metrics.TextfilePath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "node exporter will report stale run metrics"),
		)
	}

	if runErr != nil {
		var stageErr *stageexec.StageFailureError
		attrs := []logging.Attr{
			logging.Error(runErr),
			logging.String(logging.FieldErrorKind, services.Kind(runErr)),
			logging.Duration("duration", elapsed.Round(time.Millisecond)),
		}
		if errors.As(runErr, &stageErr) {
			attrs = append(attrs, logging.String(logging.FieldStage, stageErr.Name))
		}
		if bundle.IsFatal(runErr) && outcome.Identity != "" {
			attrs = append(attrs, logging.String("staging_dir", bundle.StagingDir(outcome.Workdir, outcome.Identity)))
		}
		logging.ErrorWithContext(logger, "stack run failed", "run_failed", attrs...)
		return
	}
	logger.Info("stack run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("status", string(status)),
		logging.Duration("duration", elapsed.Round(time.Millisecond)),
	)
}
