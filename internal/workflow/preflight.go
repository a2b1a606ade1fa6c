package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ifgstack/internal/logging"
	"ifgstack/internal/preflight"
	"ifgstack/internal/services"
)

// checkEnvironment runs the checks a skipped run also depends on.
func (p *Pipeline) checkEnvironment(logger *slog.Logger, workdir string) error {
	return reportPreflight(logger, "environment", preflight.Environment(p.cfg, workdir))
}

// checkProcessing runs the stage and bundle tooling checks. The catalog is
// left to the gate, which tolerates outages.
func (p *Pipeline) checkProcessing(ctx context.Context, logger *slog.Logger) error {
	return reportPreflight(logger, "processing", preflight.Processing(ctx, p.cfg, p.stages))
}

func reportPreflight(logger *slog.Logger, phase string, results []preflight.Result) error {
	var failures []string
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("phase", phase),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("phase", phase),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "run `ifgstack check` and fix the reported issue"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}

	if len(failures) > 0 {
		return services.Wrap(services.ErrConfig, "workflow", "preflight "+phase, strings.Join(failures, "; "), nil)
	}
	return nil
}
