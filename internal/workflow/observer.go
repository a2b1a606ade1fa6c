package workflow

import (
	"context"
	"log/slog"
	"time"

	"ifgstack/internal/ledger"
	"ifgstack/internal/logging"
	"ifgstack/internal/metrics"
)

// stageObserver forwards stage timings to the metrics recorder and records
// the last finished stage in the ledger.
type stageObserver struct {
	ctx     context.Context
	runID   string
	metrics *metrics.Recorder
	ledger  *ledger.Store
	logger  *slog.Logger
}

func (o stageObserver) StageFinished(name string, duration time.Duration, err error) {
	if o.metrics != nil {
		o.metrics.StageFinished(name, duration, err)
	}
	if o.ledger == nil {
		return
	}
	if updateErr := o.ledger.SetStage(o.ctx, o.runID, name); updateErr != nil {
		o.logger.Debug("ledger stage update failed", logging.String("stage", name), logging.Error(updateErr))
	}
}
