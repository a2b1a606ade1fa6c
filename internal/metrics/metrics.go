// Package metrics records per-run gauges and writes them in the node
// exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ifgstack"

// Outcome labels for the run outcome gauge.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

var outcomes = []string{OutcomeSucceeded, OutcomeSkipped, OutcomeFailed}

// Recorder collects the metrics of a single run on a private registry.
type Recorder struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.GaugeVec
	stageFailed   *prometheus.GaugeVec
	runDuration   prometheus.Gauge
	runOutcome    *prometheus.GaugeVec
	ifgCount      prometheus.Gauge
	finishedAt    prometheus.Gauge
}

// NewRecorder constructs a Recorder with every metric registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each processing stage in the last run.",
		}, []string{"stage"}),
		stageFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_failed",
			Help:      "1 when the stage failed in the last run.",
		}, []string{"stage"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		runOutcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_outcome",
			Help:      "1 for the outcome of the last run, 0 otherwise.",
		}, []string{"outcome"}),
		ifgCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ifg_count",
			Help:      "Interferograms retained by the filter in the last run.",
		}),
		finishedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.registry.MustRegister(r.stageDuration, r.stageFailed, r.runDuration, r.runOutcome, r.ifgCount, r.finishedAt)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// StageFinished records one stage execution.
func (r *Recorder) StageFinished(name string, duration time.Duration, err error) {
	r.stageDuration.WithLabelValues(name).Set(duration.Seconds())
	failed := 0.0
	if err != nil {
		failed = 1
	}
	r.stageFailed.WithLabelValues(name).Set(failed)
}

// SetIfgCount records the retained interferogram count.
func (r *Recorder) SetIfgCount(n int) {
	r.ifgCount.Set(float64(n))
}

// RunFinished records the run outcome and duration.
func (r *Recorder) RunFinished(outcome string, duration time.Duration) {
	for _, o := range outcomes {
		value := 0.0
		if o == outcome {
			value = 1
		}
		r.runOutcome.WithLabelValues(o).Set(value)
	}
	r.runDuration.Set(duration.Seconds())
	r.finishedAt.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes the metrics to path atomically. An empty path is a
// no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
