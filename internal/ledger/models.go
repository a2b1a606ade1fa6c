package ledger

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSkipped   Status = "skipped"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the run has finished.
func (s Status) IsTerminal() bool {
	return s == StatusSkipped || s == StatusSucceeded || s == StatusFailed
}

// Run is one invocation of the pipeline.
type Run struct {
	ID          string
	RequestPath string
	Workdir     string
	Identity    string
	Status      Status
	Stage       string
	IfgCount    int
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns the elapsed run time, or zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
