package stage

import (
	"context"
)

// Stage is one step of the fixed processing sequence.
type Stage interface {
	// Name is a stable snake_case identifier.
	Name() string
	// Inputs lists working-directory paths that must exist before Run.
	Inputs() []string
	// Outputs lists working-directory paths that must exist after Run.
	Outputs() []string
	// Run blocks until the step finishes. workdir is the run's working directory.
	Run(ctx context.Context, workdir string) error
}

// Health reports whether a stage could start right now.
type Health struct {
	Name  string
	Ready bool
	// Detail is the resolved executable when ready, the reason otherwise.
	Detail string
}

// HealthChecker is implemented by stages that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}
