package stageexec

import (
	"errors"
	"fmt"
	"os/exec"

	"ifgstack/internal/services"
)

// StageFailureError reports the stage that stopped the sequence.
// It matches services.ErrStageFailure with errors.Is.
type StageFailureError struct {
	// Index is the 1-based position of the stage in the sequence.
	Index int
	Name  string
	// ExitCode is the process exit status, or -1 when the stage did not
	// exit normally or failed its artifact contract.
	ExitCode int
	Err      error
}

func (e *StageFailureError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: stage %d (%s) exited with status %d: %v", services.ErrStageFailure, e.Index, e.Name, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: stage %d (%s): %v", services.ErrStageFailure, e.Index, e.Name, e.Err)
}

func (e *StageFailureError) Unwrap() []error {
	return []error{services.ErrStageFailure, e.Err}
}

func newStageFailure(index int, name string, err error) *StageFailureError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &StageFailureError{Index: index, Name: name, ExitCode: code, Err: err}
}
