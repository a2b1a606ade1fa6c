package bundle

import (
	"errors"
	"fmt"
)

// Severity classifies a step result.
type Severity int

const (
	// Warning outcomes are logged and assembly continues.
	Warning Severity = iota + 1
	// Fatal outcomes abort assembly.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Outcome is the failed result of one assembly step.
type Outcome struct {
	Step     string
	Severity Severity
	Err      error
}

func (o Outcome) Error() string {
	return fmt.Sprintf("%s (%s): %v", o.Step, o.Severity, o.Err)
}

func (o Outcome) Unwrap() error { return o.Err }

func fatal(step string, err error) *Outcome {
	if err == nil {
		return nil
	}
	return &Outcome{Step: step, Severity: Fatal, Err: err}
}

func warning(step string, err error) *Outcome {
	if err == nil {
		return nil
	}
	return &Outcome{Step: step, Severity: Warning, Err: err}
}

// outcomes folds step results, stopping at the first fatal one.
type outcomes struct {
	warnings []Outcome
	fatal    *Outcome
}

// add records o and reports whether assembly may continue.
func (f *outcomes) add(o *Outcome) bool {
	if o == nil {
		return true
	}
	if o.Severity == Fatal {
		f.fatal = o
		return false
	}
	f.warnings = append(f.warnings, *o)
	return true
}

func (f *outcomes) err() error {
	if f.fatal == nil {
		return nil
	}
	return *f.fatal
}

// IsFatal reports whether err carries a fatal Outcome.
func IsFatal(err error) bool {
	var o Outcome
	return errors.As(err, &o) && o.Severity == Fatal
}
