package cleanup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Diagnostic file names written to the working directory on failure.
const (
	ErrorFile     = "_alt_error.txt"
	TracebackFile = "_alt_traceback.txt"
)

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Reporter persists failure diagnostics in a directory.
type Reporter struct {
	Dir string
}

// Guard runs fn, converting a panic into a *PanicError. Any error is
// reported before it is returned.
func (r Reporter) Guard(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
		if err != nil {
			if writeErr := r.Report(err); writeErr != nil {
				err = errors.Join(err, writeErr)
			}
		}
	}()
	return fn()
}

// Report writes the error message and its traceback.
func (r Reporter) Report(err error) error {
	if err == nil {
		return nil
	}
	if werr := os.WriteFile(filepath.Join(r.Dir, ErrorFile), []byte(err.Error()+"\n"), 0o644); werr != nil {
		return fmt.Errorf("write %s: %w", ErrorFile, werr)
	}
	if werr := os.WriteFile(filepath.Join(r.Dir, TracebackFile), []byte(Traceback(err)), 0o644); werr != nil {
		return fmt.Errorf("write %s: %w", TracebackFile, werr)
	}
	return nil
}

// Traceback renders the error chain, innermost last, followed by the panic
// stack when the failure was a panic or the current goroutine stack
// otherwise.
func Traceback(err error) string {
	var b strings.Builder
	b.WriteString("Error chain (outermost first):\n")
	writeChain(&b, err, 0)

	var panicErr *PanicError
	b.WriteString("\n")
	if errors.As(err, &panicErr) {
		b.WriteString("Panic stack:\n")
		b.Write(panicErr.Stack)
	} else {
		b.WriteString("Reported from:\n")
		b.Write(debug.Stack())
	}
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func writeChain(b *strings.Builder, err error, depth int) {
	if err == nil || depth > 32 {
		return
	}
	fmt.Fprintf(b, "%s%T: %s\n", strings.Repeat("  ", depth), err, err.Error())
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			writeChain(b, inner, depth+1)
		}
	case interface{ Unwrap() error }:
		writeChain(b, u.Unwrap(), depth+1)
	}
}
