package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ifgstack/internal/logging"
	"ifgstack/internal/services"
	"ifgstack/internal/testsupport"
)

func TestSuccessRemovesProductsAndPairLinks(t *testing.T) {
	workdir := t.TempDir()
	products := []string{"S1-IFG_A", "S1-IFG_B"}
	for _, p := range products {
		testsupport.WriteFile(t, filepath.Join(workdir, p, "merged", "filt_topophase.unw"), "data")
	}
	if err := os.Symlink("S1-IFG_A", filepath.Join(workdir, "20180101_20180113")); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(workdir, "20180113_20180125"), "regular file")

	result := Success(context.Background(), workdir, products, []string{"20180101_20180113", "20180113_20180125", "20180125_20180206"}, logging.NewNop())

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 3 {
		t.Fatalf("expected 3 removals, got %v", result.Removed)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("expected 2 skipped entries, got %v", result.Skipped)
	}
	for _, p := range products {
		testsupport.AssertMissing(t, filepath.Join(workdir, p))
	}
	testsupport.AssertMissing(t, filepath.Join(workdir, "20180101_20180113"))
	testsupport.AssertExists(t, filepath.Join(workdir, "20180113_20180125"))
}

func TestCleanStalePartials(t *testing.T) {
	workdir := t.TempDir()
	old := filepath.Join(workdir, ".S1-TN42-old.partial")
	recent := filepath.Join(workdir, ".S1-TN42-new.partial")
	other := filepath.Join(workdir, "S1-IFG_A")
	for _, dir := range []string{old, recent, other} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{old, other} {
		if err := os.Chtimes(dir, past, past); err != nil {
			t.Fatal(err)
		}
	}

	result := CleanStalePartials(context.Background(), workdir, 24*time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("expected only %s removed, got %v", old, result.Removed)
	}
	testsupport.AssertExists(t, recent)
	testsupport.AssertExists(t, other)
}

func TestCleanStalePartialsInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStalePartials(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestGuardReportsError(t *testing.T) {
	dir := t.TempDir()
	cause := services.Wrap(services.ErrAllFilteredOut, "filter", "normalize", "All products in the stack were filtered out", nil)
	err := Reporter{Dir: dir}.Guard(func() error { return fmt.Errorf("run: %w", cause) })
	if !errors.Is(err, services.ErrAllFilteredOut) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}

	msg, readErr := os.ReadFile(filepath.Join(dir, ErrorFile))
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(msg) != err.Error()+"\n" {
		t.Fatalf("unexpected error file %q", msg)
	}
	trace, readErr := os.ReadFile(filepath.Join(dir, TracebackFile))
	if readErr != nil {
		t.Fatal(readErr)
	}
	if !strings.Contains(string(trace), "filtered out") || !strings.Contains(string(trace), "Reported from:") {
		t.Fatalf("traceback missing chain or stack:\n%s", trace)
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	dir := t.TempDir()
	err := Reporter{Dir: dir}.Guard(func() error { panic("index out of range") })
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	trace, readErr := os.ReadFile(filepath.Join(dir, TracebackFile))
	if readErr != nil {
		t.Fatal(readErr)
	}
	if !strings.Contains(string(trace), "Panic stack:") {
		t.Fatalf("traceback missing panic stack:\n%s", trace)
	}
}

func TestGuardSuccessWritesNothing(t *testing.T) {
	dir := t.TempDir()
	if err := (Reporter{Dir: dir}).Guard(func() error { return nil }); err != nil {
		t.Fatalf("Guard: %v", err)
	}
	testsupport.AssertMissing(t, filepath.Join(dir, ErrorFile))
	testsupport.AssertMissing(t, filepath.Join(dir, TracebackFile))
}
