package bundle_test

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/disintegration/imaging"

	"ifgstack/internal/bundle"
	"ifgstack/internal/logging"
	"ifgstack/internal/services"
	"ifgstack/internal/testsupport"
	"ifgstack/internal/timeaxis"
)

const testID = "S1-TN42-20180101T040030Z-20180125T040030Z-29665-v0.1"

var fixedDates = timeaxis.ReaderFunc(func(context.Context, string) ([]int64, error) {
	return []int64{736695, 736707, 736719, 736731}, nil
})

func newInput(t *testing.T) bundle.Input {
	t.Helper()
	req, result := testsupport.SampleInputs(t, 3)
	workdir := t.TempDir()
	testsupport.SeedArtifacts(t, workdir)
	return bundle.Input{ID: testID, Version: "v0.1", Workdir: workdir, Request: req, Result: result}
}

func newAssembler(networkPlot bool) *bundle.Assembler {
	return bundle.NewAssembler(bundle.Options{
		TimeAxis:    fixedDates,
		NetworkPlot: networkPlot,
		Logger:      logging.NewNop(),
	})
}

func TestAssembleProducesCompleteBundle(t *testing.T) {
	in := newInput(t)
	b, err := newAssembler(true).Assemble(context.Background(), in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if b.Dir != filepath.Join(in.Workdir, testID) {
		t.Fatalf("unexpected bundle dir %s", b.Dir)
	}
	if len(b.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", b.Warnings)
	}
	if len(b.Timesteps) != 4 || b.Timesteps[0] != "2018-01-01T00:00:00" {
		t.Fatalf("unexpected timesteps %v", b.Timesteps)
	}

	entries := testsupport.ListDir(t, b.Dir)
	for _, want := range []string{
		"RAW-STACK.h5.gz", "PROC-STACK.h5.gz",
		bundle.BrowseImage, bundle.BrowseThumbnail, bundle.BaselineNetwork,
		"ifg_001.png", "ifg_002.png",
		testID + ".context.json", testID + ".met.json", testID + ".dataset.json",
		"filt_info.json", "data.xml", "example.rsc", "ifg.list",
		"prepdataxml.py", "prepsbasxml.py", "sbas.xml", "userfn.py",
	} {
		if !slices.Contains(entries, want) {
			t.Errorf("bundle missing %s (have %v)", want, entries)
		}
	}
	testsupport.AssertMissing(t, bundle.StagingDir(in.Workdir, testID))
	testsupport.AssertMissing(t, filepath.Join(in.Workdir, "sbas.xml"))
	testsupport.AssertMissing(t, filepath.Join(in.Workdir, "Figs", "Igrams", "ifg_001.png"))
	if left := testsupport.ListDir(t, filepath.Join(in.Workdir, "Stack")); len(left) != 0 {
		t.Fatalf("stack directory not emptied: %v", left)
	}

	f, err := os.Open(filepath.Join(b.Dir, "PROC-STACK.h5.gz"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil || string(data) != "processed stack" {
		t.Fatalf("unexpected decompressed content %q err=%v", data, err)
	}

	thumb, err := imaging.Open(filepath.Join(b.Dir, bundle.BrowseThumbnail))
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	if bounds := thumb.Bounds(); bounds.Dx() > 250 || bounds.Dy() > 250 {
		t.Fatalf("thumbnail too large: %v", bounds)
	}

	contextCopy, err := os.ReadFile(filepath.Join(b.Dir, testID+".context.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(contextCopy) != testsupport.SampleRequestJSON {
		t.Fatalf("context copy differs from request descriptor:\n%s", contextCopy)
	}
}

func TestAssembleMissingArtifactLeavesNoBundle(t *testing.T) {
	in := newInput(t)
	if err := os.Remove(filepath.Join(in.Workdir, "sbas.xml")); err != nil {
		t.Fatal(err)
	}
	_, err := newAssembler(false).Assemble(context.Background(), in)
	if !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
	if !bundle.IsFatal(err) {
		t.Fatalf("expected fatal outcome in %v", err)
	}
	testsupport.AssertMissing(t, filepath.Join(in.Workdir, testID))
	testsupport.AssertExists(t, bundle.StagingDir(in.Workdir, testID))
}

func TestAssembleRefusesExistingBundle(t *testing.T) {
	in := newInput(t)
	if err := os.Mkdir(filepath.Join(in.Workdir, testID), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := newAssembler(false).Assemble(context.Background(), in); !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
	testsupport.AssertExists(t, filepath.Join(in.Workdir, "Stack", "PROC-STACK.h5"))
}

func TestAssembleThumbnailFailureIsWarning(t *testing.T) {
	in := newInput(t)
	for _, name := range []string{"ifg_001.png", "ifg_002.png"} {
		testsupport.WriteFile(t, filepath.Join(in.Workdir, "Figs", "Igrams", name), "not an image")
	}
	b, err := newAssembler(false).Assemble(context.Background(), in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(b.Warnings) != 1 || b.Warnings[0].Step != "browse thumbnail" || b.Warnings[0].Severity != bundle.Warning {
		t.Fatalf("expected one thumbnail warning, got %v", b.Warnings)
	}
	testsupport.AssertExists(t, filepath.Join(b.Dir, bundle.BrowseImage))
	testsupport.AssertMissing(t, filepath.Join(b.Dir, bundle.BrowseThumbnail))
}

func TestAssembleWithoutFiguresIsFatal(t *testing.T) {
	in := newInput(t)
	if err := os.RemoveAll(filepath.Join(in.Workdir, "Figs")); err != nil {
		t.Fatal(err)
	}
	if _, err := newAssembler(false).Assemble(context.Background(), in); !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
}

func TestAssembleTimeAxisFailureTouchesNothing(t *testing.T) {
	in := newInput(t)
	failing := timeaxis.ReaderFunc(func(context.Context, string) ([]int64, error) {
		return nil, errors.New("h5dump: unable to open file")
	})
	a := bundle.NewAssembler(bundle.Options{TimeAxis: failing})
	if _, err := a.Assemble(context.Background(), in); !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
	testsupport.AssertMissing(t, bundle.StagingDir(in.Workdir, testID))
	testsupport.AssertExists(t, filepath.Join(in.Workdir, "sbas.xml"))
}

func TestOpenReloadsAssembledBundle(t *testing.T) {
	in := newInput(t)
	if b, err := bundle.Open(in.Workdir, testID); err != nil || b != nil {
		t.Fatalf("Open before assembly = %v, %v; want nil, nil", b, err)
	}
	built, err := newAssembler(false).Assemble(context.Background(), in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	opened, err := bundle.Open(in.Workdir, testID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.Dir != built.Dir || opened.Metadata != built.Metadata {
		t.Fatalf("Open = %+v, want dir %s and metadata %+v", opened, built.Dir, built.Metadata)
	}
	if opened.Dataset.Label != testID || opened.Dataset.Version != built.Dataset.Version {
		t.Fatalf("unexpected dataset %+v", opened.Dataset)
	}

	if err := os.Remove(built.Metadata.Dataset); err != nil {
		t.Fatal(err)
	}
	if _, err := bundle.Open(in.Workdir, testID); !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected ErrAssembly for a bundle without descriptor, got %v", err)
	}
}
