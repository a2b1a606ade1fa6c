package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ifgstack/internal/catalog"
	"ifgstack/internal/config"
	"ifgstack/internal/stage"
	"ifgstack/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

type stubCatalog struct {
	err error
}

func (s stubCatalog) Exists(context.Context, string) (bool, error)    { return false, s.err }
func (s stubCatalog) Register(context.Context, catalog.Dataset) error { return nil }
func (s stubCatalog) Close() error                                    { return nil }

func TestCheckCatalog(t *testing.T) {
	if r := CheckCatalog(context.Background(), "sqlite", stubCatalog{}); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	r := CheckCatalog(context.Background(), "http", stubCatalog{err: errors.New("connection refused")})
	if r.Passed || r.Detail != "connection refused" {
		t.Fatalf("expected failure with detail, got %+v", r)
	}
}

func TestCheckCatalogOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	cat := catalog.NewHTTPCatalog(srv.URL, "grq", 0)
	if r := CheckCatalog(context.Background(), "http", cat); r.Passed {
		t.Fatal("expected failure for server error")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, t.TempDir(), nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func standardStages(cfg *config.Config) []stage.Stage {
	return stage.Standard(stage.Commands{
		Python:       cfg.Stages.Python,
		PrepStack:    cfg.Stages.PrepStackCommand,
		ProcessStack: cfg.Stages.ProcessStackCommand,
	})
}

func TestRunAll_StubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg, t.TempDir(), standardStages(cfg), stubCatalog{})
	// working dir + state dir + filter + 4 stages + h5dump + catalog
	if len(results) != 9 {
		t.Fatalf("expected 9 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_MissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Stages.ProcessStackCommand = "ifgstack-no-such-wrapper"
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	failed := Failed(RunAll(context.Background(), cfg, t.TempDir(), standardStages(cfg), nil))
	found := false
	for _, r := range failed {
		if r.Name == "Stage "+stage.NameProcessStack {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected process_stack failure, got %+v", failed)
	}
}

func TestEnvironmentIgnoresStageBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("filter-ifgs"))
	cfg.Stages.ProcessStackCommand = "ifgstack-no-such-wrapper"
	cfg.Bundle.TimeAxisCommand = "ifgstack-no-such-h5dump"
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	results := Environment(cfg, t.TempDir())
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("environment should not check stage tooling: %+v", failed)
	}
	if got := results[len(results)-1].Name; got != "Filter" {
		t.Fatalf("last environment check = %q, want Filter", got)
	}
}

type quietStage struct{ stage.Stage }

func TestCheckStagesSkipsStagesWithoutProbe(t *testing.T) {
	stages := []stage.Stage{
		quietStage{},
		&stage.CommandStage{StageName: stage.NamePrepDataXML, Command: "sh"},
		&stage.CommandStage{StageName: stage.NameProcessStack, Command: "ifgstack-no-such-wrapper"},
	}
	results := CheckStages(context.Background(), stages)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if !results[0].Passed || results[1].Passed {
		t.Fatalf("unexpected readiness %+v", results)
	}
	if results[1].Name != "Stage "+stage.NameProcessStack {
		t.Fatalf("unexpected name %q", results[1].Name)
	}
}
