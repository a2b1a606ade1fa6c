package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"ifgstack/internal/catalog"
	"ifgstack/internal/cleanup"
	"ifgstack/internal/config"
	"ifgstack/internal/filter"
	"ifgstack/internal/ledger"
	"ifgstack/internal/logging"
	"ifgstack/internal/metadata"
	"ifgstack/internal/services"
	"ifgstack/internal/stage"
	"ifgstack/internal/stageexec"
	"ifgstack/internal/testsupport"
	"ifgstack/internal/timeaxis"
)

var identityPattern = regexp.MustCompile(`^S1-TN42-\d{8}T\d{6}Z-\d{8}T\d{6}Z-[0-9a-f]{5}-v0\.1$`)

type fakeStage struct {
	name  string
	in    []string
	out   []string
	run   func(workdir string) error
	calls *int
}

func (s *fakeStage) Name() string      { return s.name }
func (s *fakeStage) Inputs() []string  { return s.in }
func (s *fakeStage) Outputs() []string { return s.out }

func (s *fakeStage) Run(_ context.Context, workdir string) error {
	*s.calls++
	return s.run(workdir)
}

// fakeStages mirrors the standard sequence, writing each declared output.
// failAt names a stage that exits with an error instead.
func fakeStages(t *testing.T, calls *int, failAt string) []stage.Stage {
	t.Helper()
	write := func(names ...string) func(string) error {
		return func(workdir string) error {
			for _, name := range names {
				testsupport.WriteFile(t, filepath.Join(workdir, filepath.FromSlash(name)), name+"\n")
			}
			return nil
		}
	}
	stages := []*fakeStage{
		{name: stage.NamePrepDataXML, in: []string{stage.PrepDataScript, stage.IfgList, stage.ExampleRSC, stage.UserFn}, out: []string{stage.DataXML}, run: write(stage.DataXML)},
		{name: stage.NamePrepIgramStack, in: []string{stage.DataXML}, out: []string{filepath.FromSlash(stage.RawStackFile)}, run: write(stage.RawStackFile)},
		{name: stage.NamePrepSBASXML, in: []string{stage.PrepSBASScript}, out: []string{stage.SBASXML}, run: write(stage.SBASXML)},
		{name: stage.NameProcessStack, in: []string{stage.SBASXML}, out: []string{filepath.FromSlash(stage.ProcStackFile), filepath.FromSlash(stage.IgramFigsDir)}, run: func(workdir string) error {
			testsupport.WriteFile(t, filepath.Join(workdir, filepath.FromSlash(stage.ProcStackFile)), "processed")
			testsupport.WritePNG(t, filepath.Join(workdir, filepath.FromSlash(stage.IgramFigsDir), "ifg_001.png"), 320, 240)
			testsupport.WritePNG(t, filepath.Join(workdir, filepath.FromSlash(stage.IgramFigsDir), "ifg_002.png"), 320, 240)
			return nil
		}},
	}
	out := make([]stage.Stage, len(stages))
	for i, s := range stages {
		s.calls = calls
		if s.name == failAt {
			s.run = func(string) error { return errors.New("exit status 1") }
		}
		out[i] = s
	}
	return out
}

func fiveProductRequest() string {
	products := make([]string, 5)
	for i := range products {
		products[i] = fmt.Sprintf("%q", fmt.Sprintf("S1-IFG_RM_M1S1_TN042_product_%d", i+1))
	}
	return `{
  "project": "hawaii",
  "products": [` + strings.Join(products, ", ") + `],
  "region_of_interest": [19.0, 20.5, -156.0, -154.5],
  "ref_point": [19.5, -155.2],
  "ref_box_num_pixels": [5, 7],
  "coverage_threshold": 0.95,
  "coherence_threshold": 0.3,
  "range_pixel_size": 2.329562,
  "azimuth_pixel_size": 13.94,
  "inc": 34,
  "filt": 0.05,
  "netramp": true,
  "gpsramp": false,
  "subswath": [1, 2]
}`
}

type harness struct {
	cfg         *config.Config
	workdir     string
	request     string
	catalog     *catalog.SQLiteCatalog
	ledger      *ledger.Store
	stageCalls  int
	filterCalls int
	retained    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.TextfilePath = filepath.Join(testsupport.BaseDir(cfg), "metrics", "ifgstack.prom")
	if err := os.MkdirAll(filepath.Dir(cfg.Metrics.TextfilePath), 0o755); err != nil {
		t.Fatalf("mkdir metrics dir: %v", err)
	}
	cat, err := catalog.OpenSQLite(cfg.Catalog.SQLitePath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	h := &harness{
		cfg:      cfg,
		workdir:  t.TempDir(),
		catalog:  cat,
		ledger:   testsupport.MustOpenLedger(t, cfg),
		retained: 3,
	}
	h.request = testsupport.WriteRequest(t, h.workdir, fiveProductRequest())
	for i := 1; i <= 5; i++ {
		testsupport.WriteFile(t, filepath.Join(h.workdir, fmt.Sprintf("S1-IFG_RM_M1S1_TN042_product_%d", i), "merged", "filt_topophase.unw.geo"), "data")
	}
	for key := range testsupport.SampleRecords(h.retained) {
		if err := os.Symlink(filepath.Join(h.workdir, "S1-IFG_RM_M1S1_TN042_product_1"), filepath.Join(h.workdir, key)); err != nil {
			t.Fatalf("symlink %s: %v", key, err)
		}
	}
	return h
}

func (h *harness) pipeline(t *testing.T, failAt string, opts ...Option) *Pipeline {
	t.Helper()
	collaborator := filter.FuncCollaborator(func(_ context.Context, params filter.Params) (*filter.Output, error) {
		h.filterCalls++
		if len(params.Products) != 5 {
			t.Errorf("filter received %d products, want 5", len(params.Products))
		}
		if h.retained == 0 {
			return &filter.Output{}, nil
		}
		return testsupport.SampleOutput(h.retained), nil
	})
	// Four acquisitions, one repeated.
	axis := timeaxis.ReaderFunc(func(context.Context, string) ([]int64, error) {
		return []int64{736695, 736707, 736707, 736719, 736731}, nil
	})
	base := []Option{
		WithCollaborator(collaborator),
		WithCatalog(h.catalog),
		WithLedger(h.ledger),
		WithTimeAxis(axis),
		WithStages(fakeStages(t, &h.stageCalls, failAt)),
	}
	p, err := New(h.cfg, logging.NewNop(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func walk(t *testing.T, dir string) []string {
	t.Helper()
	var paths []string
	err := filepath.WalkDir(dir, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return paths
}

func TestRunProducesBundleForRetainedInterferograms(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t, "")

	outcome, err := p.Run(context.Background(), h.request, h.workdir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Skipped {
		t.Fatal("fresh identity reported as skipped")
	}
	if !identityPattern.MatchString(outcome.Identity) {
		t.Fatalf("identity %q does not match %s", outcome.Identity, identityPattern)
	}
	if h.stageCalls != 4 {
		t.Fatalf("expected 4 stages to run, got %d", h.stageCalls)
	}

	bundleDir := filepath.Join(h.workdir, outcome.Identity)
	mets, err := filepath.Glob(filepath.Join(bundleDir, "*.met.json"))
	if err != nil || len(mets) != 1 {
		t.Fatalf("expected exactly one met.json, got %v (%v)", mets, err)
	}
	data, err := os.ReadFile(mets[0])
	if err != nil {
		t.Fatalf("read met: %v", err)
	}
	var met metadata.Met
	if err := json.Unmarshal(data, &met); err != nil {
		t.Fatalf("decode met: %v", err)
	}
	if met.IfgCount != 3 {
		t.Fatalf("ifg_count = %d, want 3", met.IfgCount)
	}
	if len(met.Timesteps) != 4 || met.TimestepCount != 4 {
		t.Fatalf("timesteps = %v (count %d), want 4 distinct", met.Timesteps, met.TimestepCount)
	}
	testsupport.AssertExists(t, filepath.Join(bundleDir, metadata.DatasetFileName(outcome.Identity)))
	testsupport.AssertExists(t, filepath.Join(bundleDir, "PROC-STACK.h5.gz"))
	testsupport.AssertExists(t, filepath.Join(bundleDir, "browse.png"))
	testsupport.AssertExists(t, filepath.Join(bundleDir, filter.SnapshotName))

	for i := 1; i <= 5; i++ {
		testsupport.AssertMissing(t, filepath.Join(h.workdir, fmt.Sprintf("S1-IFG_RM_M1S1_TN042_product_%d", i)))
	}
	for key := range testsupport.SampleRecords(3) {
		testsupport.AssertMissing(t, filepath.Join(h.workdir, key))
	}
	testsupport.AssertMissing(t, filepath.Join(h.workdir, cleanup.ErrorFile))

	exists, err := h.catalog.Exists(context.Background(), outcome.Identity)
	if err != nil || !exists {
		t.Fatalf("identity not registered: exists=%v err=%v", exists, err)
	}
	run, err := h.ledger.Get(context.Background(), outcome.RunID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if run.Status != ledger.StatusSucceeded || run.Identity != outcome.Identity || run.IfgCount != 3 {
		t.Fatalf("unexpected ledger row %+v", run)
	}
	if run.Stage != stage.NameProcessStack {
		t.Fatalf("ledger stage = %q, want %q", run.Stage, stage.NameProcessStack)
	}
	testsupport.AssertExists(t, h.cfg.Metrics.TextfilePath)
}

func TestRunIsDeterministicAcrossWorkdirs(t *testing.T) {
	first := newHarness(t)
	second := newHarness(t)
	a, err := first.pipeline(t, "").Run(context.Background(), first.request, first.workdir)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	b, err := second.pipeline(t, "").Run(context.Background(), second.request, second.workdir)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if a.Identity != b.Identity {
		t.Fatalf("identities differ: %s vs %s", a.Identity, b.Identity)
	}
}

func TestRerunOfCatalogedIdentityIsNoop(t *testing.T) {
	h := newHarness(t)
	first, err := h.pipeline(t, "").Run(context.Background(), h.request, h.workdir)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	before := walk(t, h.workdir)
	h.stageCalls = 0
	second, err := h.pipeline(t, "").Run(context.Background(), h.request, h.workdir)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Skipped || second.Identity != first.Identity {
		t.Fatalf("expected skip of %s, got %+v", first.Identity, second)
	}
	if h.stageCalls != 0 {
		t.Fatalf("expected zero stages, got %d", h.stageCalls)
	}
	if diff := cmp.Diff(before, walk(t, h.workdir)); diff != "" {
		t.Fatalf("skipped run changed the working directory (-before +after):\n%s", diff)
	}
	run, err := h.ledger.Get(context.Background(), second.RunID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if run.Status != ledger.StatusSkipped {
		t.Fatalf("ledger status = %s, want skipped", run.Status)
	}
}

func TestStageFailureKeepsInputsAndWritesDiagnostics(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t, stage.NamePrepSBASXML)

	outcome, err := p.Run(context.Background(), h.request, h.workdir)
	if !errors.Is(err, services.ErrStageFailure) {
		t.Fatalf("expected ErrStageFailure, got %v", err)
	}
	var stageErr *stageexec.StageFailureError
	if !errors.As(err, &stageErr) || stageErr.Name != stage.NamePrepSBASXML || stageErr.Index != 3 {
		t.Fatalf("unexpected stage error %#v", stageErr)
	}
	if h.stageCalls != 3 {
		t.Fatalf("expected stages to stop after the third, got %d calls", h.stageCalls)
	}

	testsupport.AssertMissing(t, filepath.Join(h.workdir, outcome.Identity))
	testsupport.AssertExists(t, filepath.Join(h.workdir, cleanup.ErrorFile))
	testsupport.AssertExists(t, filepath.Join(h.workdir, cleanup.TracebackFile))
	testsupport.AssertExists(t, filepath.Join(h.workdir, "S1-IFG_RM_M1S1_TN042_product_1"))
	for key := range testsupport.SampleRecords(3) {
		testsupport.AssertExists(t, filepath.Join(h.workdir, key))
	}

	exists, _ := h.catalog.Exists(context.Background(), outcome.Identity)
	if exists {
		t.Fatal("failed run must not register the identity")
	}
	run, err := h.ledger.Get(context.Background(), outcome.RunID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if run.Status != ledger.StatusFailed || !strings.Contains(run.Error, stage.NamePrepSBASXML) {
		t.Fatalf("unexpected ledger row %+v", run)
	}
}

func TestAllFilteredOutStopsBeforeStages(t *testing.T) {
	h := newHarness(t)
	h.retained = 0
	_, err := h.pipeline(t, "").Run(context.Background(), h.request, h.workdir)
	if !errors.Is(err, services.ErrAllFilteredOut) {
		t.Fatalf("expected ErrAllFilteredOut, got %v", err)
	}
	if h.stageCalls != 0 {
		t.Fatalf("expected no stages, got %d", h.stageCalls)
	}
	report, readErr := os.ReadFile(filepath.Join(h.workdir, cleanup.ErrorFile))
	if readErr != nil {
		t.Fatalf("read error report: %v", readErr)
	}
	if !strings.Contains(string(report), "filtered out") {
		t.Fatalf("error report %q does not describe the filter outcome", report)
	}
	testsupport.AssertMissing(t, filepath.Join(h.workdir, stage.IfgList))
}

func TestPanicInStageIsReported(t *testing.T) {
	h := newHarness(t)
	calls := 0
	stages := fakeStages(t, &calls, "")
	stages[1].(*fakeStage).run = func(string) error { panic("stack writer crashed") }

	_, err := h.pipeline(t, "", WithStages(stages)).Run(context.Background(), h.request, h.workdir)
	var panicErr *cleanup.PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *cleanup.PanicError, got %v", err)
	}
	trace, readErr := os.ReadFile(filepath.Join(h.workdir, cleanup.TracebackFile))
	if readErr != nil {
		t.Fatalf("read traceback: %v", readErr)
	}
	if !strings.Contains(string(trace), "stack writer crashed") {
		t.Fatalf("traceback missing panic value:\n%s", trace)
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, string, string) ([]string, error) {
	f.calls++
	return nil, services.Wrap(services.ErrExternalTool, "publish", "upload", "bucket unreachable", nil)
}

func TestPublishFailureSkipsRegistrationAndCleanup(t *testing.T) {
	h := newHarness(t)
	pub := &failingPublisher{}
	outcome, err := h.pipeline(t, "", WithPublisher(pub)).Run(context.Background(), h.request, h.workdir)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("expected one publish attempt, got %d", pub.calls)
	}
	testsupport.AssertExists(t, filepath.Join(h.workdir, outcome.Identity))
	testsupport.AssertExists(t, filepath.Join(h.workdir, "S1-IFG_RM_M1S1_TN042_product_3"))
	if exists, _ := h.catalog.Exists(context.Background(), outcome.Identity); exists {
		t.Fatal("unpublished bundle must not be registered")
	}
}

// stubTools points every configured executable at a no-op script except
// ProcessStack, which is left unresolvable.
func (h *harness) stubTools(t *testing.T) {
	t.Helper()
	stub := filepath.Join(testsupport.BaseDir(h.cfg), "bin", "tool")
	testsupport.WriteExecutable(t, stub, "#!/bin/sh\nexit 0\n")
	if err := os.MkdirAll(h.cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir state dir: %v", err)
	}
	h.cfg.Filter.Command = []string{stub}
	h.cfg.Stages.Python = stub
	h.cfg.Stages.PrepStackCommand = stub
	h.cfg.Stages.ProcessStackCommand = "process-stack-not-installed"
	h.cfg.Bundle.TimeAxisCommand = stub
}

func TestCatalogedRerunSkipsWithoutStageBinaries(t *testing.T) {
	h := newHarness(t)
	first, err := h.pipeline(t, "").Run(context.Background(), h.request, h.workdir)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	h.stubTools(t)
	before := walk(t, h.workdir)
	second, err := h.pipeline(t, "", WithPreflight(true), WithStages(StandardStages(h.cfg))).
		Run(context.Background(), h.request, h.workdir)
	if err != nil {
		t.Fatalf("rerun with a missing stage binary: %v", err)
	}
	if !second.Skipped || second.Identity != first.Identity {
		t.Fatalf("expected skip of %s, got %+v", first.Identity, second)
	}
	if diff := cmp.Diff(before, walk(t, h.workdir)); diff != "" {
		t.Fatalf("skipped run changed the working directory (-before +after):\n%s", diff)
	}
}

func TestNewIdentityFailsPreflightOnMissingStageBinary(t *testing.T) {
	h := newHarness(t)
	h.stubTools(t)

	_, err := h.pipeline(t, "", WithPreflight(true), WithStages(StandardStages(h.cfg))).
		Run(context.Background(), h.request, h.workdir)
	if !errors.Is(err, services.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "Stage "+stage.NameProcessStack) {
		t.Fatalf("error %q does not name the missing stage", err)
	}
	if h.filterCalls != 1 {
		t.Fatalf("expected the filter to run before stage checks, got %d calls", h.filterCalls)
	}
	testsupport.AssertMissing(t, filepath.Join(h.workdir, stage.IfgList))
	testsupport.AssertMissing(t, filepath.Join(h.workdir, filter.SnapshotName))
	testsupport.AssertExists(t, filepath.Join(h.workdir, cleanup.ErrorFile))
}

func TestRerunAfterPublishFailureResumesBundle(t *testing.T) {
	h := newHarness(t)
	first, err := h.pipeline(t, "", WithPublisher(&failingPublisher{})).Run(context.Background(), h.request, h.workdir)
	if err == nil {
		t.Fatal("expected first run to fail at publish")
	}

	h.stageCalls = 0
	second, err := h.pipeline(t, "").Run(context.Background(), h.request, h.workdir)
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if h.stageCalls != 0 {
		t.Fatalf("leftover bundle must not rerun stages, got %d calls", h.stageCalls)
	}
	if second.Identity != first.Identity || second.Bundle == nil || second.Bundle.Dir != filepath.Join(h.workdir, first.Identity) {
		t.Fatalf("unexpected outcome %+v", second)
	}
	if exists, _ := h.catalog.Exists(context.Background(), first.Identity); !exists {
		t.Fatal("resumed bundle was not registered")
	}
	testsupport.AssertMissing(t, filepath.Join(h.workdir, "S1-IFG_RM_M1S1_TN042_product_3"))
}

func TestRerunWithUnreadableLeftoverBundleFails(t *testing.T) {
	h := newHarness(t)
	first, err := h.pipeline(t, "", WithPublisher(&failingPublisher{})).Run(context.Background(), h.request, h.workdir)
	if err == nil {
		t.Fatal("expected first run to fail at publish")
	}
	if err := os.Remove(filepath.Join(h.workdir, first.Identity, metadata.DatasetFileName(first.Identity))); err != nil {
		t.Fatal(err)
	}

	h.stageCalls = 0
	_, err = h.pipeline(t, "").Run(context.Background(), h.request, h.workdir)
	if !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
	if h.stageCalls != 0 {
		t.Fatalf("expected no stages, got %d", h.stageCalls)
	}
}

func TestRunRemovesStaleStagingDirectories(t *testing.T) {
	h := newHarness(t)
	stale := filepath.Join(h.workdir, ".S1-TN42-old.partial")
	fresh := filepath.Join(h.workdir, ".S1-TN42-recent.partial")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	old := time.Now().Add(-2 * stalePartialAge)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := h.pipeline(t, "").Run(context.Background(), h.request, h.workdir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	testsupport.AssertMissing(t, stale)
	testsupport.AssertExists(t, fresh)
}

func TestConcurrentRunOnSameWorkdirIsBusy(t *testing.T) {
	h := newHarness(t)
	if err := os.MkdirAll(h.cfg.LockDir(), 0o755); err != nil {
		t.Fatalf("mkdir lock dir: %v", err)
	}
	held := flock.New(LockPath(h.cfg.LockDir(), h.workdir))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	_, err = h.pipeline(t, "").Run(context.Background(), h.request, h.workdir)
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if h.filterCalls != 0 {
		t.Fatalf("busy run must not reach the filter, got %d calls", h.filterCalls)
	}
	testsupport.AssertMissing(t, filepath.Join(h.workdir, cleanup.ErrorFile))
}

func TestIdentifyWritesNothing(t *testing.T) {
	h := newHarness(t)
	before := walk(t, h.workdir)

	ident, err := h.pipeline(t, "").Identify(context.Background(), filepath.Base(h.request), h.workdir)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if !identityPattern.MatchString(ident.Identity.String()) {
		t.Fatalf("identity %q does not match %s", ident.Identity, identityPattern)
	}
	if ident.Exists {
		t.Fatal("fresh identity reported as cataloged")
	}
	if ident.Result.Len() != 3 || ident.Result.Candidates != 5 {
		t.Fatalf("retained %d of %d, want 3 of 5", ident.Result.Len(), ident.Result.Candidates)
	}
	if h.stageCalls != 0 {
		t.Fatalf("identify ran %d stages", h.stageCalls)
	}
	if diff := cmp.Diff(before, walk(t, h.workdir)); diff != "" {
		t.Fatalf("identify changed the working directory (-before +after):\n%s", diff)
	}
}
