package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ifgstack/internal/metrics"
)

func TestRecorderWritesTextfile(t *testing.T) {
	r := metrics.NewRecorder()
	r.SetIfgCount(3)
	r.StageFinished("prep_data_xml", 1500*time.Millisecond, nil)
	r.StageFinished("prep_igram_stack", 2*time.Second, errors.New("exit status 1"))
	r.RunFinished(metrics.OutcomeFailed, 5*time.Second)

	path := filepath.Join(t.TempDir(), "ifgstack.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`ifgstack_stage_duration_seconds{stage="prep_data_xml"} 1.5`,
		`ifgstack_stage_failed{stage="prep_igram_stack"} 1`,
		`ifgstack_run_outcome{outcome="failed"} 1`,
		`ifgstack_run_outcome{outcome="succeeded"} 0`,
		`ifgstack_ifg_count 3`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestRunFinishedSetsSingleOutcome(t *testing.T) {
	r := metrics.NewRecorder()
	r.RunFinished(metrics.OutcomeSkipped, time.Second)
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, family := range families {
		if family.GetName() != "ifgstack_run_outcome" {
			continue
		}
		if len(family.GetMetric()) != 3 {
			t.Fatalf("expected 3 outcome series, got %d", len(family.GetMetric()))
		}
		for _, m := range family.GetMetric() {
			want := 0.0
			if m.GetLabel()[0].GetValue() == metrics.OutcomeSkipped {
				want = 1
			}
			if got := m.GetGauge().GetValue(); got != want {
				t.Fatalf("outcome %s = %v, want %v", m.GetLabel()[0].GetValue(), got, want)
			}
		}
		return
	}
	t.Fatal("run outcome metric not gathered")
}

func TestWriteTextfileEmptyPath(t *testing.T) {
	if err := metrics.NewRecorder().WriteTextfile(""); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
