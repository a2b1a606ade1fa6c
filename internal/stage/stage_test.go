package stage_test

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ifgstack/internal/stage"
	"ifgstack/internal/testsupport"
)

func TestCommandStageRunsInWorkdir(t *testing.T) {
	bin := t.TempDir()
	workdir := t.TempDir()
	script := filepath.Join(bin, "make-xml")
	testsupport.WriteExecutable(t, script, "#!/bin/sh\necho building $1\ntouch data.xml\n")

	var out bytes.Buffer
	st := &stage.CommandStage{StageName: "demo", Command: script, Args: []string{"arg1"}, Output: &out}
	if err := st.Run(context.Background(), workdir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	testsupport.AssertExists(t, filepath.Join(workdir, "data.xml"))
	if !strings.Contains(out.String(), "building arg1") {
		t.Fatalf("expected streamed output, got %q", out.String())
	}
}

func TestCommandStageReportsExitStatus(t *testing.T) {
	bin := t.TempDir()
	script := filepath.Join(bin, "broken")
	testsupport.WriteExecutable(t, script, "#!/bin/sh\necho 'boom: missing input' >&2\nexit 3\n")

	st := &stage.CommandStage{StageName: "broken", Command: script}
	err := st.Run(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 3 {
		t.Fatalf("exit code = %d, want 3", exitErr.ExitCode())
	}
	if !strings.Contains(err.Error(), "boom: missing input") {
		t.Fatalf("expected output tail in error, got %q", err.Error())
	}
}

func TestCommandStageHealthCheck(t *testing.T) {
	st := &stage.CommandStage{StageName: "ghost", Command: "ifgstack-definitely-missing"}
	health := st.HealthCheck(context.Background())
	if health.Ready || health.Name != "ghost" || !strings.Contains(health.Detail, "ifgstack-definitely-missing") {
		t.Fatalf("expected unhealthy, got %+v", health)
	}

	st = &stage.CommandStage{StageName: "sh", Command: "sh"}
	if health := st.HealthCheck(context.Background()); !health.Ready || !filepath.IsAbs(health.Detail) {
		t.Fatalf("expected sh to resolve, got %+v", health)
	}

	st = &stage.CommandStage{StageName: "unset"}
	if health := st.HealthCheck(context.Background()); health.Ready || health.Detail != "command not configured" {
		t.Fatalf("expected unconfigured stage, got %+v", health)
	}
}

func TestStandardSequenceContracts(t *testing.T) {
	stages := stage.Standard(stage.Commands{Python: "python2", PrepStack: "PrepIgramStackWrapper.py", ProcessStack: "ProcessStackWrapper.py"})
	var names []string
	for _, st := range stages {
		names = append(names, st.Name())
	}
	want := []string{stage.NamePrepDataXML, stage.NamePrepIgramStack, stage.NamePrepSBASXML, stage.NameProcessStack}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("stage order mismatch (-want +got):\n%s", diff)
	}

	// Every input after the first stage is either rendered up front or
	// produced by an earlier stage.
	available := map[string]bool{
		stage.IfgList: true, stage.ExampleRSC: true, stage.UserFn: true,
		stage.PrepDataScript: true, stage.PrepSBASScript: true,
	}
	for _, st := range stages {
		for _, in := range st.Inputs() {
			if !available[in] {
				t.Fatalf("stage %s needs %s before anything produces it", st.Name(), in)
			}
		}
		for _, out := range st.Outputs() {
			available[out] = true
		}
	}
	if !available[filepath.FromSlash(stage.ProcStackFile)] {
		t.Fatal("sequence never produces the processed stack")
	}
}
