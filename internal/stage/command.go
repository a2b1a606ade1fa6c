package stage

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// outputTailBytes bounds the process output kept for error messages.
const outputTailBytes = 4096

// CommandStage runs an external executable in the working directory.
type CommandStage struct {
	StageName string
	Command   string
	Args      []string
	In        []string
	Out       []string
	// Output receives the live process output when set.
	Output io.Writer
}

func (s *CommandStage) Name() string      { return s.StageName }
func (s *CommandStage) Inputs() []string  { return append([]string(nil), s.In...) }
func (s *CommandStage) Outputs() []string { return append([]string(nil), s.Out...) }

// Run implements Stage. A non-zero exit is returned as *exec.ExitError
// wrapped with the tail of the process output.
func (s *CommandStage) Run(ctx context.Context, workdir string) error {
	cmd := exec.CommandContext(ctx, s.Command, s.Args...) //nolint:gosec
	cmd.Dir = workdir
	tail := &tailBuffer{limit: outputTailBytes}
	var sink io.Writer = tail
	if s.Output != nil {
		sink = io.MultiWriter(tail, s.Output)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink
	if err := cmd.Run(); err != nil {
		if out := strings.TrimSpace(tail.String()); out != "" {
			return fmt.Errorf("%s: %w: %s", s.commandLine(), err, out)
		}
		return fmt.Errorf("%s: %w", s.commandLine(), err)
	}
	return nil
}

// HealthCheck reports whether the executable resolves on PATH.
func (s *CommandStage) HealthCheck(context.Context) Health {
	cmd := strings.TrimSpace(s.Command)
	if cmd == "" {
		return Health{Name: s.StageName, Detail: "command not configured"}
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return Health{Name: s.StageName, Detail: fmt.Sprintf("binary %q not found", cmd)}
	}
	return Health{Name: s.StageName, Ready: true, Detail: path}
}

func (s *CommandStage) commandLine() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
