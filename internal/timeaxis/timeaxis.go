package timeaxis

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ifgstack/internal/services"
)

// Layout is the timestep text form.
const Layout = "2006-01-02T15:04:05"

// DatesDataset is the dataset holding proleptic Gregorian day ordinals.
const DatesDataset = "/dates"

// Reader returns the day ordinals stored in a processed stack file.
type Reader interface {
	ReadOrdinals(ctx context.Context, path string) ([]int64, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, path string) ([]int64, error)

func (f ReaderFunc) ReadOrdinals(ctx context.Context, path string) ([]int64, error) {
	return f(ctx, path)
}

// H5DumpReader reads the dates dataset by running h5dump.
type H5DumpReader struct {
	Command string
}

// ReadOrdinals implements Reader.
func (r H5DumpReader) ReadOrdinals(ctx context.Context, path string) ([]int64, error) {
	command := r.Command
	if command == "" {
		command = "h5dump"
	}
	cmd := exec.CommandContext(ctx, command, "-d", DatesDataset, "-y", "-w", "0", path) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = path
		}
		return nil, services.Wrap(services.ErrExternalTool, "timeaxis", "read dates", detail, err)
	}
	ordinals, err := ParseH5Dump(out)
	if err != nil {
		return nil, services.Wrap(services.ErrAssembly, "timeaxis", "parse dates", path, err)
	}
	return ordinals, nil
}

// ParseH5Dump extracts the values of the first DATA block in h5dump output.
func ParseH5Dump(output []byte) ([]int64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	inData := false
	var values []int64
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inData {
			if strings.HasPrefix(line, "DATA {") {
				inData = true
			}
			continue
		}
		if strings.HasPrefix(line, "}") {
			if len(values) == 0 {
				return nil, fmt.Errorf("dates dataset is empty")
			}
			return values, nil
		}
		for field := range strings.FieldsFuncSeq(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid date ordinal %q", field)
			}
			values = append(values, int64(math.Trunc(f)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no DATA block in h5dump output")
}

var ordinalEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// FromOrdinal converts a proleptic Gregorian ordinal (day 1 is 0001-01-01)
// to a UTC midnight time.
func FromOrdinal(ordinal int64) time.Time {
	return ordinalEpoch.AddDate(0, 0, int(ordinal-1))
}

// Timesteps converts ordinals to ISO-8601 strings, keeping the first
// occurrence of each.
func Timesteps(ordinals []int64) []string {
	seen := make(map[int64]struct{}, len(ordinals))
	out := make([]string, 0, len(ordinals))
	for _, o := range ordinals {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, FromOrdinal(o).Format(Layout))
	}
	return out
}

// Read returns the deduplicated timesteps of the stack at path.
func Read(ctx context.Context, reader Reader, path string) ([]string, error) {
	ordinals, err := reader.ReadOrdinals(ctx, path)
	if err != nil {
		return nil, err
	}
	steps := Timesteps(ordinals)
	if len(steps) == 0 {
		return nil, services.Wrap(services.ErrAssembly, "timeaxis", "read", "Processed stack has no timesteps", nil)
	}
	return steps, nil
}
