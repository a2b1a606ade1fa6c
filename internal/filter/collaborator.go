package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"ifgstack/internal/logging"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
)

// Params is the filter collaborator input.
type Params struct {
	Products           []string       `json:"products"`
	MinLat             request.Scalar `json:"min_lat"`
	MaxLat             request.Scalar `json:"max_lat"`
	MinLon             request.Scalar `json:"min_lon"`
	MaxLon             request.Scalar `json:"max_lon"`
	RefLat             request.Scalar `json:"ref_lat"`
	RefLon             request.Scalar `json:"ref_lon"`
	RefWidth           int            `json:"ref_width"`
	RefHeight          int            `json:"ref_height"`
	CoverageThreshold  request.Scalar `json:"coverage_threshold"`
	CoherenceThreshold request.Scalar `json:"coherence_threshold"`
	RangePixelSize     request.Scalar `json:"range_pixel_size"`
	AzimuthPixelSize   request.Scalar `json:"azimuth_pixel_size"`
	Inc                request.Scalar `json:"inc"`
	Filt               request.Scalar `json:"filt"`
	NetRamp            request.Scalar `json:"netramp"`
	GPSRamp            request.Scalar `json:"gpsramp"`
	Subswath           []int          `json:"subswath"`
}

// Output is the raw collaborator response.
type Output struct {
	CenterLinesUTC []UTCTime            `json:"center_lines_utc"`
	IfgInfo        map[string]IfgRecord `json:"ifg_info"`
	IfgCoverage    map[string]float64   `json:"ifg_coverage"`
}

// Collaborator performs the numerical interferogram selection.
type Collaborator interface {
	Filter(ctx context.Context, params Params) (*Output, error)
}

// CommandCollaborator runs an external filter executable. Params are written
// to its stdin as JSON and the Output is decoded from its stdout.
type CommandCollaborator struct {
	Command []string
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Filter implements Collaborator.
func (c *CommandCollaborator) Filter(ctx context.Context, params Params) (*Output, error) {
	if len(c.Command) == 0 {
		return nil, services.Wrap(services.ErrConfig, "filter", "command", "No filter command configured", nil)
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "filter", "encode params", "Failed to encode filter parameters", err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	logger := logging.NewComponentLogger(c.Logger, "filter")
	logger.Debug("invoking filter collaborator",
		logging.String("command", strings.Join(c.Command, " ")),
		logging.Int("products", len(params.Products)),
	)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "filter command failed"
		}
		return nil, services.Wrap(services.ErrExternalTool, "filter", "run", msg, err)
	}

	var out Output
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "filter", "decode output", "Filter produced invalid JSON", err)
	}
	return &out, nil
}

// FuncCollaborator adapts a function to Collaborator.
type FuncCollaborator func(ctx context.Context, params Params) (*Output, error)

// Filter implements Collaborator.
func (f FuncCollaborator) Filter(ctx context.Context, params Params) (*Output, error) {
	if f == nil {
		return nil, errors.New("filter: nil collaborator")
	}
	return f(ctx, params)
}

func paramsFor(req *request.StackRequest, region request.Region) Params {
	return Params{
		Products:           append([]string(nil), req.Products...),
		MinLat:             region.MinLat,
		MaxLat:             region.MaxLat,
		MinLon:             region.MinLon,
		MaxLon:             region.MaxLon,
		RefLat:             req.RefLat(),
		RefLon:             req.RefLon(),
		RefWidth:           req.RefHalfWidth(),
		RefHeight:          req.RefHalfHeight(),
		CoverageThreshold:  req.CoverageThreshold,
		CoherenceThreshold: req.CoherenceThreshold,
		RangePixelSize:     req.RangePixelSize,
		AzimuthPixelSize:   req.AzimuthPixelSize,
		Inc:                req.Inc,
		Filt:               req.Filt,
		NetRamp:            req.NetRamp,
		GPSRamp:            req.GPSRamp,
		Subswath:           append([]int(nil), req.Subswath...),
	}
}

func describeParams(p Params) string {
	return fmt.Sprintf("lat [%s, %s] lon [%s, %s]", p.MinLat, p.MaxLat, p.MinLon, p.MaxLon)
}
