package filter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"time"

	"ifgstack/internal/logging"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
)

var trackPattern = regexp.MustCompile(`_TN(\d+)_`)

// EnvelopeFunc computes the region covering a set of products.
type EnvelopeFunc func(products []string) (request.Region, error)

// Adapter runs the filter collaborator for a request.
type Adapter struct {
	collaborator Collaborator
	envelope     EnvelopeFunc
	logger       *slog.Logger
}

// NewAdapter constructs an Adapter. Product footprints are resolved with
// FootprintEnvelope unless overridden with WithEnvelope.
func NewAdapter(collaborator Collaborator, logger *slog.Logger) *Adapter {
	return &Adapter{
		collaborator: collaborator,
		envelope:     FootprintEnvelope,
		logger:       logging.NewComponentLogger(logger, "filter"),
	}
}

// WithEnvelope replaces the footprint envelope source.
func (a *Adapter) WithEnvelope(fn EnvelopeFunc) *Adapter {
	if fn != nil {
		a.envelope = fn
	}
	return a
}

// Run filters the request's products. A result with no records fails with
// services.ErrAllFilteredOut.
func (a *Adapter) Run(ctx context.Context, req *request.StackRequest) (*Result, error) {
	logger := logging.WithContext(ctx, a.logger)

	var region request.Region
	if req.Region != nil {
		logger.Info("using region of interest", logging.String(logging.FieldEventType, "filter_region"))
		region = *req.Region
	} else {
		env, err := a.envelope(req.Products)
		if err != nil {
			return nil, err
		}
		region = env
		logger.Info("using product footprint envelope",
			logging.String(logging.FieldEventType, "filter_envelope"),
			logging.String("min_lon", region.MinLon.Canonical()),
			logging.String("max_lon", region.MaxLon.Canonical()),
			logging.String("min_lat", region.MinLat.Canonical()),
			logging.String("max_lat", region.MaxLat.Canonical()),
		)
	}

	params := paramsFor(req, region)
	out, err := a.collaborator.Filter(ctx, params)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = &Output{}
	}

	logger.Info("filter complete",
		logging.String(logging.FieldEventType, "filter_complete"),
		logging.Int("retained", len(out.IfgInfo)),
		logging.Int("candidates", len(req.Products)),
		logging.String("region", describeParams(params)),
	)

	if len(out.IfgInfo) == 0 {
		return nil, services.Wrap(services.ErrAllFilteredOut, "filter", "normalize",
			fmt.Sprintf("All %d products in the stack were filtered out. Check thresholds", len(req.Products)), nil)
	}
	result, err := Normalize(out)
	if err != nil {
		return nil, err
	}
	result.Region = region
	result.Candidates = len(req.Products)
	return result, nil
}

// Normalize validates collaborator output and fills derived fields.
func Normalize(out *Output) (*Result, error) {
	if out == nil || len(out.IfgInfo) == 0 {
		return nil, services.Wrap(services.ErrAllFilteredOut, "filter", "normalize", "Filter returned no interferograms", nil)
	}
	result := &Result{
		Records:  make(map[string]IfgRecord, len(out.IfgInfo)),
		Coverage: make(map[string]float64, len(out.IfgCoverage)),
	}
	for key, rec := range out.IfgInfo {
		if rec.Track == 0 {
			track, err := TrackFromProduct(rec.Product)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "filter", "normalize", "Record "+key+" has no track", err)
			}
			rec.Track = track
		}
		result.Records[key] = rec
	}
	for key, cov := range out.IfgCoverage {
		if _, ok := result.Records[key]; ok {
			result.Coverage[key] = cov
		}
	}

	keys := result.Keys()
	first := result.Records[keys[0]]
	result.track = first.Track
	result.sensor = first.Sensor
	result.sensorName = first.SensorName
	for _, key := range keys[1:] {
		rec := result.Records[key]
		if rec.Track != result.track {
			return nil, services.Wrap(services.ErrValidation, "filter", "normalize",
				fmt.Sprintf("Mixed tracks in stack: %d (%s) and %d (%s)", result.track, keys[0], rec.Track, key), nil)
		}
		if rec.Sensor != result.sensor {
			return nil, services.Wrap(services.ErrValidation, "filter", "normalize",
				fmt.Sprintf("Mixed sensors in stack: %q (%s) and %q (%s)", result.sensor, keys[0], rec.Sensor, key), nil)
		}
	}
	if result.sensor == "" {
		return nil, services.Wrap(services.ErrValidation, "filter", "normalize", "Records carry no sensor code", nil)
	}

	centers := make([]time.Time, 0, len(out.CenterLinesUTC))
	for _, c := range out.CenterLinesUTC {
		if !c.IsZero() {
			centers = append(centers, c.UTC())
		}
	}
	if len(centers) == 0 {
		for _, key := range keys {
			if c := result.Records[key].CenterLineUTC; !c.IsZero() {
				centers = append(centers, c.UTC())
			}
		}
	}
	if len(centers) == 0 {
		return nil, services.Wrap(services.ErrValidation, "filter", "normalize", "No center-line times reported", nil)
	}
	sort.Slice(centers, func(i, j int) bool { return centers[i].Before(centers[j]) })
	result.CenterLines = centers
	return result, nil
}

// TrackFromProduct extracts the track number from a product name such as
// S1-IFG_RM_M1S1_TN042_....
func TrackFromProduct(product string) (int, error) {
	m := trackPattern.FindStringSubmatch(product)
	if m == nil {
		return 0, fmt.Errorf("no _TN<track>_ token in %q", product)
	}
	return strconv.Atoi(m[1])
}
