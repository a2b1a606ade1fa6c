package identity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"ifgstack/internal/filter"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
)

const (
	// Version is the schema version of the digest layout.
	Version = "v0.1"
	// HashLength is the number of hex digest characters kept in the identity.
	HashLength = 5
	// TimeLayout formats the start and end timestamps.
	TimeLayout = "20060102T150405"
)

// Params is the ordered input of the identity digest.
type Params struct {
	Region             request.Region
	RefLat, RefLon     request.Scalar
	RefWidth           request.Scalar
	RefHeight          request.Scalar
	CoherenceThreshold request.Scalar
	RangePixelSize     request.Scalar
	AzimuthPixelSize   request.Scalar
	Inc                request.Scalar
	NetRamp            request.Scalar
	GPSRamp            request.Scalar
	Filt               request.Scalar
	Track              int
	Sensor             string
	Platforms          []string
	DatePairs          []string
	CenterLines        []time.Time
}

// ParamsFrom collects the digest inputs from a request and its filter result.
func ParamsFrom(req *request.StackRequest, result *filter.Result) Params {
	return Params{
		Region:             result.Region,
		RefLat:             req.RefLat(),
		RefLon:             req.RefLon(),
		RefWidth:           req.RefBoxNumPixels[0],
		RefHeight:          req.RefBoxNumPixels[1],
		CoherenceThreshold: req.CoherenceThreshold,
		RangePixelSize:     req.RangePixelSize,
		AzimuthPixelSize:   req.AzimuthPixelSize,
		Inc:                req.Inc,
		NetRamp:            req.NetRamp,
		GPSRamp:            req.GPSRamp,
		Filt:               req.Filt,
		Track:              result.Track(),
		Sensor:             result.Sensor(),
		Platforms:          result.Platforms(),
		DatePairs:          result.Keys(),
		CenterLines:        append([]time.Time(nil), result.CenterLines...),
	}
}

// Identity is a derived product identity.
type Identity struct {
	Prefix  string
	Sensor  string
	Track   int
	Start   time.Time
	End     time.Time
	Hash    string
	Version string
}

// String renders {prefix}{sensor}-TN{track}-{start}Z-{end}Z-{hash}-{version}.
func (id Identity) String() string {
	return fmt.Sprintf("%s%s-TN%d-%sZ-%sZ-%s-%s",
		id.Prefix, id.Sensor, id.Track,
		id.Start.UTC().Format(TimeLayout), id.End.UTC().Format(TimeLayout),
		id.Hash, id.Version)
}

// Generator renders identities with a fixed prefix.
type Generator struct {
	Prefix string
}

// Generate derives the identity for p.
func (g Generator) Generate(p Params) (Identity, error) {
	if len(p.DatePairs) == 0 {
		return Identity{}, services.Wrap(services.ErrAllFilteredOut, "identity", "generate", "No date pairs to identify", nil)
	}
	if len(p.CenterLines) == 0 {
		return Identity{}, services.Wrap(services.ErrValidation, "identity", "generate", "No center-line times", nil)
	}
	if p.Sensor == "" {
		return Identity{}, services.Wrap(services.ErrValidation, "identity", "generate", "No sensor code", nil)
	}
	start, end := p.CenterLines[0], p.CenterLines[0]
	for _, t := range p.CenterLines[1:] {
		if t.Before(start) {
			start = t
		}
		if t.After(end) {
			end = t
		}
	}
	return Identity{
		Prefix:  g.Prefix,
		Sensor:  p.Sensor,
		Track:   p.Track,
		Start:   start.UTC().Truncate(time.Second),
		End:     end.UTC().Truncate(time.Second),
		Hash:    Digest(p)[:HashLength],
		Version: Version,
	}, nil
}

// Generate derives the identity with no prefix.
func Generate(p Params) (Identity, error) {
	return Generator{}.Generate(p)
}

// Fields returns the digest input in order. The digest covers their
// concatenation with no separator between fields.
func Fields(p Params) []string {
	platforms := append([]string(nil), p.Platforms...)
	sort.Strings(platforms)
	pairs := append([]string(nil), p.DatePairs...)
	sort.Strings(pairs)
	r := p.Region
	return []string{
		r.MinLon.Canonical() + " " + r.MaxLon.Canonical() + " " + r.MinLat.Canonical() + " " + r.MaxLat.Canonical(),
		p.RefLat.Canonical() + " " + p.RefLon.Canonical(),
		p.RefWidth.Canonical() + " " + p.RefHeight.Canonical(),
		p.CoherenceThreshold.Canonical(),
		p.RangePixelSize.Canonical(),
		p.AzimuthPixelSize.Canonical(),
		p.Inc.Canonical(),
		p.NetRamp.Canonical(),
		p.GPSRamp.Canonical(),
		p.Filt.Canonical(),
		strconv.Itoa(p.Track),
		p.Sensor,
		strings.Join(platforms, " "),
		strings.Join(pairs, " "),
	}
}

// Digest returns the full hex MD5 of the ordered fields.
func Digest(p Params) string {
	h := md5.New()
	for _, field := range Fields(p) {
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var identityPattern = regexp.MustCompile(`^(.*?)([A-Za-z0-9]+)-TN(\d+)-(\d{8}T\d{6})Z-(\d{8}T\d{6})Z-([0-9a-f]+)-(v[0-9][0-9.]*)$`)

// Parse splits an identity string back into its components.
func Parse(value string) (Identity, error) {
	m := identityPattern.FindStringSubmatch(value)
	if m == nil {
		return Identity{}, fmt.Errorf("identity: malformed %q", value)
	}
	track, err := strconv.Atoi(m[3])
	if err != nil {
		return Identity{}, fmt.Errorf("identity: track: %w", err)
	}
	start, err := time.Parse(TimeLayout, m[4])
	if err != nil {
		return Identity{}, fmt.Errorf("identity: start: %w", err)
	}
	end, err := time.Parse(TimeLayout, m[5])
	if err != nil {
		return Identity{}, fmt.Errorf("identity: end: %w", err)
	}
	return Identity{Prefix: m[1], Sensor: m[2], Track: track, Start: start, End: end, Hash: m[6], Version: m[7]}, nil
}
