package identity_test

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ifgstack/internal/filter"
	"ifgstack/internal/identity"
	"ifgstack/internal/request"
	"ifgstack/internal/services"
	"ifgstack/internal/testsupport"
)

func sampleParams(t *testing.T) identity.Params {
	t.Helper()
	req, err := request.Parse([]byte(testsupport.SampleRequestJSON), request.FormatJSON)
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	result, err := filter.Normalize(testsupport.SampleOutput(3))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	result.Region = *req.Region
	return identity.ParamsFrom(req, result)
}

func TestGenerateMatchesLegacyDigest(t *testing.T) {
	id, err := identity.Generate(sampleParams(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "S1-TN42-20180101T040030Z-20180125T040030Z-29665-v0.1"
	if id.String() != want {
		t.Fatalf("identity = %q, want %q", id.String(), want)
	}
}

func TestFieldsOrder(t *testing.T) {
	got := identity.Fields(sampleParams(t))
	want := []string{
		"-156.0 -154.5 19.0 20.5",
		"19.5 -155.2",
		"5 7",
		"0.3",
		"2.329562",
		"13.94",
		"34",
		"True",
		"False",
		"0.05",
		"42",
		"S1",
		"Sentinel-1A Sentinel-1B",
		"20180101_20180113 20180113_20180125 20180125_20180206",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateIsOrderIndependent(t *testing.T) {
	base := sampleParams(t)
	first, err := identity.Generate(base)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 20 {
		p := base
		p.Platforms = append([]string(nil), base.Platforms...)
		p.DatePairs = append([]string(nil), base.DatePairs...)
		p.CenterLines = append([]time.Time(nil), base.CenterLines...)
		rng.Shuffle(len(p.Platforms), func(a, b int) { p.Platforms[a], p.Platforms[b] = p.Platforms[b], p.Platforms[a] })
		rng.Shuffle(len(p.DatePairs), func(a, b int) { p.DatePairs[a], p.DatePairs[b] = p.DatePairs[b], p.DatePairs[a] })
		rng.Shuffle(len(p.CenterLines), func(a, b int) { p.CenterLines[a], p.CenterLines[b] = p.CenterLines[b], p.CenterLines[a] })
		got, err := identity.Generate(p)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if got.String() != first.String() {
			t.Fatalf("iteration %d: %q != %q", i, got, first)
		}
	}
}

func TestGenerateIsSensitiveToEachField(t *testing.T) {
	base := sampleParams(t)
	baseID, err := identity.Generate(base)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	mutations := map[string]func(*identity.Params){
		"coherence":  func(p *identity.Params) { p.CoherenceThreshold = request.Float(0.35) },
		"min lon":    func(p *identity.Params) { p.Region.MinLon = request.Float(-156.1) },
		"ref lat":    func(p *identity.Params) { p.RefLat = request.Float(19.6) },
		"ref width":  func(p *identity.Params) { p.RefWidth = request.Int(7) },
		"range px":   func(p *identity.Params) { p.RangePixelSize = request.Float(2.33) },
		"azimuth px": func(p *identity.Params) { p.AzimuthPixelSize = request.Float(13.95) },
		"inc kind":   func(p *identity.Params) { p.Inc = request.Float(34) },
		"netramp":    func(p *identity.Params) { p.NetRamp = request.Bool(false) },
		"gpsramp":    func(p *identity.Params) { p.GPSRamp = request.Bool(true) },
		"filt":       func(p *identity.Params) { p.Filt = request.Float(0.1) },
		"track":      func(p *identity.Params) { p.Track = 43 },
		"platforms":  func(p *identity.Params) { p.Platforms = []string{"Sentinel-1A"} },
		"date pairs": func(p *identity.Params) { p.DatePairs = p.DatePairs[:2] },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := base
			p.DatePairs = append([]string(nil), base.DatePairs...)
			mutate(&p)
			got, err := identity.Generate(p)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got.Hash == baseID.Hash {
				t.Fatalf("hash unchanged after %s mutation: %s", name, got.Hash)
			}
		})
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	id, err := identity.Generator{Prefix: "filtered-ifg-stack_"}.Generate(sampleParams(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !regexp.MustCompile(`^filtered-ifg-stack_S1-TN42-\d{8}T\d{6}Z-\d{8}T\d{6}Z-[0-9a-f]{5}-v0\.1$`).MatchString(id.String()) {
		t.Fatalf("unexpected identity %q", id)
	}
	parsed, err := identity.Parse(id.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(id, parsed); diff != "" {
		t.Fatalf("parse mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateRejectsEmpty(t *testing.T) {
	p := sampleParams(t)
	p.DatePairs = nil
	if _, err := identity.Generate(p); !errors.Is(err, services.ErrAllFilteredOut) {
		t.Fatalf("expected ErrAllFilteredOut, got %v", err)
	}
}
