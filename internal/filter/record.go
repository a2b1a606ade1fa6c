package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ifgstack/internal/request"
)

// IfgRecord describes one retained interferogram.
type IfgRecord struct {
	Product       string    `json:"product"`
	StartDT       string    `json:"start_dt"`
	StopDT        string    `json:"stop_dt"`
	Bperp         float64   `json:"bperp"`
	Sensor        string    `json:"sensor"`
	SensorName    string    `json:"sensor_name"`
	Platform      Platforms `json:"platform"`
	Track         int       `json:"track,omitempty"`
	Width         int       `json:"width"`
	Length        int       `json:"length"`
	Wavelength    float64   `json:"wavelength"`
	HeadingDeg    float64   `json:"heading_deg"`
	CenterLineUTC UTCTime   `json:"center_line_utc"`
	Xlim          []int     `json:"xlim"`
	Ylim          []int     `json:"ylim"`
	Rxlim         []int     `json:"rxlim"`
	Rylim         []int     `json:"rylim"`
}

// Platforms accepts a single platform name, a list, or null.
type Platforms []string

func (p *Platforms) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = nil
	case len(data) > 0 && data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*p = list
	default:
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return fmt.Errorf("platform: %w", err)
		}
		*p = []string{one}
	}
	return nil
}

// UTCTime decodes the timestamp layouts produced by the filter collaborator.
type UTCTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"20060102T150405",
}

// ParseUTC parses value with the accepted layouts and returns it in UTC.
func ParseUTC(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (u *UTCTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		u.Time = time.Time{}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	if text == "" {
		u.Time = time.Time{}
		return nil
	}
	t, err := ParseUTC(text)
	if err != nil {
		return err
	}
	u.Time = t
	return nil
}

func (u UTCTime) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(u.UTC().Format("2006-01-02T15:04:05.999999"))
}

// Result is the normalized filter output.
type Result struct {
	// Records maps date-pair key to record.
	Records map[string]IfgRecord
	// CenterLines holds every center-line acquisition time, ascending.
	CenterLines []time.Time
	// Coverage maps date-pair key to the covered fraction of the region.
	Coverage map[string]float64
	// Region is the latitude/longitude box the filter ran against.
	Region request.Region
	// Candidates is the number of products offered to the filter.
	Candidates int

	track      int
	sensor     string
	sensorName string
}

// Keys returns the date-pair keys in ascending order.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Records))
	for k := range r.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sorted returns the records ordered by date-pair key.
func (r *Result) Sorted() []IfgRecord {
	keys := r.Keys()
	out := make([]IfgRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.Records[k])
	}
	return out
}

// First returns the record with the earliest date-pair key.
func (r *Result) First() IfgRecord {
	keys := r.Keys()
	if len(keys) == 0 {
		return IfgRecord{}
	}
	return r.Records[keys[0]]
}

// Len returns the number of retained records.
func (r *Result) Len() int { return len(r.Records) }

// Track returns the shared track number.
func (r *Result) Track() int { return r.track }

// Sensor returns the shared sensor code.
func (r *Result) Sensor() string { return r.sensor }

// SensorName returns the human-readable sensor name of the earliest record.
func (r *Result) SensorName() string { return r.sensorName }

// Platforms returns the distinct platform tags across records, sorted.
func (r *Result) Platforms() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, rec := range r.Records {
		for _, p := range rec.Platform {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Products returns product names ordered by date-pair key.
func (r *Result) Products() []string {
	recs := r.Sorted()
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Product)
	}
	return out
}

// Start returns the earliest center-line time.
func (r *Result) Start() time.Time {
	if len(r.CenterLines) == 0 {
		return time.Time{}
	}
	return r.CenterLines[0]
}

// End returns the latest center-line time.
func (r *Result) End() time.Time {
	if len(r.CenterLines) == 0 {
		return time.Time{}
	}
	return r.CenterLines[len(r.CenterLines)-1]
}
