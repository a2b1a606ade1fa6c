package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ifgstack/internal/services"
)

// Descriptor formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var requiredKeys = []string{
	"project",
	"products",
	"region_of_interest",
	"ref_point",
	"ref_box_num_pixels",
	"coverage_threshold",
	"coherence_threshold",
	"range_pixel_size",
	"azimuth_pixel_size",
	"inc",
	"filt",
	"netramp",
	"gpsramp",
	"subswath",
}

// document abstracts the JSON and YAML key/value views of a descriptor.
type document interface {
	has(key string) bool
	decode(key string, v any) error
}

type jsonDocument map[string]json.RawMessage

func (d jsonDocument) has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d jsonDocument) decode(key string, v any) error {
	return json.Unmarshal(d[key], v)
}

type yamlDocument map[string]yaml.Node

func (d yamlDocument) has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d yamlDocument) decode(key string, v any) error {
	node := d[key]
	return node.Decode(v)
}

// Load reads, validates, and normalizes the descriptor at path. Every failure
// is marked services.ErrConfig.
func Load(path string) (*StackRequest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, configError("resolve", "Failed to resolve request path", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, configError("read", "Failed to find "+abs, err)
		}
		return nil, configError("read", "Failed to read "+abs, err)
	}
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	req, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	req.Path = abs
	return req, nil
}

// Parse validates descriptor bytes in the given format.
func Parse(data []byte, format string) (*StackRequest, error) {
	var doc document
	switch format {
	case FormatJSON:
		var m jsonDocument
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, configError("parse", "Request descriptor is not a JSON object", err)
		}
		doc = m
	case FormatYAML:
		var m yamlDocument
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, configError("parse", "Request descriptor is not a YAML mapping", err)
		}
		doc = m
	default:
		return nil, configError("parse", fmt.Sprintf("Unsupported descriptor format %q", format), nil)
	}

	var missing []string
	for _, key := range requiredKeys {
		if !doc.has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, configError("validate", "Missing required keys: "+strings.Join(missing, ", "), nil)
	}

	req := &StackRequest{Format: format, raw: append([]byte(nil), data...)}
	if err := decodeInto(doc, req); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeInto(doc document, req *StackRequest) error {
	var project Scalar
	if err := doc.decode("project", &project); err != nil {
		return fieldError("project", err)
	}
	name, ok := project.Text()
	if !ok || strings.TrimSpace(name) == "" {
		return fieldError("project", errors.New("must be a non-empty string"))
	}
	req.Project = name

	if err := doc.decode("products", &req.Products); err != nil {
		return fieldError("products", err)
	}
	if len(req.Products) == 0 {
		return fieldError("products", errors.New("must list at least one product"))
	}
	for i, product := range req.Products {
		if strings.TrimSpace(product) == "" {
			return fieldError("products", fmt.Errorf("entry %d is empty", i))
		}
	}

	var roi []Scalar
	if err := doc.decode("region_of_interest", &roi); err != nil {
		return fieldError("region_of_interest", err)
	}
	switch len(roi) {
	case 0:
	case 4:
		if err := requireNumbers("region_of_interest", roi); err != nil {
			return err
		}
		req.Region = &Region{MinLat: roi[0], MaxLat: roi[1], MinLon: roi[2], MaxLon: roi[3]}
	default:
		return fieldError("region_of_interest", fmt.Errorf("want [min_lat, max_lat, min_lon, max_lon], got %d values", len(roi)))
	}

	var refPoint []Scalar
	if err := doc.decode("ref_point", &refPoint); err != nil {
		return fieldError("ref_point", err)
	}
	if len(refPoint) != 2 {
		return fieldError("ref_point", fmt.Errorf("want [lat, lon], got %d values", len(refPoint)))
	}
	if err := requireNumbers("ref_point", refPoint); err != nil {
		return err
	}
	req.RefPoint = [2]Scalar{refPoint[0], refPoint[1]}

	var refBox []Scalar
	if err := doc.decode("ref_box_num_pixels", &refBox); err != nil {
		return fieldError("ref_box_num_pixels", err)
	}
	if len(refBox) != 2 {
		return fieldError("ref_box_num_pixels", fmt.Errorf("want [width, height], got %d values", len(refBox)))
	}
	for _, v := range refBox {
		n, ok := v.Int64()
		if !v.IsNumber() || !ok {
			return fieldError("ref_box_num_pixels", fmt.Errorf("%s is not an integer", v.Canonical()))
		}
		if f, _ := v.Float64(); f != float64(n) {
			return fieldError("ref_box_num_pixels", fmt.Errorf("%s is not an integer", v.Canonical()))
		}
		if n <= 0 || n%2 == 0 {
			return fieldError("ref_box_num_pixels", fmt.Errorf("%d must be a positive odd number", n))
		}
	}
	req.RefBoxNumPixels = [2]Scalar{refBox[0], refBox[1]}

	numbers := []struct {
		key string
		dst *Scalar
	}{
		{"coverage_threshold", &req.CoverageThreshold},
		{"coherence_threshold", &req.CoherenceThreshold},
		{"range_pixel_size", &req.RangePixelSize},
		{"azimuth_pixel_size", &req.AzimuthPixelSize},
		{"inc", &req.Inc},
	}
	for _, n := range numbers {
		if err := doc.decode(n.key, n.dst); err != nil {
			return fieldError(n.key, err)
		}
		if !n.dst.IsNumber() {
			return fieldError(n.key, fmt.Errorf("want a number, got %s", n.dst.Kind()))
		}
	}

	flags := []struct {
		key string
		dst *Scalar
	}{
		{"filt", &req.Filt},
		{"netramp", &req.NetRamp},
		{"gpsramp", &req.GPSRamp},
	}
	for _, f := range flags {
		if err := doc.decode(f.key, f.dst); err != nil {
			return fieldError(f.key, err)
		}
	}
	if req.NetRamp.Kind() != KindBool {
		return fieldError("netramp", fmt.Errorf("want a boolean, got %s", req.NetRamp.Kind()))
	}
	if req.GPSRamp.Kind() != KindBool {
		return fieldError("gpsramp", fmt.Errorf("want a boolean, got %s", req.GPSRamp.Kind()))
	}

	subswath, err := decodeSubswath(doc)
	if err != nil {
		return err
	}
	req.Subswath = subswath
	return nil
}

// subswathValue accepts either a single value or a list.
type subswathValue []Scalar

func (s *subswathValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []Scalar
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var one Scalar
	if err := one.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = []Scalar{one}
	return nil
}

func (s *subswathValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var list []Scalar
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var one Scalar
	if err := one.UnmarshalYAML(node); err != nil {
		return err
	}
	*s = []Scalar{one}
	return nil
}

func decodeSubswath(doc document) ([]int, error) {
	var raw subswathValue
	if err := doc.decode("subswath", &raw); err != nil {
		return nil, fieldError("subswath", err)
	}
	if len(raw) == 0 {
		return nil, fieldError("subswath", errors.New("must name at least one subswath"))
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		n, ok := v.Int64()
		if !ok || v.Kind() == KindNull || v.Kind() == KindBool {
			return nil, fieldError("subswath", fmt.Errorf("%s is not an integer", v.Canonical()))
		}
		out = append(out, int(n))
	}
	return out, nil
}

func requireNumbers(key string, values []Scalar) error {
	for _, v := range values {
		if !v.IsNumber() {
			return fieldError(key, fmt.Errorf("%s is not a number", v.Canonical()))
		}
	}
	return nil
}

func fieldError(key string, err error) error {
	return configError("validate", "Invalid "+key, err)
}

func configError(op, msg string, err error) error {
	return services.Wrap(services.ErrConfig, "request", op, msg, err)
}
