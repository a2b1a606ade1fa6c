package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Region is a latitude/longitude box.
type Region struct {
	MinLat Scalar
	MaxLat Scalar
	MinLon Scalar
	MaxLon Scalar
}

// Bounds returns the numeric extent.
func (r Region) Bounds() (minLat, maxLat, minLon, maxLon float64) {
	minLat, _ = r.MinLat.Float64()
	maxLat, _ = r.MaxLat.Float64()
	minLon, _ = r.MinLon.Float64()
	maxLon, _ = r.MaxLon.Float64()
	return minLat, maxLat, minLon, maxLon
}

// RegionFromBounds builds a Region of float scalars.
func RegionFromBounds(minLat, maxLat, minLon, maxLon float64) Region {
	return Region{MinLat: Float(minLat), MaxLat: Float(maxLat), MinLon: Float(minLon), MaxLon: Float(maxLon)}
}

// StackRequest is the validated request descriptor. It is not modified after Load.
type StackRequest struct {
	Project  string
	Products []string
	// Region is nil when the descriptor leaves region_of_interest empty.
	Region             *Region
	RefPoint           [2]Scalar
	RefBoxNumPixels    [2]Scalar
	CoverageThreshold  Scalar
	CoherenceThreshold Scalar
	RangePixelSize     Scalar
	AzimuthPixelSize   Scalar
	Inc                Scalar
	Filt               Scalar
	NetRamp            Scalar
	GPSRamp            Scalar
	Subswath           []int

	// Path is the absolute descriptor location.
	Path string
	// Format is "json" or "yaml".
	Format string
	raw    []byte
}

// RefLat returns the reference point latitude.
func (r *StackRequest) RefLat() Scalar { return r.RefPoint[0] }

// RefLon returns the reference point longitude.
func (r *StackRequest) RefLon() Scalar { return r.RefPoint[1] }

// RefBox returns the reference window width and height in pixels.
func (r *StackRequest) RefBox() (width, height int) {
	w, _ := r.RefBoxNumPixels[0].Int64()
	h, _ := r.RefBoxNumPixels[1].Int64()
	return int(w), int(h)
}

// RefHalfWidth is the number of pixels on each side of the reference point in range.
func (r *StackRequest) RefHalfWidth() int {
	w, _ := r.RefBox()
	return (w - 1) / 2
}

// RefHalfHeight is the number of pixels on each side of the reference point in azimuth.
func (r *StackRequest) RefHalfHeight() int {
	_, h := r.RefBox()
	return (h - 1) / 2
}

// Raw returns the descriptor bytes as read.
func (r *StackRequest) Raw() []byte {
	return append([]byte(nil), r.raw...)
}

// ContextJSON returns the descriptor as JSON: verbatim for JSON descriptors,
// re-encoded for YAML ones.
func (r *StackRequest) ContextJSON() ([]byte, error) {
	if r.Format != FormatYAML {
		return r.Raw(), nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(r.raw, &node); err != nil {
		return nil, fmt.Errorf("re-read yaml descriptor: %w", err)
	}
	value, err := yamlToJSONValue(&node)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode context json: %w", err)
	}
	return append(data, '\n'), nil
}

// yamlToJSONValue converts a node tree to JSON-encodable values, keeping
// mapping key order and the int/float distinction.
func yamlToJSONValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlToJSONValue(node.Content[0])
	case yaml.AliasNode:
		return yamlToJSONValue(node.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := yamlToJSONValue(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := orderedObject{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := yamlToJSONValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, objectEntry{key: node.Content[i].Value, value: v})
		}
		return out, nil
	default:
		var s Scalar
		if err := s.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return s, nil
	}
}

type objectEntry struct {
	key   string
	value any
}

type orderedObject []objectEntry

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, entry := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(entry.key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.value)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
