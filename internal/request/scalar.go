package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies the dynamic type held by a Scalar.
type Kind int

// Scalar kinds. The zero Kind is KindNull.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Scalar is a single descriptor value that remembers how it was written.
type Scalar struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Null returns the scalar written as JSON null.
func Null() Scalar { return Scalar{} }

// Bool returns a boolean scalar.
func Bool(v bool) Scalar { return Scalar{kind: KindBool, b: v} }

// Int returns a scalar that was written without a fraction or exponent.
func Int(v int64) Scalar { return Scalar{kind: KindInt, i: v} }

// Float returns a scalar that was written with a fraction or exponent.
func Float(v float64) Scalar { return Scalar{kind: KindFloat, f: v} }

// String returns a string scalar.
func String(v string) Scalar { return Scalar{kind: KindString, s: v} }

// Kind reports the dynamic type held by s.
func (s Scalar) Kind() Kind { return s.kind }

// IsNull reports whether s holds null.
func (s Scalar) IsNull() bool { return s.kind == KindNull }

// IsNumber reports whether s holds an integer or a float.
func (s Scalar) IsNumber() bool { return s.kind == KindInt || s.kind == KindFloat }

// Float64 returns the numeric value; booleans map to 0/1.
func (s Scalar) Float64() (float64, bool) {
	switch s.kind {
	case KindInt:
		return float64(s.i), true
	case KindFloat:
		return s.f, true
	case KindBool:
		if s.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Int64 returns the integral value, truncating floats and parsing decimal strings.
func (s Scalar) Int64() (int64, bool) {
	switch s.kind {
	case KindInt:
		return s.i, true
	case KindFloat:
		if math.IsNaN(s.f) || math.IsInf(s.f, 0) {
			return 0, false
		}
		return int64(s.f), true
	case KindBool:
		if s.b {
			return 1, true
		}
		return 0, true
	case KindString:
		v, err := strconv.ParseInt(strings.TrimSpace(s.s), 10, 64)
		return v, err == nil
	default:
		return 0, false
	}
}

// Text returns the string value for string scalars.
func (s Scalar) Text() (string, bool) {
	return s.s, s.kind == KindString
}

// Canonical renders the value the way earlier generators of this product
// family printed it: integers in decimal, floats in shortest round-trip form
// with a trailing ".0" when integral and exponent notation outside
// [1e-4, 1e16), booleans as True/False and null as None.
func (s Scalar) Canonical() string {
	switch s.kind {
	case KindBool:
		if s.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(s.i, 10)
	case KindFloat:
		return FormatFloat(s.f)
	case KindString:
		return s.s
	default:
		return "None"
	}
}

func (s Scalar) String() string { return s.Canonical() }

// FormatFloat renders f in the canonical float form used by Canonical.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp := 0
	if idx := strings.IndexByte(sci, 'e'); idx >= 0 {
		exp, _ = strconv.Atoi(sci[idx+1:])
	}
	if f != 0 && (exp < -4 || exp >= 16) {
		return sci
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(fixed, ".") {
		fixed += ".0"
	}
	return fixed
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindBool:
		return json.Marshal(s.b)
	case KindInt:
		return []byte(strconv.FormatInt(s.i, 10)), nil
	case KindFloat:
		if math.IsNaN(s.f) || math.IsInf(s.f, 0) {
			return nil, fmt.Errorf("unsupported float value %v", s.f)
		}
		text := strconv.FormatFloat(s.f, 'g', -1, 64)
		if !strings.ContainsAny(text, ".eE") {
			text += ".0"
		}
		return []byte(text), nil
	case KindString:
		return json.Marshal(s.s)
	default:
		return []byte("null"), nil
	}
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return errors.New("empty value")
	case bytes.Equal(data, []byte("null")):
		*s = Null()
	case bytes.Equal(data, []byte("true")):
		*s = Bool(true)
	case bytes.Equal(data, []byte("false")):
		*s = Bool(false)
	case data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = String(text)
	case data[0] == '[' || data[0] == '{':
		return fmt.Errorf("expected a scalar, got %s", kindOfComposite(data[0]))
	default:
		parsed, err := parseNumber(string(data))
		if err != nil {
			return err
		}
		*s = parsed
	}
	return nil
}

func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!null":
		*s = Null()
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Bool(v)
	case "!!int":
		var v int64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Int(v)
	case "!!float":
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Float(v)
	default:
		*s = String(node.Value)
	}
	return nil
}

func parseNumber(text string) (Scalar, error) {
	if !strings.ContainsAny(text, ".eE") {
		v, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return Int(v), nil
		}
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || numErr.Err != strconv.ErrRange {
			return Scalar{}, fmt.Errorf("invalid number %q", text)
		}
		return Scalar{}, fmt.Errorf("integer %s out of range", text)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Scalar{}, fmt.Errorf("invalid number %q", text)
	}
	return Float(v), nil
}

func kindOfComposite(b byte) string {
	if b == '[' {
		return "list"
	}
	return "object"
}
