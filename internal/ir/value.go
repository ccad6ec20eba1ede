package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Compartment values are opaque to the framework. Values that cross a
// persistence boundary (snapshots, exported params, scenario files) are
// normalized to a small closed set so canonical encoding round-trips:
//
//	nil, bool, string, int64, float64, []float64, []any, map[string]any
//
// Integers always decode to int64 and decimals to float64, so a float64
// that happens to be integral is encoded with a trailing ".0".

// NormalizeValue converts a Go value to the closed persistence set.
// Returns an error for NaN, infinities, and unsupported types.
func NormalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float32:
		return checkFloat(float64(val))
	case float64:
		return checkFloat(val)
	case json.Number:
		return decodeNumber(val)
	case []float64:
		out := make([]float64, len(val))
		for i, f := range val {
			if _, err := checkFloat(f); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := NormalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := NormalizeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// DecodeValue parses JSON into the closed persistence set.
// An array whose elements are all decimals decodes to []float64.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromJSON(raw)
}

func fromJSON(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		return decodeNumber(val)
	case []any:
		if vec, ok := floatVector(val); ok {
			return vec, nil
		}
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	default:
		return val, nil
	}
}

func floatVector(arr []any) ([]float64, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	out := make([]float64, len(arr))
	for i, elem := range arr {
		n, ok := elem.(json.Number)
		if !ok || !isDecimal(string(n)) {
			return nil, false
		}
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func decodeNumber(n json.Number) (any, error) {
	s := string(n)
	if isDecimal(s) {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", s, err)
		}
		return f, nil
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("number out of int64 range: %s", s)
	}
	return i, nil
}

func isDecimal(s string) bool {
	return strings.ContainsAny(s, ".eE")
}

func checkFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v cannot be persisted", f)
	}
	return f, nil
}

// SortedKeys returns the keys of m in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs outside the BMP.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
