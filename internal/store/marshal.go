package store

import (
	"fmt"

	"github.com/roach88/simcore/internal/ir"
)

// marshalValue converts a value to canonical JSON TEXT for storage.
func marshalValue(v any) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// marshalObject stores a nil map as "{}".
func marshalObject(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	s, err := marshalValue(m)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return s, nil
}

// marshalList stores a nil slice as "[]".
func marshalList(l []any) (string, error) {
	if l == nil {
		l = []any{}
	}
	s, err := marshalValue(l)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return s, nil
}

// unmarshalObject parses canonical JSON TEXT into the persistence value set.
func unmarshalObject(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	v, err := ir.DecodeValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal object: got %T", v)
	}
	return m, nil
}

// unmarshalList parses a JSON array. A numeric array decodes to []float64
// at the value level, so it is unpacked back into elements here.
func unmarshalList(data string) ([]any, error) {
	if data == "" || data == "[]" {
		return []any{}, nil
	}
	v, err := ir.DecodeValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	switch l := v.(type) {
	case []any:
		return l, nil
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unmarshal list: got %T", v)
	}
}
