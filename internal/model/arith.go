package model

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Arithmetic for built-in operations. Integers (int, int32, int64) combine
// to int64; any float operand promotes the result to float64. []float64
// vectors combine elementwise with vectors of equal length and broadcast
// against scalars.

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

type binaryKernel struct {
	name   string
	ints   func(a, b int64) int64
	floats func(a, b float64) float64
	vecs   func(dst, a, b []float64)
	scalar func(c float64, dst []float64)
}

var (
	addKernel = binaryKernel{
		name:   "add",
		ints:   func(a, b int64) int64 { return a + b },
		floats: func(a, b float64) float64 { return a + b },
		vecs:   func(dst, a, b []float64) { floats.AddTo(dst, a, b) },
		scalar: floats.AddConst,
	}
	mulKernel = binaryKernel{
		name:   "multiply",
		ints:   func(a, b int64) int64 { return a * b },
		floats: func(a, b float64) float64 { return a * b },
		vecs:   func(dst, a, b []float64) { floats.MulTo(dst, a, b) },
		scalar: floats.Scale,
	}
)

func (k binaryKernel) apply(a, b any) (any, error) {
	av, aVec := a.([]float64)
	bv, bVec := b.([]float64)

	switch {
	case aVec && bVec:
		if len(av) != len(bv) {
			return nil, fmt.Errorf("cannot %s vectors of length %d and %d", k.name, len(av), len(bv))
		}
		dst := make([]float64, len(av))
		k.vecs(dst, av, bv)
		return dst, nil
	case aVec:
		c, ok := asFloat(b)
		if !ok {
			return nil, fmt.Errorf("cannot %s %T to a vector", k.name, b)
		}
		dst := slices.Clone(av)
		k.scalar(c, dst)
		return dst, nil
	case bVec:
		c, ok := asFloat(a)
		if !ok {
			return nil, fmt.Errorf("cannot %s %T to a vector", k.name, a)
		}
		dst := slices.Clone(bv)
		k.scalar(c, dst)
		return dst, nil
	}

	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	if aInt && bInt {
		return k.ints(ai, bi), nil
	}

	af, aOK := asFloat(a)
	bf, bOK := asFloat(b)
	if !aOK || !bOK {
		return nil, fmt.Errorf("cannot %s %T and %T", k.name, a, b)
	}
	return k.floats(af, bf), nil
}

func fold(k binaryKernel, values []any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%s needs at least one value", k.name)
	}
	acc := values[0]
	if vec, ok := acc.([]float64); ok {
		acc = slices.Clone(vec)
	} else if i, ok := asInt(acc); ok {
		acc = i
	} else if f, ok := acc.(float32); ok {
		acc = float64(f)
	}
	for _, v := range values[1:] {
		next, err := k.apply(acc, v)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func negate(v any) (any, error) {
	if vec, ok := v.([]float64); ok {
		dst := slices.Clone(vec)
		floats.Scale(-1, dst)
		return dst, nil
	}
	if i, ok := asInt(v); ok {
		return -i, nil
	}
	if f, ok := asFloat(v); ok {
		return -f, nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}
