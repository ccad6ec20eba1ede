package expr

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/parser"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/model"
)

// Register adds the expr kind to reg.
func Register(reg *model.Registry) error {
	return reg.Register(ir.ExprKind, model.Factory{Build: Build})
}

// Build turns an expr component spec into a constructor config.
func Build(spec ir.ComponentSpec) (model.Config, error) {
	cfg := model.Config{
		Kind:   ir.ExprKind,
		Params: make(map[string]any, len(spec.Params)),
	}

	attrs := make(map[string]bool, len(spec.Params)+len(spec.Compartments))
	for k, v := range spec.Params {
		n, err := ir.NormalizeValue(v)
		if err != nil {
			return model.Config{}, fmt.Errorf("param %q: %w", k, err)
		}
		cfg.Params[k] = n
		attrs[k] = true
	}
	for _, c := range spec.Compartments {
		initial, err := ir.NormalizeValue(c.Initial)
		if err != nil {
			return model.Config{}, fmt.Errorf("compartment %q: %w", c.Name, err)
		}
		cfg.Compartments = append(cfg.Compartments, model.CompartmentDecl{
			Name:    c.Name,
			Initial: initial,
			Fixed:   c.Fixed,
		})
		attrs[c.Name] = true
	}

	for _, ts := range spec.Transitions {
		decl, err := compileTransition(ts, attrs)
		if err != nil {
			return model.Config{}, fmt.Errorf("transition %q: %w", ts.Name, err)
		}
		cfg.Transitions = append(cfg.Transitions, decl)
	}
	return cfg, nil
}

type output struct {
	compartment string
	src         string
}

func compileTransition(ts ir.TransitionSpec, attrs map[string]bool) (model.TransitionDecl, error) {
	decl := model.TransitionDecl{Name: ts.Name}
	outputs := make([]output, 0, len(ts.Outputs))

	for _, out := range ts.Outputs {
		if slices.Contains(decl.Outputs, out.Compartment) {
			return model.TransitionDecl{}, fmt.Errorf("output %q declared twice", out.Compartment)
		}
		a, _, err := Analyze(out.Expr, attrs)
		if err != nil {
			return model.TransitionDecl{}, fmt.Errorf("output %q: %w", out.Compartment, err)
		}
		decl.Inputs = appendNew(decl.Inputs, a.Free...)
		decl.BranchOn = appendNew(decl.BranchOn, a.Branch...)
		decl.Outputs = append(decl.Outputs, out.Compartment)
		outputs = append(outputs, output{compartment: out.Compartment, src: out.Expr})
	}

	decl.Fn = evaluator(outputs)
	return decl, nil
}

// evaluator returns a transition function evaluating each output expression
// with the input values as its scope.
func evaluator(outputs []output) model.TransitionFunc {
	ctx := cuecontext.New()
	return func(in model.Values) ([]any, error) {
		if in == nil {
			in = model.Values{}
		}
		scope := ctx.Encode(map[string]any(in))
		if err := scope.Err(); err != nil {
			return nil, fmt.Errorf("encode inputs: %w", err)
		}

		results := make([]any, len(outputs))
		for i, out := range outputs {
			x, err := parser.ParseExpr("transition", out.src)
			if err != nil {
				return nil, fmt.Errorf("output %q: %w", out.compartment, err)
			}
			v, err := eval(ctx, x, scope)
			if err != nil {
				return nil, fmt.Errorf("output %q: %w", out.compartment, err)
			}
			results[i] = v
		}
		return results, nil
	}
}

func eval(ctx *cue.Context, x ast.Expr, scope cue.Value) (any, error) {
	v := ctx.BuildExpr(x, cue.Scope(scope), cue.InferBuiltins(true))
	if err := v.Err(); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Evaluate evaluates a single expression against values. It is a
// convenience for tools and tests.
func Evaluate(src string, values map[string]any) (any, error) {
	x, err := parser.ParseExpr("expression", src)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]any{}
	}
	ctx := cuecontext.New()
	scope := ctx.Encode(values)
	if err := scope.Err(); err != nil {
		return nil, err
	}
	return eval(ctx, x, scope)
}

// Decode converts a concrete CUE value to the persistence value set.
// Numeric lists decode to []float64.
func Decode(v cue.Value) (any, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}

	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		return decodeList(v)
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any)
		for iter.Next() {
			elem, err := Decode(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Selector().String()] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported result kind %v", v.Kind())
	}
}

func decodeList(v cue.Value) (any, error) {
	iter, err := v.List()
	if err != nil {
		return nil, err
	}
	var elems []any
	numeric := true
	for iter.Next() {
		elem, err := Decode(iter.Value())
		if err != nil {
			return nil, err
		}
		switch elem.(type) {
		case int64, float64:
		default:
			numeric = false
		}
		elems = append(elems, elem)
	}

	if !numeric || len(elems) == 0 {
		if elems == nil {
			elems = []any{}
		}
		return elems, nil
	}
	vec := make([]float64, len(elems))
	for i, e := range elems {
		switch n := e.(type) {
		case int64:
			vec[i] = float64(n)
		case float64:
			vec[i] = n
		}
	}
	return vec, nil
}

func appendNew(dst []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}
