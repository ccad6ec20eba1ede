package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/simcore/internal/expr"
	"github.com/roach88/simcore/internal/ir"
)

// ModelField is the top-level field holding the model in a CUE file.
const ModelField = "model"

// CompileModel parses a CUE value into a ModelSpec.
//
// The value should be the model struct itself, e.g.:
//
//	model: {
//		name: "leaky"
//		components: X: {
//			params: k: 2
//			compartments: {
//				y: 0
//				c: {initial: 1.0, fixed: true}
//			}
//			transitions: step: y: "y + c * k"
//		}
//		wires: [{to: "Z:a", from: "X:y"}]
//		processes: main: {steps: ["X.step"], watch: ["X:y"]}
//	}
//
// Struct field order is significant: components, transition outputs and
// processes keep their declaration order.
func CompileModel(v cue.Value) (*ir.ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ModelSpec{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "model name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Name = name

	if spec.Components, err = parseComponents(v); err != nil {
		return nil, err
	}
	if spec.Wires, err = parseWires(v); err != nil {
		return nil, err
	}
	if spec.Processes, err = parseProcesses(v); err != nil {
		return nil, err
	}
	return spec, nil
}

// CompileSource compiles CUE source text holding a top-level model field.
func CompileSource(src string) (*ir.ModelSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("model.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	m := v.LookupPath(cue.ParsePath(ModelField))
	if !m.Exists() {
		return nil, &CompileError{Field: ModelField, Message: "no model field found"}
	}
	return CompileModel(m)
}

func parseComponents(v cue.Value) ([]ir.ComponentSpec, error) {
	compsVal := v.LookupPath(cue.ParsePath("components"))
	if !compsVal.Exists() {
		return nil, nil
	}
	iter, err := compsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var comps []ir.ComponentSpec
	for iter.Next() {
		comp, err := parseComponent(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

func parseComponent(name string, v cue.Value) (ir.ComponentSpec, error) {
	comp := ir.ComponentSpec{Name: name, Kind: ir.ExprKind}

	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return comp, formatCUEError(err)
		}
		comp.Kind = kind
	}

	if paramsVal := v.LookupPath(cue.ParsePath("params")); paramsVal.Exists() {
		decoded, err := expr.Decode(paramsVal)
		if err != nil {
			return comp, formatCUEError(err)
		}
		params, ok := decoded.(map[string]any)
		if !ok {
			return comp, &CompileError{
				Field:   fmt.Sprintf("components.%s.params", name),
				Message: "params must be a struct",
				Pos:     paramsVal.Pos(),
			}
		}
		if len(params) > 0 {
			comp.Params = params
		}
	}

	if compsVal := v.LookupPath(cue.ParsePath("compartments")); compsVal.Exists() {
		iter, err := compsVal.Fields()
		if err != nil {
			return comp, formatCUEError(err)
		}
		for iter.Next() {
			c, err := parseCompartment(iter.Label(), iter.Value())
			if err != nil {
				return comp, err
			}
			comp.Compartments = append(comp.Compartments, c)
		}
	}

	if transVal := v.LookupPath(cue.ParsePath("transitions")); transVal.Exists() {
		iter, err := transVal.Fields()
		if err != nil {
			return comp, formatCUEError(err)
		}
		for iter.Next() {
			t, err := parseTransition(name, iter.Label(), iter.Value())
			if err != nil {
				return comp, err
			}
			comp.Transitions = append(comp.Transitions, t)
		}
	}
	return comp, nil
}

// parseCompartment accepts either a bare initial value or a struct with an
// initial field and an optional fixed flag.
func parseCompartment(name string, v cue.Value) (ir.CompartmentSpec, error) {
	c := ir.CompartmentSpec{Name: name}

	initVal := v.LookupPath(cue.ParsePath("initial"))
	if v.Kind() != cue.StructKind || !initVal.Exists() {
		initial, err := expr.Decode(v)
		if err != nil {
			return c, formatCUEError(err)
		}
		c.Initial = initial
		return c, nil
	}

	initial, err := expr.Decode(initVal)
	if err != nil {
		return c, formatCUEError(err)
	}
	c.Initial = initial

	if fixedVal := v.LookupPath(cue.ParsePath("fixed")); fixedVal.Exists() {
		fixed, err := fixedVal.Bool()
		if err != nil {
			return c, formatCUEError(err)
		}
		c.Fixed = fixed
	}
	return c, nil
}

func parseTransition(component, name string, v cue.Value) (ir.TransitionSpec, error) {
	t := ir.TransitionSpec{Name: name, Outputs: []ir.OutputSpec{}}

	iter, err := v.Fields()
	if err != nil {
		return t, &CompileError{
			Field:   fmt.Sprintf("components.%s.transitions.%s", component, name),
			Message: "transition must map compartments to expressions",
			Pos:     v.Pos(),
		}
	}
	for iter.Next() {
		src, err := iter.Value().String()
		if err != nil {
			return t, &CompileError{
				Field:   fmt.Sprintf("components.%s.transitions.%s.%s", component, name, iter.Label()),
				Message: "output expression must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		t.Outputs = append(t.Outputs, ir.OutputSpec{Compartment: iter.Label(), Expr: src})
	}
	return t, nil
}

func parseWires(v cue.Value) ([]ir.WireSpec, error) {
	wiresVal := v.LookupPath(cue.ParsePath("wires"))
	if !wiresVal.Exists() {
		return nil, nil
	}
	iter, err := wiresVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var wires []ir.WireSpec
	for i := 0; iter.Next(); i++ {
		w, err := parseWire(i, iter.Value())
		if err != nil {
			return nil, err
		}
		wires = append(wires, w)
	}
	return wires, nil
}

// parseWire reads {to, from, op?, forward?}. With op set, from lists the
// operation's sources; without it, from is a single source.
func parseWire(i int, v cue.Value) (ir.WireSpec, error) {
	field := fmt.Sprintf("wires[%d]", i)
	var w ir.WireSpec

	toVal := v.LookupPath(cue.ParsePath("to"))
	if !toVal.Exists() {
		return w, &CompileError{Field: field + ".to", Message: "wire target is required", Pos: v.Pos()}
	}
	to, err := toVal.String()
	if err != nil {
		return w, formatCUEError(err)
	}
	w.To = to

	if fwdVal := v.LookupPath(cue.ParsePath("forward")); fwdVal.Exists() {
		if w.Forward, err = fwdVal.Bool(); err != nil {
			return w, formatCUEError(err)
		}
	}

	fromVal := v.LookupPath(cue.ParsePath("from"))
	if !fromVal.Exists() {
		return w, &CompileError{Field: field + ".from", Message: "wire source is required", Pos: v.Pos()}
	}

	if opVal := v.LookupPath(cue.ParsePath("op")); opVal.Exists() {
		op, err := opVal.String()
		if err != nil {
			return w, formatCUEError(err)
		}
		sources, err := parseSources(field+".from", fromVal)
		if err != nil {
			return w, err
		}
		w.From = ir.SourceSpec{Op: &ir.OperationSpec{Op: op, Sources: sources}}
		return w, nil
	}

	w.From, err = parseSource(field+".from", fromVal)
	return w, err
}

func parseSources(field string, v cue.Value) ([]ir.SourceSpec, error) {
	if v.Kind() != cue.ListKind {
		src, err := parseSource(field, v)
		if err != nil {
			return nil, err
		}
		return []ir.SourceSpec{src}, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	sources := []ir.SourceSpec{}
	for i := 0; iter.Next(); i++ {
		src, err := parseSource(fmt.Sprintf("%s[%d]", field, i), iter.Value())
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// parseSource reads a compartment ref string or a nested {op, from} struct.
func parseSource(field string, v cue.Value) (ir.SourceSpec, error) {
	if path, err := v.String(); err == nil {
		return ir.SourceSpec{Path: path}, nil
	}

	opVal := v.LookupPath(cue.ParsePath("op"))
	if v.Kind() != cue.StructKind || !opVal.Exists() {
		return ir.SourceSpec{}, &CompileError{
			Field:   field,
			Message: "source must be a compartment ref or an {op, from} struct",
			Pos:     v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return ir.SourceSpec{}, formatCUEError(err)
	}

	var sources []ir.SourceSpec
	if fromVal := v.LookupPath(cue.ParsePath("from")); fromVal.Exists() {
		if sources, err = parseSources(field+".from", fromVal); err != nil {
			return ir.SourceSpec{}, err
		}
	}
	if sources == nil {
		sources = []ir.SourceSpec{}
	}
	return ir.SourceSpec{Op: &ir.OperationSpec{Op: op, Sources: sources}}, nil
}

func parseProcesses(v cue.Value) ([]ir.ProcessSpec, error) {
	procsVal := v.LookupPath(cue.ParsePath("processes"))
	if !procsVal.Exists() {
		return nil, nil
	}
	iter, err := procsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var procs []ir.ProcessSpec
	for iter.Next() {
		p, err := parseProcess(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}

func parseProcess(name string, v cue.Value) (ir.ProcessSpec, error) {
	p := ir.ProcessSpec{Name: name}
	field := "processes." + name

	steps, err := stringList(field+".steps", v.LookupPath(cue.ParsePath("steps")))
	if err != nil {
		return p, err
	}
	for _, s := range steps {
		step, err := ir.ParseStepRef(s)
		if err != nil {
			return p, &CompileError{Field: field + ".steps", Message: err.Error(), Pos: v.Pos()}
		}
		p.Steps = append(p.Steps, step)
	}

	if p.Processes, err = stringList(field+".processes", v.LookupPath(cue.ParsePath("processes"))); err != nil {
		return p, err
	}
	if p.Watch, err = stringList(field+".watch", v.LookupPath(cue.ParsePath("watch"))); err != nil {
		return p, err
	}
	return p, nil
}

func stringList(field string, v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "expected a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
