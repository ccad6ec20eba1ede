package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/simcore/internal/expr"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/model"
)

// Validation error codes (E100-E199)
const (
	ErrModelNameEmpty = "E100" // model name is required

	// Component errors (E101-E105)
	ErrInvalidName   = "E101" // empty name or reserved characters
	ErrDuplicateName = "E102" // duplicate or colliding name
	ErrUnknownKind   = "E103" // kind not registered
	ErrUnknownOutput = "E104" // output is not a compartment of the component
	ErrExprSyntax    = "E105" // output expression does not parse

	// Wire errors (E106-E109)
	ErrUnknownWireTarget = "E106" // wire target does not name a compartment
	ErrUnknownWireSource = "E107" // wire source does not name a compartment
	ErrUnknownOperation  = "E108" // operation not registered
	ErrWireIntoFixed     = "E109" // fixed compartments cannot be wired

	// Process errors (E110-E114)
	ErrUnknownStepComponent  = "E110" // step names an unknown component
	ErrUnknownStepTransition = "E111" // step names an unknown transition
	ErrUnknownWatch          = "E112" // watch path does not name a compartment
	ErrUnknownChild          = "E113" // joint child unknown or declared later
	ErrProcessShape          = "E114" // exactly one of steps and processes

	// Transition errors (E115-E119)
	ErrFixedOutput          = "E115" // transition writes a fixed compartment
	ErrStateDependentBranch = "E116" // if-guard reads state or runtime arguments
	ErrInvalidForward       = "E117" // forward wires take a single compartment

	// Graph errors (E120-E129)
	ErrWiringCycle = "E120" // cycle made only of wires
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// componentInfo is what validation knows about one component. Components
// of host-registered kinds are opaque: their structure is only known once
// built, so references into them are not checked here.
type componentInfo struct {
	opaque       bool
	compartments map[string]bool // name -> fixed
	params       map[string]bool
	transitions  map[string]bool
}

func (c *componentInfo) hasCompartment(name string) bool {
	if c.opaque {
		return true
	}
	_, ok := c.compartments[name]
	return ok
}

type validator struct {
	kinds      map[string]bool
	ops        map[string]bool
	components map[string]*componentInfo
	errs       []ValidationError
}

// Validate validates a model spec against schema rules.
// Returns all errors found (does not fail-fast). A nil registry validates
// against the built-in operations and the expr kind.
func Validate(spec *ir.ModelSpec, reg *model.Registry) []ValidationError {
	if reg == nil {
		reg = model.NewRegistry()
		_ = expr.Register(reg)
	}
	v := &validator{
		kinds:      toSet(reg.Kinds()),
		ops:        toSet(reg.Operations()),
		components: make(map[string]*componentInfo),
	}

	if strings.TrimSpace(spec.Name) == "" {
		v.add("name", ErrModelNameEmpty, "model name is required and must be non-empty")
	}

	for i, comp := range spec.Components {
		v.component(i, comp)
	}
	for i, w := range spec.Wires {
		v.wire(i, w)
	}
	v.processes(spec.Processes)

	for _, c := range AnalyzeCycles(spec) {
		v.add("wires", ErrWiringCycle, "%s", c.Message)
	}
	return v.errs
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) component(i int, comp ir.ComponentSpec) {
	field := fmt.Sprintf("components[%d]", i)

	if !validName(comp.Name) {
		v.add(field+".name", ErrInvalidName, "invalid component name %q", comp.Name)
	}
	if _, exists := v.components[comp.Name]; exists {
		v.add(field+".name", ErrDuplicateName, "duplicate component name: %q", comp.Name)
		return
	}
	if !v.kinds[comp.Kind] {
		v.add(field+".kind", ErrUnknownKind, "component %q: kind %q is not registered", comp.Name, comp.Kind)
	}

	info := &componentInfo{
		opaque:       comp.Kind != ir.ExprKind,
		compartments: make(map[string]bool),
		params:       make(map[string]bool),
		transitions:  make(map[string]bool),
	}
	v.components[comp.Name] = info
	if info.opaque {
		return
	}

	attrs := make(map[string]bool)
	for _, key := range ir.SortedKeys(comp.Params) {
		if !validName(key) {
			v.add(field+".params", ErrInvalidName, "component %q: invalid param name %q", comp.Name, key)
		}
		info.params[key] = true
		attrs[key] = true
	}
	for j, c := range comp.Compartments {
		cf := fmt.Sprintf("%s.compartments[%d]", field, j)
		if !validName(c.Name) {
			v.add(cf, ErrInvalidName, "component %q: invalid compartment name %q", comp.Name, c.Name)
		}
		if attrs[c.Name] {
			v.add(cf, ErrDuplicateName, "component %q: compartment %q collides with another attribute", comp.Name, c.Name)
		}
		info.compartments[c.Name] = c.Fixed
		attrs[c.Name] = true
	}

	for j, t := range comp.Transitions {
		v.transition(fmt.Sprintf("%s.transitions[%d]", field, j), comp.Name, t, info, attrs)
	}
}

func (v *validator) transition(field, component string, t ir.TransitionSpec, info *componentInfo, attrs map[string]bool) {
	if !validName(t.Name) {
		v.add(field, ErrInvalidName, "component %q: invalid transition name %q", component, t.Name)
	}
	if attrs[t.Name] || info.transitions[t.Name] {
		v.add(field, ErrDuplicateName, "component %q: transition %q collides with another attribute", component, t.Name)
	}
	info.transitions[t.Name] = true

	seen := make(map[string]bool, len(t.Outputs))
	for k, out := range t.Outputs {
		of := fmt.Sprintf("%s.outputs[%d]", field, k)
		if seen[out.Compartment] {
			v.add(of, ErrDuplicateName, "%s.%s: output %q declared twice", component, t.Name, out.Compartment)
		}
		seen[out.Compartment] = true

		fixed, ok := info.compartments[out.Compartment]
		switch {
		case !ok:
			v.add(of, ErrUnknownOutput, "%s.%s: output %q is not a compartment", component, t.Name, out.Compartment)
		case fixed:
			v.add(of, ErrFixedOutput, "%s.%s: output %q is a fixed compartment", component, t.Name, out.Compartment)
		}

		a, _, err := expr.Analyze(out.Expr, attrs)
		if err != nil {
			v.add(of, ErrExprSyntax, "%s.%s: %v", component, t.Name, err)
			continue
		}
		for _, name := range a.Branch {
			if info.params[name] {
				continue
			}
			if fixed, ok := info.compartments[name]; ok && fixed {
				continue
			}
			v.add(of, ErrStateDependentBranch,
				"%s.%s: branch condition reads %q, which is not a parameter or fixed compartment",
				component, t.Name, name)
		}
	}
}

func (v *validator) wire(i int, w ir.WireSpec) {
	field := fmt.Sprintf("wires[%d]", i)

	comp, name, ok := v.ref(field+".to", ErrUnknownWireTarget, w.To)
	if ok && !comp.opaque && comp.compartments[name] {
		v.add(field+".to", ErrWireIntoFixed, "cannot wire into fixed compartment %q", w.To)
	}

	if w.Forward && (w.From.Op != nil || w.From.Path == "") {
		v.add(field+".from", ErrInvalidForward, "forward wire %q must take a single compartment source", w.To)
		return
	}
	v.source(field+".from", w.From)
}

func (v *validator) source(field string, src ir.SourceSpec) {
	switch {
	case src.Op != nil && src.Path != "":
		v.add(field, ErrUnknownWireSource, "source sets both path and op")
	case src.Op != nil:
		if !v.ops[src.Op.Op] {
			v.add(field+".op", ErrUnknownOperation, "operation %q is not registered", src.Op.Op)
		}
		for i, s := range src.Op.Sources {
			v.source(fmt.Sprintf("%s.sources[%d]", field, i), s)
		}
	default:
		v.ref(field, ErrUnknownWireSource, src.Path)
	}
}

// ref resolves a compartment reference, reporting code when it does not
// name a known compartment.
func (v *validator) ref(field, code, ref string) (*componentInfo, string, bool) {
	compName, name, err := ir.CompartmentRef(ref).Parse()
	if err != nil {
		v.add(field, code, "%v", err)
		return nil, "", false
	}
	comp, ok := v.components[compName]
	if !ok {
		v.add(field, code, "unknown component %q in %q", compName, ref)
		return nil, "", false
	}
	if !comp.hasCompartment(name) {
		v.add(field, code, "component %q has no compartment %q", compName, name)
		return nil, "", false
	}
	return comp, name, true
}

func (v *validator) processes(procs []ir.ProcessSpec) {
	declared := make(map[string]bool, len(procs))

	for i, p := range procs {
		field := fmt.Sprintf("processes[%d]", i)

		if !validName(p.Name) {
			v.add(field+".name", ErrInvalidName, "invalid process name %q", p.Name)
		}
		if declared[p.Name] {
			v.add(field+".name", ErrDuplicateName, "duplicate process name: %q", p.Name)
		}

		switch {
		case len(p.Steps) > 0 && len(p.Processes) > 0:
			v.add(field, ErrProcessShape, "process %q sets both steps and processes", p.Name)
		case len(p.Steps) == 0 && len(p.Processes) == 0:
			v.add(field, ErrProcessShape, "process %q has no steps or processes", p.Name)
		}

		for j, s := range p.Steps {
			sf := fmt.Sprintf("%s.steps[%d]", field, j)
			comp, ok := v.components[s.Component]
			if !ok {
				v.add(sf, ErrUnknownStepComponent, "step %q: unknown component %q", s.String(), s.Component)
				continue
			}
			if !comp.opaque && !comp.transitions[s.Transition] {
				v.add(sf, ErrUnknownStepTransition, "step %q: component %q has no transition %q", s.String(), s.Component, s.Transition)
			}
		}

		for j, child := range p.Processes {
			if !declared[child] {
				v.add(fmt.Sprintf("%s.processes[%d]", field, j), ErrUnknownChild,
					"process %q: child %q must be declared earlier", p.Name, child)
			}
		}

		for j, w := range p.Watch {
			v.ref(fmt.Sprintf("%s.watch[%d]", field, j), ErrUnknownWatch, w)
		}
		declared[p.Name] = true
	}
}

// validName mirrors the names a model context accepts.
func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, ":. \t\n")
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// Codes returns the distinct codes in errs, in first-seen order.
func Codes(errs []ValidationError) []string {
	var codes []string
	for _, e := range errs {
		if !slices.Contains(codes, e.Code) {
			codes = append(codes, e.Code)
		}
	}
	return codes
}
