package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/state"
)

// Config is the constructor data for a component.
type Config struct {
	Kind         string
	Params       map[string]any
	Compartments []CompartmentDecl
	Transitions  []TransitionDecl
}

// CompartmentDecl declares a compartment and its initial value.
type CompartmentDecl struct {
	Name    string
	Initial any
	Fixed   bool
}

// Component owns a fixed set of compartments and parameters, declares
// transitions, and accumulates the connections wired into its compartments.
type Component struct {
	ctx  *Context
	name string
	path string
	kind string

	params       map[string]any
	compartments map[string]*Compartment
	order        []string

	transitions     map[string]*Transition
	transitionOrder []string

	connections []*Operation
	source      *ir.ComponentSpec
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// Path returns the component's store path prefix.
func (c *Component) Path() string { return c.path }

// Kind returns the constructor kind, or "" for directly created components.
func (c *Component) Kind() string { return c.kind }

// Context returns the owning context.
func (c *Component) Context() *Context { return c.ctx }

// Compartment looks up a compartment by name.
func (c *Component) Compartment(name string) (*Compartment, bool) {
	comp, ok := c.compartments[name]
	return comp, ok
}

// Compartments returns the compartments in declaration order.
func (c *Component) Compartments() []*Compartment {
	out := make([]*Compartment, len(c.order))
	for i, name := range c.order {
		out[i] = c.compartments[name]
	}
	return out
}

// Param returns a parameter value.
func (c *Component) Param(name string) (any, bool) {
	v, ok := c.params[name]
	return v, ok
}

// Params returns a copy of the parameters.
func (c *Component) Params() map[string]any {
	return maps.Clone(c.params)
}

// Transition looks up a declared transition.
func (c *Component) Transition(name string) (*Transition, error) {
	t, ok := c.transitions[name]
	if !ok {
		return nil, modelErr(ErrCodeUnknownTransition, c.name, name, "component declares no transition %q", name)
	}
	return t, nil
}

// Transitions returns the transitions in declaration order.
func (c *Component) Transitions() []*Transition {
	out := make([]*Transition, len(c.transitionOrder))
	for i, name := range c.transitionOrder {
		out[i] = c.transitions[name]
	}
	return out
}

// Connections returns the operations wired into this component's
// compartments, in the order the destinations were first wired.
func (c *Component) Connections() []*Operation {
	return slices.Clone(c.connections)
}

// Classify partitions names against the component's attributes.
// Duplicates are dropped; order is preserved within each class.
func (c *Component) Classify(names []string) Classification {
	var cl Classification
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		switch {
		case c.compartments[n] != nil:
			cl.Compartments = append(cl.Compartments, n)
		case c.hasParam(n):
			cl.Params = append(cl.Params, n)
		default:
			cl.Args = append(cl.Args, n)
		}
	}
	return cl
}

func (c *Component) hasParam(name string) bool {
	_, ok := c.params[name]
	return ok
}

func (c *Component) setConnection(op *Operation) {
	for i, existing := range c.connections {
		if existing.dest == op.dest {
			c.connections[i] = op
			return
		}
	}
	c.connections = append(c.connections, op)
}

func (c *Component) dropConnection(dest *Compartment) {
	c.connections = slices.DeleteFunc(c.connections, func(op *Operation) bool {
		return op.dest == dest
	})
}

// ResolveConnections evaluates every connection against the live store and
// writes the results to their destinations. This is the interpreted
// reference for the compiled connection steps.
func (c *Component) ResolveConnections() error {
	for _, op := range c.connections {
		if err := op.Resolve(); err != nil {
			return fmt.Errorf("component %s: %w", c.name, err)
		}
	}
	return nil
}

// Call runs one transition directly against the store: connections are
// resolved, the function is called on live values, and outputs are written
// back. This is the interpreted reference for a compiled process step.
func (c *Component) Call(transition string, args Values) error {
	t, err := c.Transition(transition)
	if err != nil {
		return err
	}
	if err := CheckOutputs(t); err != nil {
		return err
	}
	if err := c.ResolveConnections(); err != nil {
		return err
	}

	in := make(Values)
	for _, name := range t.inputs.Compartments {
		v, err := c.compartments[name].read()
		if err != nil {
			return err
		}
		in[name] = v
	}
	for _, name := range t.inputs.Params {
		in[name] = state.CloneValue(c.params[name])
	}
	var missing []string
	for _, name := range t.inputs.Args {
		v, ok := args[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		in[name] = v
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s.%s: %w: %v", c.name, transition, ErrMissingArgument, missing)
	}

	if len(t.outputs) == 0 {
		return nil
	}
	out, err := t.fn(in)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", c.name, transition, err)
	}
	if len(out) != len(t.outputs) {
		return fmt.Errorf("%s.%s: returned %d values for %d outputs", c.name, transition, len(out), len(t.outputs))
	}
	for i, name := range t.outputs {
		if err := c.ctx.store.Set(c.compartments[name].path, out[i]); err != nil {
			return err
		}
	}
	return nil
}

// CheckOutputs verifies every declared output is a non-fixed compartment
// and every branch input is fixed at compile time.
func CheckOutputs(t *Transition) error {
	c := t.owner
	for _, name := range t.outputs {
		comp, ok := c.compartments[name]
		if !ok {
			return compileErr(ErrCodeNonCompartmentOutput, c.name, t.name, "output %q is not a compartment", name)
		}
		if comp.fixed {
			return compileErr(ErrCodeFixedOutput, c.name, t.name, "output %q is a fixed compartment", name)
		}
	}
	for _, name := range t.branchOn {
		if comp, ok := c.compartments[name]; ok {
			if !comp.fixed {
				return compileErr(ErrCodeStateDependentBranch, c.name, t.name,
					"conditionals cannot depend on model state: %q is a non-fixed compartment", name)
			}
			continue
		}
		if c.hasParam(name) {
			continue
		}
		if slices.Contains(t.inputs.Args, name) {
			return compileErr(ErrCodeStateDependentBranch, c.name, t.name,
				"conditionals cannot depend on runtime argument %q", name)
		}
		return compileErr(ErrCodeUnknownInput, c.name, t.name, "branch input %q is not a declared input", name)
	}
	return nil
}

// Spec returns the constructor arguments needed to rebuild the component.
func (c *Component) Spec() ir.ComponentSpec {
	if c.source != nil {
		spec := *c.source
		spec.Name = c.name
		spec.Params = maps.Clone(c.source.Params)
		spec.Compartments = slices.Clone(c.source.Compartments)
		spec.Transitions = slices.Clone(c.source.Transitions)
		return spec
	}
	return ir.ComponentSpec{
		Name:   c.name,
		Kind:   c.kind,
		Params: maps.Clone(c.params),
	}
}
