package model

import (
	"fmt"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/state"
)

// Compartment is a named state slot owned by a component.
//
// The target is one of: the compartment's own store path (unwired), an
// operation, or another compartment's already-resolved target copied at
// forward time. Dereference never chains more than one hop.
type Compartment struct {
	owner *Component
	name  string
	path  string
	fixed bool

	target    string
	op        *Operation
	forwarded *Compartment
}

// Name returns the compartment's attribute name.
func (c *Compartment) Name() string { return c.name }

// Path returns the compartment's root store path.
func (c *Compartment) Path() string { return c.path }

// Fixed reports whether the compartment's value is immutable.
func (c *Compartment) Fixed() bool { return c.fixed }

// Component returns the owning component.
func (c *Compartment) Component() *Component { return c.owner }

// Ref returns the model-relative reference "Component:name".
func (c *Compartment) Ref() ir.CompartmentRef {
	return ir.NewCompartmentRef(c.owner.name, c.name)
}

// Wired reports whether anything has been wired or forwarded into the compartment.
func (c *Compartment) Wired() bool {
	return c.op != nil || c.target != c.path
}

// Operation returns the operation the compartment resolves through, or nil.
func (c *Compartment) Operation() *Operation { return c.op }

// Forwarded returns the compartment this one was forwarded from, or nil.
func (c *Compartment) Forwarded() *Compartment { return c.forwarded }

// Target returns the store path the compartment resolves to, or "" when it
// resolves through an operation.
func (c *Compartment) Target() string {
	if c.op != nil {
		return ""
	}
	return c.target
}

// Get dereferences the target: the store value for a path target, or the
// eager evaluation of an operation target.
func (c *Compartment) Get() (any, error) {
	return c.eval(make(map[*Operation]bool))
}

// Value implements Source.
func (c *Compartment) Value() (any, error) {
	return c.Get()
}

func (c *Compartment) eval(visiting map[*Operation]bool) (any, error) {
	if c.op != nil {
		return c.op.eval(visiting)
	}
	v, ok := c.owner.ctx.store.Get(c.target)
	if !ok {
		return nil, fmt.Errorf("compartment %s: state path %q does not exist", c.Ref(), c.target)
	}
	return v, nil
}

// Set writes v to the compartment's store path. It fails when the
// compartment is fixed or has a source wired in.
func (c *Compartment) Set(v any) error {
	logger := c.owner.ctx.logger
	if c.fixed {
		err := modelErr(ErrCodeFixedCompartment, c.owner.name, c.name, "cannot set a fixed compartment")
		logger.Warn("rejected compartment set", "compartment", c.path, "reason", "fixed")
		return err
	}
	if c.Wired() {
		err := modelErr(ErrCodeWiredCompartment, c.owner.name, c.name, "cannot set a compartment with a wired source")
		logger.Warn("rejected compartment set", "compartment", c.path, "reason", "wired")
		return err
	}
	return c.owner.ctx.store.Set(c.path, v)
}

// Wire makes src the compartment's source. A bare compartment is wrapped in
// an overwrite operation. Rewiring replaces the previous source.
func (c *Compartment) Wire(src Source) error {
	if c.fixed {
		return modelErr(ErrCodeFixedCompartment, c.owner.name, c.name, "cannot wire into a fixed compartment")
	}
	if src == nil {
		return fmt.Errorf("wire %s: nil source", c.Ref())
	}

	op, ok := src.(*Operation)
	if !ok {
		op = Overwrite(src)
	}
	if op.dest != nil && op.dest != c {
		return modelErr(ErrCodeDestinedOperation, c.owner.name, c.name,
			"operation %s already writes %s", op.kind.Name, op.dest.Ref())
	}
	if err := op.validate(); err != nil {
		return fmt.Errorf("wire %s: %w", c.Ref(), err)
	}

	op.dest = c
	c.op = op
	c.target = c.path
	c.forwarded = nil
	c.owner.setConnection(op)
	c.owner.ctx.bump()
	return nil
}

// Forward makes the compartment resolve to src's current target: the same
// store path, or the same operation. Later rewiring of src is not observed.
func (c *Compartment) Forward(src *Compartment) error {
	if c.fixed {
		return modelErr(ErrCodeFixedCompartment, c.owner.name, c.name, "cannot forward into a fixed compartment")
	}
	if src == nil {
		return fmt.Errorf("forward %s: nil source", c.Ref())
	}

	c.owner.dropConnection(c)
	c.op = src.op
	c.target = src.target
	c.forwarded = src
	c.owner.ctx.bump()
	return nil
}

// Reader compiles the read a transition performs on this compartment.
// A compartment written by its own connection reads its store path, which
// the connection step updates first; a forwarded operation is inlined.
func (c *Compartment) Reader() (Reader, error) {
	if c.op != nil && c.op.dest != c {
		return c.op.Compile()
	}
	return Reader{Eval: pathGetter(c.target), Reads: []string{c.target}}, nil
}

func (c *Compartment) compile(visiting map[*Operation]bool) (Reader, error) {
	if c.op != nil {
		return c.op.compile(visiting)
	}
	return Reader{Eval: pathGetter(c.target), Reads: []string{c.target}}, nil
}

func (c *Compartment) sourceSpec() ir.SourceSpec {
	return ir.SourceSpec{Path: string(c.Ref())}
}

// read returns the value a transition would observe through the live store.
func (c *Compartment) read() (any, error) {
	if c.op != nil && c.op.dest != c {
		return c.op.Value()
	}
	v, ok := c.owner.ctx.store.Get(c.target)
	if !ok {
		return nil, fmt.Errorf("compartment %s: state path %q does not exist", c.Ref(), c.target)
	}
	return state.CloneValue(v), nil
}
