package model

import (
	"fmt"
	"slices"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/state"
)

// Getter reads a value from a state snapshot.
type Getter func(state.Snapshot) (any, error)

// Reader is a compiled read: the getter plus the store paths it touches.
type Reader struct {
	Eval  Getter
	Reads []string
}

// Source is anything a compartment can be wired from: a compartment or an
// operation.
type Source interface {
	// Value evaluates the source against live store values.
	Value() (any, error)

	eval(visiting map[*Operation]bool) (any, error)
	compile(visiting map[*Operation]bool) (Reader, error)
	sourceSpec() ir.SourceSpec
}

// OperationFunc combines source values in source order.
type OperationFunc func(values []any) (any, error)

// OperationKind describes a class of operation.
type OperationKind struct {
	Name string

	// Compilable is false for operations that read their destination at
	// evaluation time.
	Compilable bool

	// MinSources and MaxSources bound the source count; MaxSources 0 means unbounded.
	MinSources int
	MaxSources int

	Eval OperationFunc

	// Accumulate combines the destination's current value with Eval's
	// result during interpreted resolution. Nil means overwrite.
	Accumulate func(current, value any) (any, error)
}

// Built-in operation names.
const (
	OpOverwrite = "overwrite"
	OpNegate    = "negate"
	OpSummation = "summation"
	OpProduct   = "product"
	OpAdd       = "add"
)

var builtinOperations = map[string]OperationKind{
	OpOverwrite: {
		Name:       OpOverwrite,
		Compilable: true,
		MinSources: 1,
		MaxSources: 1,
		Eval: func(values []any) (any, error) {
			return state.CloneValue(values[0]), nil
		},
	},
	OpNegate: {
		Name:       OpNegate,
		Compilable: true,
		MinSources: 1,
		MaxSources: 1,
		Eval: func(values []any) (any, error) {
			return negate(values[0])
		},
	},
	OpSummation: {
		Name:       OpSummation,
		Compilable: true,
		MinSources: 1,
		Eval: func(values []any) (any, error) {
			return fold(addKernel, values)
		},
	},
	OpProduct: {
		Name:       OpProduct,
		Compilable: true,
		MinSources: 1,
		Eval: func(values []any) (any, error) {
			return fold(mulKernel, values)
		},
	},
	OpAdd: {
		Name:       OpAdd,
		Compilable: false,
		MinSources: 1,
		Eval: func(values []any) (any, error) {
			return fold(addKernel, values)
		},
		Accumulate: addKernel.apply,
	},
}

// Operation is an expression node over compartments and nested operations.
// Sources are fixed at construction; the destination is set once, when the
// operation is wired into a compartment.
type Operation struct {
	kind    OperationKind
	sources []Source
	dest    *Compartment
}

func newOperation(kind OperationKind, sources []Source) *Operation {
	return &Operation{kind: kind, sources: slices.Clone(sources)}
}

// Overwrite copies its single source.
func Overwrite(src Source) *Operation {
	return newOperation(builtinOperations[OpOverwrite], []Source{src})
}

// Negate negates its single source.
func Negate(src Source) *Operation {
	return newOperation(builtinOperations[OpNegate], []Source{src})
}

// Summation adds its sources.
func Summation(sources ...Source) *Operation {
	return newOperation(builtinOperations[OpSummation], sources)
}

// Product multiplies its sources.
func Product(sources ...Source) *Operation {
	return newOperation(builtinOperations[OpProduct], sources)
}

// Add accumulates the sum of its sources into the destination's current
// value. It cannot be compiled.
func Add(sources ...Source) *Operation {
	return newOperation(builtinOperations[OpAdd], sources)
}

// Kind returns the operation kind name.
func (o *Operation) Kind() string { return o.kind.Name }

// Compilable reports whether the operation can be compiled.
func (o *Operation) Compilable() bool { return o.kind.Compilable }

// Sources returns the operation's sources in order.
func (o *Operation) Sources() []Source { return slices.Clone(o.sources) }

// Destination returns the compartment the operation writes, or nil.
func (o *Operation) Destination() *Compartment { return o.dest }

func (o *Operation) validate() error {
	n := len(o.sources)
	if n < o.kind.MinSources || (o.kind.MaxSources > 0 && n > o.kind.MaxSources) {
		return fmt.Errorf("operation %s: got %d sources", o.kind.Name, n)
	}
	for i, src := range o.sources {
		if src == nil {
			return fmt.Errorf("operation %s: source %d is nil", o.kind.Name, i)
		}
		if nested, ok := src.(*Operation); ok {
			if err := nested.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Operation) owner() string {
	if o.dest != nil {
		return o.dest.owner.name
	}
	return ""
}

// Value evaluates the operation eagerly from live compartment values.
func (o *Operation) Value() (any, error) {
	return o.eval(make(map[*Operation]bool))
}

func (o *Operation) eval(visiting map[*Operation]bool) (any, error) {
	if visiting[o] {
		return nil, compileErr(ErrCodeWiringCycle, o.owner(), "", "operation %s depends on itself", o.kind.Name)
	}
	visiting[o] = true
	defer delete(visiting, o)

	values := make([]any, len(o.sources))
	for i, src := range o.sources {
		v, err := src.eval(visiting)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return o.kind.Eval(values)
}

// Resolve is the interpreted write path: it evaluates the operation and
// stores the result at the destination, accumulating for kinds such as add.
func (o *Operation) Resolve() error {
	if o.dest == nil {
		return fmt.Errorf("operation %s has no destination", o.kind.Name)
	}
	v, err := o.Value()
	if err != nil {
		return err
	}

	store := o.dest.owner.ctx.store
	if o.kind.Accumulate != nil {
		current, _ := store.Get(o.dest.path)
		if v, err = o.kind.Accumulate(current, v); err != nil {
			return fmt.Errorf("operation %s: %w", o.kind.Name, err)
		}
	}
	return store.Set(o.dest.path, v)
}

// Compile returns a pure reader equivalent to Value over a state snapshot.
// Source compartments that are themselves wired to operations are inlined.
func (o *Operation) Compile() (Reader, error) {
	return o.compile(make(map[*Operation]bool))
}

func (o *Operation) compile(visiting map[*Operation]bool) (Reader, error) {
	if !o.kind.Compilable {
		return Reader{}, compileErr(ErrCodeNotCompilable, o.owner(), "", "operation %s reads its destination and cannot be compiled", o.kind.Name)
	}
	if visiting[o] {
		return Reader{}, compileErr(ErrCodeWiringCycle, o.owner(), "", "operation %s depends on itself", o.kind.Name)
	}
	visiting[o] = true
	defer delete(visiting, o)

	getters := make([]Getter, len(o.sources))
	var reads []string
	for i, src := range o.sources {
		r, err := src.compile(visiting)
		if err != nil {
			return Reader{}, err
		}
		getters[i] = r.Eval
		reads = appendUnique(reads, r.Reads...)
	}

	eval := o.kind.Eval
	return Reader{
		Eval: func(s state.Snapshot) (any, error) {
			values := make([]any, len(getters))
			for i, g := range getters {
				v, err := g(s)
				if err != nil {
					return nil, err
				}
				values[i] = v
			}
			return eval(values)
		},
		Reads: reads,
	}, nil
}

// Spec serializes the operation tree.
func (o *Operation) Spec() ir.OperationSpec {
	spec := ir.OperationSpec{Op: o.kind.Name, Sources: make([]ir.SourceSpec, len(o.sources))}
	for i, src := range o.sources {
		spec.Sources[i] = src.sourceSpec()
	}
	return spec
}

func (o *Operation) sourceSpec() ir.SourceSpec {
	spec := o.Spec()
	return ir.SourceSpec{Op: &spec}
}

func pathGetter(path string) Getter {
	return func(s state.Snapshot) (any, error) {
		v, ok := s[path]
		if !ok {
			return nil, fmt.Errorf("state has no value for %q", path)
		}
		return v, nil
	}
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}
