package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/simcore/internal/ir"
)

// Factory builds the constructor config for one component kind.
// Required lists the parameter keys that must be present in the ComponentSpec.
type Factory struct {
	Required []string
	Build    func(spec ir.ComponentSpec) (Config, error)
}

// Registry maps kind names to factories and operation names to operation
// kinds. The host program registers its kinds explicitly; nothing is
// resolved by name behind its back.
type Registry struct {
	kinds map[string]Factory
	ops   map[string]OperationKind
}

// NewRegistry creates a registry holding the built-in operations.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Factory),
		ops:   maps.Clone(builtinOperations),
	}
}

// Register adds a component kind.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return fmt.Errorf("register: empty kind name")
	}
	if f.Build == nil {
		return fmt.Errorf("register %q: factory has no Build function", kind)
	}
	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("register %q: kind already registered", kind)
	}
	r.kinds[kind] = f
	return nil
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	return slices.Sorted(maps.Keys(r.kinds))
}

// RegisterOperation adds a custom operation kind.
func (r *Registry) RegisterOperation(k OperationKind) error {
	if k.Name == "" {
		return fmt.Errorf("register operation: empty name")
	}
	if k.Eval == nil {
		return fmt.Errorf("register operation %q: no Eval function", k.Name)
	}
	if _, exists := r.ops[k.Name]; exists {
		return fmt.Errorf("register operation %q: already registered", k.Name)
	}
	r.ops[k.Name] = k
	return nil
}

// Operations returns the registered operation names, sorted.
func (r *Registry) Operations() []string {
	return slices.Sorted(maps.Keys(r.ops))
}

// NewOperation builds an operation of a registered kind.
func (r *Registry) NewOperation(name string, sources ...Source) (*Operation, error) {
	k, ok := r.ops[name]
	if !ok {
		return nil, modelErr(ErrCodeUnknownOperation, "", name, "operation %q is not registered", name)
	}
	op := newOperation(k, sources)
	if err := op.validate(); err != nil {
		return nil, err
	}
	return op, nil
}

// Build constructs a component from its spec and registers it in ctx.
// The spec is retained as the component's constructor arguments for export.
func (r *Registry) Build(ctx *Context, spec ir.ComponentSpec) (*Component, error) {
	f, ok := r.kinds[spec.Kind]
	if !ok {
		return nil, modelErr(ErrCodeUnknownKind, spec.Name, spec.Kind, "no factory registered for kind %q", spec.Kind)
	}

	var missing []string
	for _, key := range f.Required {
		if _, ok := spec.Params[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, modelErr(ErrCodeMissingArgument, spec.Name, missing[0],
			"missing required constructor keywords %v", missing)
	}

	cfg, err := f.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("build component %q: %w", spec.Name, err)
	}
	cfg.Kind = spec.Kind
	if cfg.Params == nil {
		cfg.Params = spec.Params
	}

	comp, err := ctx.Create(spec.Name, cfg)
	if err != nil {
		return nil, err
	}
	source := spec
	source.Params = maps.Clone(spec.Params)
	source.Compartments = slices.Clone(spec.Compartments)
	source.Transitions = slices.Clone(spec.Transitions)
	comp.source = &source
	return comp, nil
}
