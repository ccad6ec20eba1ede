package loader

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/roach88/simcore/internal/compiler"
	"github.com/roach88/simcore/internal/expr"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/process"
	"github.com/roach88/simcore/internal/state"
)

// Model is a loaded model: its context and processes, in declaration order.
type Model struct {
	Spec    ir.ModelSpec
	Context *model.Context

	processes []process.Unit
	byName    map[string]process.Unit
}

// Process returns a loaded process by name.
func (m *Model) Process(name string) (process.Executor, bool) {
	p, ok := m.byName[name]
	return p, ok
}

// Processes returns every loaded process in declaration order.
func (m *Model) Processes() []process.Executor {
	out := make([]process.Executor, len(m.processes))
	for i, p := range m.processes {
		out[i] = p
	}
	return out
}

// Export rebuilds the model description from the live context.
func (m *Model) Export() ir.ModelSpec {
	return Export(m.Context, m.Processes())
}

// Option configures Load.
type Option func(*options)

type options struct {
	logger *slog.Logger
	store  *state.Store
}

// WithLogger sets the logger used by the context and its processes.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStore backs the context with an existing store.
func WithStore(s *state.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// DefaultRegistry returns a registry holding the built-in operations and
// the expr kind.
func DefaultRegistry() *model.Registry {
	reg := model.NewRegistry()
	if err := expr.Register(reg); err != nil {
		panic(fmt.Sprintf("register expr kind: %v", err))
	}
	return reg
}

// Load builds spec into a fresh context and compiles every process.
//
// Errors within a phase are collected; a later phase only runs when the
// earlier ones succeeded, since it depends on their results. A nil
// registry uses DefaultRegistry.
func Load(spec ir.ModelSpec, reg *model.Registry, opts ...Option) (*Model, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = DefaultRegistry()
	}

	ctxOpts := []model.ContextOption{model.WithLogger(o.logger)}
	if o.store != nil {
		ctxOpts = append(ctxOpts, model.WithStore(o.store))
	}
	ctx := model.NewContext(spec.Name, ctxOpts...)

	var errs error
	for _, cs := range spec.Components {
		if _, err := reg.Build(ctx, cs); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}

	// Forwards copy the source's resolved target, so they run after every
	// plain wire.
	for _, w := range spec.Wires {
		if !w.Forward {
			errs = multierr.Append(errs, wire(ctx, reg, w))
		}
	}
	for _, w := range spec.Wires {
		if w.Forward {
			errs = multierr.Append(errs, forward(ctx, w))
		}
	}
	if errs != nil {
		return nil, errs
	}

	m := &Model{Spec: spec, Context: ctx, byName: make(map[string]process.Unit)}
	for _, ps := range spec.Processes {
		if _, exists := m.byName[ps.Name]; exists {
			errs = multierr.Append(errs, fmt.Errorf("process %q declared twice", ps.Name))
			continue
		}
		p, err := m.buildProcess(ps, o.logger)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		m.processes = append(m.processes, p)
		m.byName[ps.Name] = p
	}
	if errs != nil {
		return nil, errs
	}

	o.logger.Debug("model loaded",
		"model", spec.Name,
		"components", len(spec.Components),
		"wires", len(spec.Wires),
		"processes", len(spec.Processes))
	return m, nil
}

// LoadDir compiles, validates and loads the CUE model in dir.
// Validation errors are returned together.
func LoadDir(dir string, reg *model.Registry, opts ...Option) (*Model, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	res, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if verrs := compiler.Validate(res.Model, reg); len(verrs) > 0 {
		var errs error
		for _, ve := range verrs {
			errs = multierr.Append(errs, ve)
		}
		return nil, errs
	}
	return Load(*res.Model, reg, opts...)
}

func compartment(ctx *model.Context, ref string) (*model.Compartment, error) {
	compName, name, err := ir.CompartmentRef(ref).Parse()
	if err != nil {
		return nil, err
	}
	comp, ok := ctx.Component(compName)
	if !ok {
		return nil, fmt.Errorf("unknown component %q in %q", compName, ref)
	}
	c, ok := comp.Compartment(name)
	if !ok {
		return nil, fmt.Errorf("component %q has no compartment %q", compName, name)
	}
	return c, nil
}

func wire(ctx *model.Context, reg *model.Registry, w ir.WireSpec) error {
	dest, err := compartment(ctx, w.To)
	if err != nil {
		return fmt.Errorf("wire to %s: %w", w.To, err)
	}
	src, err := source(ctx, reg, w.From)
	if err != nil {
		return fmt.Errorf("wire to %s: %w", w.To, err)
	}
	return dest.Wire(src)
}

func forward(ctx *model.Context, w ir.WireSpec) error {
	if w.From.Op != nil || w.From.Path == "" {
		return fmt.Errorf("forward to %s: source must be a single compartment", w.To)
	}
	dest, err := compartment(ctx, w.To)
	if err != nil {
		return fmt.Errorf("forward to %s: %w", w.To, err)
	}
	src, err := compartment(ctx, w.From.Path)
	if err != nil {
		return fmt.Errorf("forward to %s: %w", w.To, err)
	}
	return dest.Forward(src)
}

func source(ctx *model.Context, reg *model.Registry, spec ir.SourceSpec) (model.Source, error) {
	if spec.Op == nil {
		c, err := compartment(ctx, spec.Path)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	sources := make([]model.Source, 0, len(spec.Op.Sources))
	for _, s := range spec.Op.Sources {
		src, err := source(ctx, reg, s)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return reg.NewOperation(spec.Op.Op, sources...)
}

func (m *Model) buildProcess(ps ir.ProcessSpec, logger *slog.Logger) (process.Unit, error) {
	opts := []process.Option{process.WithLogger(logger)}

	if ps.IsJoint() {
		children := make([]process.Unit, 0, len(ps.Processes))
		for _, name := range ps.Processes {
			child, ok := m.byName[name]
			if !ok {
				return nil, fmt.Errorf("joint process %q: unknown child %q", ps.Name, name)
			}
			children = append(children, child)
		}
		j := process.NewJoint(m.Context, ps.Name, children, opts...)
		if err := j.Compile(); err != nil {
			return nil, err
		}
		return j, nil
	}

	p := process.New(m.Context, ps.Name, opts...)
	for _, st := range ps.Steps {
		comp, ok := m.Context.Component(st.Component)
		if !ok {
			return nil, fmt.Errorf("process %q: step %s: unknown component %q", ps.Name, st, st.Component)
		}
		p.Then(comp, st.Transition)
	}
	for _, ref := range ps.Watch {
		c, err := compartment(m.Context, ref)
		if err != nil {
			return nil, fmt.Errorf("process %q: watch: %w", ps.Name, err)
		}
		p.Watch(c)
	}
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return p, nil
}
