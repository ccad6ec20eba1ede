package process

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/state"
)

// Result is the outcome of one execution.
type Result struct {
	// State is the final value of every path in the pulled slice.
	State state.Snapshot

	// Watched holds the watch-list values in watch order.
	Watched []any

	// WatchedByPath keys the same values by compartment store path.
	WatchedByPath map[string]any
}

// Executor is the runtime surface shared by processes and joint processes.
type Executor interface {
	Name() string
	Compiled() bool
	RequiredArgs() []string
	Execute(update bool, args Args) (*Result, error)
	Spec() ir.ProcessSpec
}

// Unit is an executor that can be composed into a JointProcess.
type Unit interface {
	Executor
	artifact() (*Compiled, []*model.Compartment, int64)
}

// Option configures a process.
type Option func(*program)

// WithLogger sets the process logger. Defaults to the context logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *program) {
		p.logger = l
	}
}

// Step is one (component, transition) call.
type Step struct {
	Component  *model.Component
	Transition string
}

type watchReader struct {
	path string
	eval model.Getter
}

// program is the compiled, executable core shared by Process and JointProcess.
type program struct {
	name   string
	ctx    *model.Context
	logger *slog.Logger

	compiled *Compiled
	watch    []*model.Compartment
	readers  []watchReader
	paths    []string
	revision int64
}

func newProgram(ctx *model.Context, name string, opts []Option) program {
	p := program{name: name, ctx: ctx}
	for _, opt := range opts {
		opt(&p)
	}
	if p.logger == nil {
		p.logger = ctx.Logger()
	}
	return p
}

// Name returns the process name.
func (p *program) Name() string { return p.name }

// Compiled reports whether the process holds a compiled artifact.
func (p *program) Compiled() bool { return p.compiled != nil }

// RequiredArgs returns the sorted runtime argument names, or nil before Compile.
func (p *program) RequiredArgs() []string {
	if p.compiled == nil {
		return nil
	}
	return slices.Clone(p.compiled.Args)
}

// Writes returns the store paths the process commits, or nil before Compile.
func (p *program) Writes() []string {
	if p.compiled == nil {
		return nil
	}
	return slices.Clone(p.compiled.Writes)
}

func (p *program) artifact() (*Compiled, []*model.Compartment, int64) {
	return p.compiled, p.watch, p.revision
}

func (p *program) install(c *Compiled, watch []*model.Compartment) error {
	readers := make([]watchReader, len(watch))
	paths := c.Paths()
	for i, w := range watch {
		r, err := w.Reader()
		if err != nil {
			return err
		}
		readers[i] = watchReader{path: w.Path(), eval: r.Eval}
		paths = union(paths, r.Reads)
	}

	p.compiled = c
	p.watch = watch
	p.readers = readers
	p.paths = paths
	p.revision = p.ctx.Revision()
	return nil
}

func (p *program) invalidate() {
	p.compiled = nil
	p.readers = nil
	p.paths = nil
}

// Execute runs the compiled step on a fresh slice of the store. With update
// set, only the keys the process writes are committed back.
//
// Execute never panics. When the process is not compiled, the graph was
// rewired since compilation, a runtime argument is missing, or a step fails,
// it logs a warning, leaves the store untouched, and returns an error
// wrapping the matching model sentinel.
func (p *program) Execute(update bool, args Args) (*Result, error) {
	if p.compiled == nil {
		p.logger.Warn("process execution skipped", "process", p.name, "reason", "not compiled")
		return nil, fmt.Errorf("process %q: %w", p.name, model.ErrNotCompiled)
	}
	if p.ctx.Revision() != p.revision {
		p.logger.Warn("process execution skipped", "process", p.name, "reason", "graph changed")
		return nil, fmt.Errorf("process %q: %w", p.name, model.ErrGraphChanged)
	}

	var missing []string
	for _, name := range p.compiled.Args {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		p.logger.Warn("process execution skipped",
			"process", p.name,
			"reason", "missing arguments",
			"missing", missing)
		return nil, fmt.Errorf("process %q: %w: %v", p.name, model.ErrMissingArgument, missing)
	}

	slice := p.ctx.Store().Slice(p.paths)
	final, err := p.compiled.Step(slice, args)
	if err != nil {
		return nil, p.stepFailed(err)
	}

	res := &Result{
		State:         final,
		Watched:       make([]any, len(p.readers)),
		WatchedByPath: make(map[string]any, len(p.readers)),
	}
	for i, r := range p.readers {
		v, err := r.eval(final)
		if err != nil {
			return nil, p.stepFailed(err)
		}
		res.Watched[i] = v
		res.WatchedByPath[r.path] = v
	}

	if update {
		if err := p.ctx.Store().Commit(final, p.compiled.Writes); err != nil {
			return nil, p.stepFailed(err)
		}
	}

	p.logger.Debug("process executed",
		"process", p.name,
		"update", update,
		"writes", len(p.compiled.Writes))
	return res, nil
}

func (p *program) stepFailed(err error) error {
	p.logger.Warn("process execution skipped",
		"process", p.name,
		"reason", "step failed",
		"error", err)
	return fmt.Errorf("process %q: %w: %w", p.name, model.ErrStepFailed, err)
}

// Process is an ordered list of transition calls plus a watch list.
type Process struct {
	program
	steps []Step
}

// New creates an empty process over ctx.
func New(ctx *model.Context, name string, opts ...Option) *Process {
	return &Process{program: newProgram(ctx, name, opts)}
}

// Then appends a transition call. Any compiled artifact is discarded.
func (p *Process) Then(c *model.Component, transition string) *Process {
	p.steps = append(p.steps, Step{Component: c, Transition: transition})
	p.invalidate()
	return p
}

// Watch appends compartments whose final values every execution returns.
// Any compiled artifact is discarded.
func (p *Process) Watch(cs ...*model.Compartment) *Process {
	p.watch = append(p.watch, cs...)
	p.invalidate()
	return p
}

// Steps returns the appended transition calls.
func (p *Process) Steps() []Step {
	return slices.Clone(p.steps)
}

// Compile composes every step into one function. Compilation is
// deterministic for an unchanged graph.
func (p *Process) Compile() error {
	acc := empty()
	for i, st := range p.steps {
		if st.Component == nil || st.Component.Context() != p.ctx {
			return fmt.Errorf("process %q: step %d: component does not belong to context %q", p.name, i, p.ctx.Name())
		}
		t, err := st.Component.Transition(st.Transition)
		if err != nil {
			return fmt.Errorf("process %q: %w", p.name, err)
		}
		c, err := CompileTransition(t, p.logger)
		if err != nil {
			return fmt.Errorf("process %q: %w", p.name, err)
		}
		acc = acc.Then(c)
	}
	for _, w := range p.watch {
		if w.Component().Context() != p.ctx {
			return fmt.Errorf("process %q: watched compartment %s belongs to another context", p.name, w.Ref())
		}
	}

	if err := p.install(acc, slices.Clone(p.watch)); err != nil {
		return fmt.Errorf("process %q: %w", p.name, err)
	}
	p.logger.Debug("process compiled",
		"process", p.name,
		"steps", len(p.steps),
		"args", acc.Args)
	return nil
}

// Spec returns the persistable description: the ordered step list and the
// watch-list references.
func (p *Process) Spec() ir.ProcessSpec {
	spec := ir.ProcessSpec{Name: p.name}
	for _, st := range p.steps {
		spec.Steps = append(spec.Steps, ir.StepSpec{Component: st.Component.Name(), Transition: st.Transition})
	}
	for _, w := range p.watch {
		spec.Watch = append(spec.Watch, string(w.Ref()))
	}
	return spec
}

// JointProcess composes compiled processes with the same sequential rule,
// merging their required arguments and watch lists.
type JointProcess struct {
	program
	children []Unit
}

// NewJoint creates a joint process over ctx.
func NewJoint(ctx *model.Context, name string, children []Unit, opts ...Option) *JointProcess {
	return &JointProcess{program: newProgram(ctx, name, opts), children: slices.Clone(children)}
}

// Children returns the composed processes in order.
func (j *JointProcess) Children() []Unit {
	return slices.Clone(j.children)
}

// Compile composes the children's artifacts. Every child must already be
// compiled against the current graph.
func (j *JointProcess) Compile() error {
	acc := empty()
	var watch []*model.Compartment
	for _, child := range j.children {
		c, childWatch, rev := child.artifact()
		if c == nil || rev != j.ctx.Revision() {
			return model.NewCompileError(model.ErrCodeNotCompiled, "", "",
				"joint process %q: child %q must be compiled against the current graph", j.name, child.Name())
		}
		acc = acc.Then(c)
		watch = append(watch, childWatch...)
	}

	if err := j.install(acc, watch); err != nil {
		return fmt.Errorf("joint process %q: %w", j.name, err)
	}
	j.logger.Debug("joint process compiled",
		"process", j.name,
		"children", len(j.children),
		"args", acc.Args)
	return nil
}

// Spec returns the persistable description: the child process names.
func (j *JointProcess) Spec() ir.ProcessSpec {
	spec := ir.ProcessSpec{Name: j.name}
	for _, child := range j.children {
		spec.Processes = append(spec.Processes, child.Name())
	}
	return spec
}
