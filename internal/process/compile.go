package process

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/state"
)

// Args are the runtime keyword arguments of one execution.
type Args map[string]any

// StepFunc is a compiled step: a map from state to state.
type StepFunc func(s state.Snapshot, args Args) (state.Snapshot, error)

// Compose runs a then b; b observes every write a made.
func Compose(a, b StepFunc) StepFunc {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(s state.Snapshot, args Args) (state.Snapshot, error) {
		next, err := a(s, args)
		if err != nil {
			return nil, err
		}
		return b(next, args)
	}
}

func identity(s state.Snapshot, _ Args) (state.Snapshot, error) {
	return s, nil
}

// Compiled is a composed step with the store paths and runtime arguments it
// needs.
type Compiled struct {
	Step   StepFunc
	Args   []string
	Reads  []string
	Writes []string
}

func empty() *Compiled {
	return &Compiled{Step: identity}
}

// Then composes next after c.
func (c *Compiled) Then(next *Compiled) *Compiled {
	args := union(c.Args, next.Args)
	slices.Sort(args)
	return &Compiled{
		Step:   Compose(c.Step, next.Step),
		Args:   args,
		Reads:  union(c.Reads, next.Reads),
		Writes: union(c.Writes, next.Writes),
	}
}

// Paths returns every store path the step touches.
func (c *Compiled) Paths() []string {
	return union(c.Reads, c.Writes)
}

// CompileTransition compiles one transition call: the connections feeding
// the transition's component, followed by the transition body.
func CompileTransition(t *model.Transition, logger *slog.Logger) (*Compiled, error) {
	comp := t.Component()
	if err := model.CheckOutputs(t); err != nil {
		return nil, err
	}

	out := empty()
	for _, op := range comp.Connections() {
		conn, err := compileConnection(op)
		if err != nil {
			return nil, err
		}
		out = out.Then(conn)
	}

	outputs := t.Outputs()
	if len(outputs) == 0 {
		logger.Warn("transition declares no outputs, compiled as a no-op",
			"component", comp.Name(),
			"transition", t.Name())
		return out, nil
	}

	for _, name := range outputs {
		if c, ok := comp.Compartment(name); ok && c.Wired() {
			logger.Warn("transition output is also wired, its connection overwrites the write on the next step",
				"component", comp.Name(),
				"transition", t.Name(),
				"compartment", name)
		}
	}

	body, err := compileBody(t)
	if err != nil {
		return nil, err
	}
	return out.Then(body), nil
}

func compileConnection(op *model.Operation) (*Compiled, error) {
	r, err := op.Compile()
	if err != nil {
		return nil, err
	}
	dest := op.Destination().Path()
	eval := r.Eval
	return &Compiled{
		Step: func(s state.Snapshot, _ Args) (state.Snapshot, error) {
			v, err := eval(s)
			if err != nil {
				return nil, fmt.Errorf("connection into %s: %w", dest, err)
			}
			s[dest] = v
			return s, nil
		},
		Reads:  r.Reads,
		Writes: []string{dest},
	}, nil
}

type namedReader struct {
	name string
	eval model.Getter
}

func compileBody(t *model.Transition) (*Compiled, error) {
	comp := t.Component()
	inputs := t.Inputs()
	label := comp.Name() + "." + t.Name()

	var reads []string
	readers := make([]namedReader, 0, len(inputs.Compartments))
	for _, name := range inputs.Compartments {
		c, _ := comp.Compartment(name)
		r, err := c.Reader()
		if err != nil {
			return nil, err
		}
		readers = append(readers, namedReader{name: name, eval: r.Eval})
		reads = union(reads, r.Reads)
	}

	// Parameters are compile-time constants.
	params := make(model.Values, len(inputs.Params))
	for _, name := range inputs.Params {
		v, _ := comp.Param(name)
		params[name] = state.CloneValue(v)
	}

	outputs := t.Outputs()
	outPaths := make([]string, len(outputs))
	for i, name := range outputs {
		c, _ := comp.Compartment(name)
		outPaths[i] = c.Path()
	}

	argNames := inputs.Args
	fn := t.Func()
	step := func(s state.Snapshot, args Args) (state.Snapshot, error) {
		in := make(model.Values, len(readers)+len(params)+len(argNames))
		for _, r := range readers {
			v, err := r.eval(s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", label, err)
			}
			in[r.name] = v
		}
		for name, v := range params {
			in[name] = state.CloneValue(v)
		}
		for _, name := range argNames {
			v, ok := args[name]
			if !ok {
				return nil, fmt.Errorf("%s: %w: %s", label, model.ErrMissingArgument, name)
			}
			in[name] = v
		}

		res, err := fn(in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		if len(res) != len(outPaths) {
			return nil, fmt.Errorf("%s: returned %d values for %d outputs", label, len(res), len(outPaths))
		}
		for i, p := range outPaths {
			s[p] = res[i]
		}
		return s, nil
	}

	args := slices.Clone(argNames)
	slices.Sort(args)
	return &Compiled{Step: step, Args: args, Reads: reads, Writes: outPaths}, nil
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
