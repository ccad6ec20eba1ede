package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/simcore/internal/engine"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/loader"
	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/process"
	"github.com/roach88/simcore/internal/store"
	"github.com/roach88/simcore/internal/testutil"
)

// Option configures Run.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *model.Registry
}

// WithLogger sets the logger for the model and engine. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegistry supplies the component registry (for host-registered kinds).
// Defaults to loader.DefaultRegistry.
func WithRegistry(reg *model.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// fixed run ID generator and a clock starting at 0.
//
// Execution flow:
//  1. Load and validate the model directory
//  2. Apply clamps
//  3. Run the process through the engine, persisting every tick
//  4. Replay the stored run and record a divergence as a failure
//  5. Evaluate assertions
//
// Returned errors are setup failures (bad model, unknown process, clamp
// rejected). Assertion failures are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = loader.DefaultRegistry()
	}

	st, err := store.Open(":memory:", store.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	m, err := loader.LoadDir(scenario.Model, o.registry, loader.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if err := applyClamps(m.Context, scenario.Clamp); err != nil {
		return nil, err
	}

	result := NewResult()
	result.Initial = m.Context.Snapshot()

	ctx := context.Background()
	eng := engine.New(m,
		engine.WithStore(st),
		engine.WithLogger(o.logger),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.Name)),
		engine.WithClock(engine.NewClock()),
	)
	run, err := eng.Run(ctx, scenario.Process, scenario.Ticks, func(t int64) process.Args {
		return process.Args(scenario.ArgsFor(t))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run scenario: %w", err)
	}

	result.Run = run.Run
	result.State = run.Final
	for _, t := range run.Ticks {
		result.AddTick(t)
	}

	o.logger.Info("scenario executed",
		"scenario", scenario.Name,
		"run_id", run.Run.ID,
		"ticks", run.Run.CompletedTicks,
		"skipped", run.Run.SkippedTicks)

	if _, err := engine.Replay(ctx, st, run.Run.ID, o.registry, engine.WithLogger(o.logger)); err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
	}

	actx := &AssertionContext{
		Ctx:       ctx,
		Store:     st,
		RunID:     run.Run.ID,
		ModelName: m.Context.Name(),
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// applyClamps sets compartment values in sorted ref order.
func applyClamps(ctx *model.Context, clamp map[string]any) error {
	for _, ref := range ir.SortedKeys(clamp) {
		comp, name, err := ir.CompartmentRef(ref).Parse()
		if err != nil {
			return fmt.Errorf("clamp: %w", err)
		}
		c, ok := ctx.Component(comp)
		if !ok {
			return fmt.Errorf("clamp %s: unknown component %q", ref, comp)
		}
		cm, ok := c.Compartment(name)
		if !ok {
			return fmt.Errorf("clamp %s: component %s has no compartment %q", ref, comp, name)
		}
		v, err := ir.NormalizeValue(clamp[ref])
		if err != nil {
			return fmt.Errorf("clamp %s: %w", ref, err)
		}
		if err := cm.Set(v); err != nil {
			return fmt.Errorf("clamp %s: %w", ref, err)
		}
	}
	return nil
}
