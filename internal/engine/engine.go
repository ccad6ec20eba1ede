package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/loader"
	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/process"
	"github.com/roach88/simcore/internal/state"
	"github.com/roach88/simcore/internal/store"
)

// ArgSchedule returns the runtime arguments for a tick (numbered from 1).
type ArgSchedule func(tick int64) process.Args

// Constant returns a schedule that passes the same arguments every tick.
func Constant(args process.Args) ArgSchedule {
	return func(int64) process.Args { return args }
}

// Hooks are called synchronously from Run after each tick is recorded.
type Hooks struct {
	// OnTick is called for every executed tick.
	OnTick func(tick ir.Tick, res *process.Result)

	// OnSkip is called for every skipped tick with the execution error.
	OnSkip func(tick ir.Tick, err error)
}

// Engine runs the processes of one loaded model.
//
// An Engine is not safe for concurrent use: Run and Replay execute ticks
// against the model's single state store.
type Engine struct {
	model           *loader.Model
	store           *store.Store
	clock           *Clock
	runIDs          RunIDGenerator
	hooks           Hooks
	metrics         *Metrics
	checkpointEvery int64
	logger          *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStore persists runs, ticks and checkpoints to s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithHooks installs lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithCheckpointEvery checkpoints the full state every n ticks. Tick 0 and
// the last tick of a run are always checkpointed; n <= 0 disables the
// periodic ones.
func WithCheckpointEvery(n int64) Option {
	return func(e *Engine) {
		e.checkpointEvery = n
	}
}

// WithRunIDGenerator replaces the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithMetrics records tick counts and durations on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock sets the run seq clock. Without it the engine starts from the
// highest seq in its store, or 0.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an engine for m.
func New(m *loader.Model, opts ...Option) *Engine {
	e := &Engine{
		model:  m,
		runIDs: UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult is the outcome of Run.
type RunResult struct {
	Run   ir.Run
	Ticks []ir.Tick
	Final state.Snapshot
}

// Run executes the named process for ticks ticks, committing after each.
//
// The context is checked between ticks. On cancellation the run is
// finished with status cancelled and Run returns the partial result along
// with the context error. Store and hashing failures finish the run as
// failed and are returned.
func (e *Engine) Run(ctx context.Context, name string, ticks int64, schedule ArgSchedule) (*RunResult, error) {
	p, ok := e.model.Process(name)
	if !ok {
		return nil, unknownProcessError(name)
	}
	if ticks < 0 {
		return nil, &RuntimeError{
			Code:    ErrCodeInvalidTicks,
			Message: fmt.Sprintf("tick count must not be negative, got %d", ticks),
			Process: name,
		}
	}
	if schedule == nil {
		schedule = Constant(nil)
	}
	if err := e.ensureClock(ctx); err != nil {
		return nil, err
	}

	spec := e.model.Export()
	run := ir.Run{
		ID:            e.runIDs.Generate(),
		Process:       name,
		Ticks:         ticks,
		Seq:           e.clock.Next(),
		Status:        ir.RunRunning,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}

	var err error
	if e.store != nil {
		run.ModelHash, err = e.store.WriteModel(ctx, spec)
	} else {
		run.ModelHash, err = ir.ModelHash(spec)
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	st := e.model.Context.Store()
	if e.store != nil {
		if err := e.store.CreateRun(ctx, run); err != nil {
			return nil, err
		}
		if _, err := e.store.WriteCheckpoint(ctx, run.ID, 0, st.Snapshot()); err != nil {
			return nil, e.fail(ctx, &run, err)
		}
	}

	e.logger.Info("run started",
		"run_id", run.ID,
		"process", name,
		"ticks", ticks,
		"seq", run.Seq)

	res := &RunResult{Ticks: make([]ir.Tick, 0, ticks)}
	var cancelled error
	for t := int64(1); t <= ticks; t++ {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		tick, err := e.tick(ctx, p, run.ID, t, schedule(t))
		if err != nil {
			return nil, e.fail(ctx, &run, err)
		}
		run.CompletedTicks++
		if tick.Outcome == ir.TickSkipped {
			run.SkippedTicks++
		}
		res.Ticks = append(res.Ticks, tick)
	}

	final := st.Snapshot()
	if run.FinalStateHash, err = ir.StateHash(final); err != nil {
		return nil, e.fail(ctx, &run, err)
	}
	run.Status = ir.RunCompleted
	if cancelled != nil {
		run.Status = ir.RunCancelled
	}

	if e.store != nil {
		last := run.CompletedTicks
		if last > 0 && (e.checkpointEvery <= 0 || last%e.checkpointEvery != 0) {
			if _, err := e.store.WriteCheckpoint(context.WithoutCancel(ctx), run.ID, last, final); err != nil {
				return nil, e.fail(ctx, &run, err)
			}
		}
		if err := e.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			return nil, err
		}
	}

	e.logger.Info("run finished",
		"run_id", run.ID,
		"process", name,
		"status", run.Status,
		"completed", run.CompletedTicks,
		"skipped", run.SkippedTicks)

	res.Run = run
	res.Final = final
	return res, cancelled
}

// tick executes one tick and records it. The returned error is fatal to
// the run; execution failures become skipped ticks.
func (e *Engine) tick(ctx context.Context, p process.Executor, runID string, t int64, args process.Args) (ir.Tick, error) {
	tick := ir.Tick{RunID: runID, Tick: t}

	recorded, err := ir.NormalizeValue(map[string]any(args))
	if err != nil {
		return tick, fmt.Errorf("tick %d: args: %w", t, err)
	}
	tick.Args = recorded.(map[string]any)

	start := time.Now()
	out, execErr := p.Execute(true, process.Args(tick.Args))
	elapsed := time.Since(start)

	if tick.StateHash, err = ir.StateHash(e.model.Context.Store().Snapshot()); err != nil {
		return tick, fmt.Errorf("tick %d: %w", t, err)
	}

	if execErr != nil {
		tick.Outcome = ir.TickSkipped
		tick.Reason = skipReason(execErr)
		tick.Watched = []any{}
		e.logger.Info("tick skipped",
			"run_id", runID,
			"process", p.Name(),
			"tick", t,
			"reason", tick.Reason)
	} else {
		tick.Outcome = ir.TickOK
		watched, err := ir.NormalizeValue(out.Watched)
		if err != nil {
			return tick, fmt.Errorf("tick %d: watched: %w", t, err)
		}
		tick.Watched = watched.([]any)
		e.logger.Debug("tick executed",
			"run_id", runID,
			"process", p.Name(),
			"tick", t,
			"state_hash", tick.StateHash)
	}
	e.metrics.observe(p.Name(), tick.Outcome, elapsed)

	// The tick is already committed to the state store, so its log entry
	// is written even if ctx was cancelled mid-tick.
	if e.store != nil {
		persist := context.WithoutCancel(ctx)
		if err := e.store.WriteTick(persist, tick); err != nil {
			return tick, err
		}
		if e.checkpointEvery > 0 && t%e.checkpointEvery == 0 {
			if _, err := e.store.WriteCheckpoint(persist, runID, t, e.model.Context.Store().Snapshot()); err != nil {
				return tick, err
			}
		}
	}

	if execErr != nil {
		if e.hooks.OnSkip != nil {
			e.hooks.OnSkip(tick, execErr)
		}
	} else if e.hooks.OnTick != nil {
		e.hooks.OnTick(tick, out)
	}
	return tick, nil
}

func (e *Engine) ensureClock(ctx context.Context) error {
	if e.clock != nil {
		return nil
	}
	var start int64
	if e.store != nil {
		seq, err := e.store.MaxRunSeq(ctx)
		if err != nil {
			return err
		}
		start = seq
	}
	e.clock = NewClockAt(start)
	return nil
}

// fail marks run failed, persists it when possible, and returns cause.
func (e *Engine) fail(ctx context.Context, run *ir.Run, cause error) error {
	run.Status = ir.RunFailed
	e.logger.Error("run failed",
		"run_id", run.ID,
		"process", run.Process,
		"tick", run.CompletedTicks+1,
		"error", cause)
	if e.store != nil {
		if err := e.store.FinishRun(context.WithoutCancel(ctx), *run); err != nil {
			e.logger.Error("record failed run", "run_id", run.ID, "error", err)
		}
	}
	return cause
}

// skipReason maps an execution error to a short tick-log reason.
func skipReason(err error) string {
	switch {
	case errors.Is(err, model.ErrNotCompiled):
		return "not compiled"
	case errors.Is(err, model.ErrGraphChanged):
		return "graph changed"
	case errors.Is(err, model.ErrMissingArgument):
		return "missing arguments"
	case errors.Is(err, model.ErrStepFailed):
		return "step failed"
	}
	return err.Error()
}
