package engine

import (
	"context"
	"fmt"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/loader"
	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/process"
	"github.com/roach88/simcore/internal/state"
	"github.com/roach88/simcore/internal/store"
)

// ReplayResult compares a replayed run against its recorded tick log.
type ReplayResult struct {
	Recorded ir.Run
	Ticks    []ir.Tick // replayed ticks, stamped with the recorded run ID

	// Divergence is the first tick whose outcome or state hash differs
	// from the log, or 0.
	Divergence int64

	FinalStateHash string
}

// Matched reports whether the replay reproduced every recorded tick.
func (r *ReplayResult) Matched() bool {
	return r.Divergence == 0
}

// Replay re-executes a stored run and checks it is deterministic.
//
// The stored model is loaded into a fresh context with reg, the state is
// restored from the tick 0 checkpoint, and the recorded per-tick arguments
// are run again without persisting anything. When a tick diverges, Replay
// returns the result together with a REPLAY_DIVERGED error.
//
// Options apply to the replaying engine; a store passed with WithStore is
// ignored.
func Replay(ctx context.Context, s *store.Store, runID string, reg *model.Registry, opts ...Option) (*ReplayResult, error) {
	if s == nil {
		return nil, &RuntimeError{Code: ErrCodeNoStore, Message: "replay needs a store", RunID: runID}
	}
	h, err := s.ReadRunHistory(ctx, runID)
	if err != nil {
		return nil, err
	}

	probe := New(nil, opts...)
	m, err := loader.Load(h.Model, reg, loader.WithLogger(probe.logger))
	if err != nil {
		return nil, fmt.Errorf("replay %s: load model: %w", runID, err)
	}
	if err := m.Context.Store().Restore(state.Snapshot(h.Initial.State)); err != nil {
		return nil, fmt.Errorf("replay %s: restore initial state: %w", runID, err)
	}

	args := make(map[int64]process.Args, len(h.Ticks))
	for _, t := range h.Ticks {
		args[t.Tick] = process.Args(t.Args)
	}

	e := New(m, opts...)
	e.store = nil
	e.runIDs = fixedRunID(h.Run.ID)
	e.clock = NewClockAt(h.Run.Seq - 1)

	e.logger.Info("replay started", "run_id", runID, "ticks", len(h.Ticks))
	res, err := e.Run(ctx, h.Run.Process, int64(len(h.Ticks)), func(t int64) process.Args {
		return args[t]
	})
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}

	out := &ReplayResult{
		Recorded:       h.Run,
		Ticks:          res.Ticks,
		Divergence:     store.Divergence(h.Ticks, res.Ticks),
		FinalStateHash: res.Run.FinalStateHash,
	}
	if !out.Matched() {
		e.logger.Warn("replay diverged", "run_id", runID, "tick", out.Divergence)
		return out, divergenceError(runID, out.Divergence)
	}
	e.logger.Info("replay matched", "run_id", runID, "ticks", len(out.Ticks))
	return out, nil
}

type fixedRunID string

func (f fixedRunID) Generate() string { return string(f) }
