package store

import (
	"context"
	"fmt"

	"github.com/roach88/simcore/internal/ir"
)

// RunHistory is everything needed to re-execute a stored run.
type RunHistory struct {
	Run     ir.Run
	Model   ir.ModelSpec
	Initial ir.Checkpoint // state before tick 1
	Ticks   []ir.Tick
}

// ReadRunHistory loads a run with its model, initial checkpoint and ticks.
func (s *Store) ReadRunHistory(ctx context.Context, runID string) (RunHistory, error) {
	var h RunHistory

	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return h, fmt.Errorf("read run history: run %q: %w", runID, err)
	}
	h.Run = run

	if h.Model, err = s.ReadModel(ctx, run.ModelHash); err != nil {
		return h, fmt.Errorf("read run history: model %s: %w", run.ModelHash, err)
	}
	if h.Initial, err = s.ReadCheckpoint(ctx, runID, 0); err != nil {
		return h, fmt.Errorf("read run history: initial checkpoint: %w", err)
	}
	if h.Ticks, err = s.ReadTicks(ctx, runID); err != nil {
		return h, fmt.Errorf("read run history: %w", err)
	}
	return h, nil
}

// Divergence reports the first tick whose state hash differs between two
// tick logs, or 0 when they agree. Logs of different length diverge at the
// first tick missing from the shorter one.
func Divergence(want, got []ir.Tick) int64 {
	n := min(len(want), len(got))
	for i := 0; i < n; i++ {
		if want[i].StateHash != got[i].StateHash || want[i].Outcome != got[i].Outcome {
			return want[i].Tick
		}
	}
	switch {
	case len(want) > n:
		return want[n].Tick
	case len(got) > n:
		return got[n].Tick
	}
	return 0
}
