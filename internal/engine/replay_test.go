package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simcore/internal/ir"
)

func TestReplay_ReproducesRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	e := New(loadCounter(t), WithStore(s))

	res, err := e.Run(ctx, "drive", 5, oddTicks)
	require.NoError(t, err)

	replayed, err := Replay(ctx, s, res.Run.ID, nil)
	require.NoError(t, err)
	assert.True(t, replayed.Matched())
	assert.Equal(t, res.Run.FinalStateHash, replayed.FinalStateHash)
	assert.Equal(t, res.Run, replayed.Recorded)
	require.Len(t, replayed.Ticks, 5)
	for i, tick := range replayed.Ticks {
		assert.Equal(t, res.Run.ID, tick.RunID)
		assert.Equal(t, res.Ticks[i].Outcome, tick.Outcome)
	}

	// Replay persists nothing.
	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestReplay_StartsFromInitialCheckpoint(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	m := loadCounter(t)

	// Advance the state before the recorded run starts.
	_, err := New(m).Run(ctx, "main", 3, nil)
	require.NoError(t, err)

	res, err := New(m, WithStore(s)).Run(ctx, "main", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Final["counter:X:y"])

	replayed, err := Replay(ctx, s, res.Run.ID, nil)
	require.NoError(t, err)
	assert.True(t, replayed.Matched())
	assert.Equal(t, []any{10.0}, replayed.Ticks[1].Watched)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	res, err := New(loadCounter(t), WithStore(s)).Run(ctx, "main", 3, nil)
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx,
		`UPDATE ticks SET state_hash = 'tampered' WHERE run_id = ? AND tick = 2`, res.Run.ID)
	require.NoError(t, err)

	replayed, err := Replay(ctx, s, res.Run.ID, nil)
	require.Error(t, err)
	assert.True(t, IsDivergence(err))
	require.NotNil(t, replayed)
	assert.False(t, replayed.Matched())
	assert.Equal(t, int64(2), replayed.Divergence)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, res.Run.ID, re.RunID)
	assert.Equal(t, int64(2), re.Tick)
}

func TestReplay_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Replay(ctx, nil, "run-1", nil)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNoStore, re.Code)

	_, err = Replay(ctx, openStore(t), "missing", nil)
	assert.Error(t, err)
}

func TestReplay_SkippedTicksReplayAsSkipped(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	res, err := New(loadCounter(t), WithStore(s)).Run(ctx, "drive", 2, oddTicks)
	require.NoError(t, err)
	require.Equal(t, ir.TickSkipped, res.Ticks[1].Outcome)

	replayed, err := Replay(ctx, s, res.Run.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.TickSkipped, replayed.Ticks[1].Outcome)
	assert.Equal(t, "missing arguments", replayed.Ticks[1].Reason)
}
