package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simcore/internal/ir"
)

func TestWriteModel_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	hash, err := s.WriteModel(ctx, testModel())
	require.NoError(t, err)
	assert.Equal(t, ir.MustModelHash(testModel()), hash)

	got, err := s.ReadModel(ctx, hash)
	require.NoError(t, err)
	if diff := cmp.Diff(testModel(), got); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteModel_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.WriteModel(ctx, testModel()); err != nil {
			t.Fatalf("WriteModel() iteration %d failed: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM models").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("models = %d, want 1", count)
	}
}

func TestReadModel_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadModel(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadModel() error = %v, want sql.ErrNoRows", err)
	}
}

func TestCreateRun_ForeignKeyViolation(t *testing.T) {
	s := createTestStore(t)
	err := s.CreateRun(context.Background(), ir.Run{ID: "r1", ModelHash: "nope", Process: "main", Status: ir.RunRunning})
	if err == nil {
		t.Fatal("CreateRun() should fail for an unknown model")
	}
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s, "r1", 1)

	run.Status = ir.RunCompleted
	run.CompletedTicks = 3
	run.SkippedTicks = 1
	run.FinalStateHash = "abc"
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.ReadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	missing := run
	missing.ID = "r2"
	assert.Error(t, s.FinishRun(ctx, missing))
}

func TestWriteTick_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "r1", 1)

	ticks := []ir.Tick{
		{RunID: "r1", Tick: 1, Args: map[string]any{"dt": 0.5, "n": int64(2)}, Outcome: ir.TickOK, StateHash: "h1", Watched: []any{0.2}},
		{RunID: "r1", Tick: 2, Outcome: ir.TickSkipped, Reason: "missing arguments", StateHash: "h1"},
		{RunID: "r1", Tick: 3, Args: map[string]any{"drive": []float64{1, 2}}, Outcome: ir.TickOK, StateHash: "h3", Watched: []any{"x", int64(1)}},
	}
	// Written out of order; read back in tick order.
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, s.WriteTick(ctx, ticks[i]))
	}
	require.NoError(t, s.WriteTick(ctx, ticks[0]), "duplicate tick is ignored")

	got, err := s.ReadTicks(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	ticks[1].Args = map[string]any{}
	ticks[1].Watched = []any{}
	if diff := cmp.Diff(ticks, got); diff != "" {
		t.Errorf("ticks mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTicks_Empty(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadTicks(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWriteCheckpoint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "r1", 1)

	states := []map[string]any{
		{"net:X:y": 0.0},
		{"net:X:y": 0.2},
		{"net:X:y": 0.4},
	}
	for i, st := range []int64{0, 2, 4} {
		cp, err := s.WriteCheckpoint(ctx, "r1", st, states[i])
		require.NoError(t, err)
		assert.Equal(t, ir.MustStateHash(states[i]), cp.StateHash)
	}

	cp, err := s.ReadCheckpoint(ctx, "r1", 2)
	require.NoError(t, err)
	assert.Equal(t, states[1], cp.State)
	assert.Equal(t, ir.MustStateHash(cp.State), cp.StateHash)

	latest, err := s.LatestCheckpoint(ctx, "r1", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.Tick)

	_, err = s.ReadCheckpoint(ctx, "r1", 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWriteCheckpoint_RejectsNonFinite(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "r1", 1)
	_, err := s.WriteCheckpoint(context.Background(), "r1", 0, map[string]any{"x": []float64{1, math.NaN()}})
	assert.Error(t, err)
}
