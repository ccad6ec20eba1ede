package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simcore/internal/ir"
)

func TestReadRunHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s, "r1", 1)

	initial := map[string]any{"net:X:y": 0.0}
	_, err := s.WriteCheckpoint(ctx, "r1", 0, initial)
	require.NoError(t, err)
	require.NoError(t, s.WriteTick(ctx, ir.Tick{RunID: "r1", Tick: 1, Outcome: ir.TickOK, StateHash: "h1"}))

	h, err := s.ReadRunHistory(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run, h.Run)
	assert.Equal(t, "net", h.Model.Name)
	assert.Equal(t, initial, h.Initial.State)
	require.Len(t, h.Ticks, 1)
}

func TestReadRunHistory_MissingPieces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadRunHistory(ctx, "nope")
	assert.ErrorContains(t, err, `run "nope"`)

	createTestRun(t, s, "r1", 1)
	_, err = s.ReadRunHistory(ctx, "r1")
	assert.ErrorContains(t, err, "initial checkpoint")
}

func TestDivergence(t *testing.T) {
	mk := func(hashes ...string) []ir.Tick {
		ticks := make([]ir.Tick, len(hashes))
		for i, h := range hashes {
			ticks[i] = ir.Tick{Tick: int64(i + 1), Outcome: ir.TickOK, StateHash: h}
		}
		return ticks
	}

	tests := []struct {
		name      string
		want, got []ir.Tick
		tick      int64
	}{
		{"identical", mk("a", "b"), mk("a", "b"), 0},
		{"differs", mk("a", "b", "c"), mk("a", "x", "c"), 2},
		{"shorter", mk("a", "b"), mk("a"), 2},
		{"longer", mk("a"), mk("a", "b"), 2},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tick, Divergence(tt.want, tt.got))
		})
	}
}
