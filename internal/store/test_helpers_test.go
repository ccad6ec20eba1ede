package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/simcore/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testModel() ir.ModelSpec {
	return ir.ModelSpec{
		Name: "net",
		Components: []ir.ComponentSpec{{
			Name:         "X",
			Kind:         ir.ExprKind,
			Params:       map[string]any{"k": int64(2), "tau": 10.0},
			Compartments: []ir.CompartmentSpec{{Name: "y", Initial: 0.0}},
			Transitions: []ir.TransitionSpec{
				{Name: "step", Outputs: []ir.OutputSpec{{Compartment: "y", Expr: "y + k / tau"}}},
			},
		}},
		Processes: []ir.ProcessSpec{
			{Name: "main", Steps: []ir.StepSpec{{Component: "X", Transition: "step"}}, Watch: []string{"X:y"}},
		},
	}
}

// createTestRun stores testModel and a run over it.
func createTestRun(t *testing.T, s *Store, id string, seq int64) ir.Run {
	t.Helper()
	ctx := context.Background()
	hash, err := s.WriteModel(ctx, testModel())
	if err != nil {
		t.Fatalf("WriteModel() failed: %v", err)
	}
	run := ir.Run{
		ID:            id,
		ModelHash:     hash,
		Process:       "main",
		Ticks:         3,
		Seq:           seq,
		Status:        ir.RunRunning,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	return run
}
