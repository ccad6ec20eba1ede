package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/simcore/internal/ir"
)

// ReadModel retrieves a model description by hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadModel(ctx context.Context, hash string) (ir.ModelSpec, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT spec FROM models WHERE hash = ?`, hash).Scan(&data)
	if err != nil {
		return ir.ModelSpec{}, err
	}
	spec, err := ir.UnmarshalModel([]byte(data))
	if err != nil {
		return ir.ModelSpec{}, fmt.Errorf("read model %s: %w", hash, err)
	}
	return spec, nil
}

const runColumns = `id, model_hash, process, ticks, seq, status, completed_ticks, skipped_ticks, final_state_hash, engine_version, ir_version`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns every run, ordered by seq then id.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	return s.FindRuns(ctx, RunFilter{})
}

// MaxRunSeq returns the highest run seq, or 0 for an empty store. The
// engine resumes its logical clock from here.
func (s *Store) MaxRunSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max run seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.Run, error) {
	var run ir.Run
	err := row.Scan(
		&run.ID,
		&run.ModelHash,
		&run.Process,
		&run.Ticks,
		&run.Seq,
		&run.Status,
		&run.CompletedTicks,
		&run.SkippedTicks,
		&run.FinalStateHash,
		&run.EngineVersion,
		&run.IRVersion,
	)
	if err != nil {
		return ir.Run{}, err
	}
	return run, nil
}

// ReadTicks returns a run's ticks in tick order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadTicks(ctx context.Context, runID string) ([]ir.Tick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, tick, args, outcome, reason, state_hash, watched
		FROM ticks
		WHERE run_id = ?
		ORDER BY tick ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	ticks := []ir.Tick{}
	for rows.Next() {
		var (
			t                 ir.Tick
			argsJSON, watched string
		)
		if err := rows.Scan(&t.RunID, &t.Tick, &argsJSON, &t.Outcome, &t.Reason, &t.StateHash, &watched); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		if t.Args, err = unmarshalObject(argsJSON); err != nil {
			return nil, fmt.Errorf("tick %d: %w", t.Tick, err)
		}
		if t.Watched, err = unmarshalList(watched); err != nil {
			return nil, fmt.Errorf("tick %d: %w", t.Tick, err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return ticks, nil
}

// ReadCheckpoint retrieves the checkpoint taken after tick.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCheckpoint(ctx context.Context, runID string, tick int64) (ir.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, tick, state_hash, state
		FROM checkpoints
		WHERE run_id = ? AND tick = ?
	`, runID, tick)
	return scanCheckpoint(row)
}

// LatestCheckpoint retrieves the last checkpoint at or before tick.
// Returns sql.ErrNoRows if there is none.
func (s *Store) LatestCheckpoint(ctx context.Context, runID string, tick int64) (ir.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, tick, state_hash, state
		FROM checkpoints
		WHERE run_id = ? AND tick <= ?
		ORDER BY tick DESC
		LIMIT 1
	`, runID, tick)
	return scanCheckpoint(row)
}

func scanCheckpoint(row scanner) (ir.Checkpoint, error) {
	var (
		cp        ir.Checkpoint
		stateJSON string
	)
	if err := row.Scan(&cp.RunID, &cp.Tick, &cp.StateHash, &stateJSON); err != nil {
		return ir.Checkpoint{}, err
	}
	state, err := unmarshalObject(stateJSON)
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("checkpoint %d: %w", cp.Tick, err)
	}
	cp.State = state
	return cp, nil
}
