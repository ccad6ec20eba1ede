package store

import (
	"context"
	"fmt"

	"github.com/roach88/simcore/internal/ir"
)

// WriteModel stores a model description under its content hash and returns
// the hash. Uses ON CONFLICT(hash) DO NOTHING: the same model is stored once.
func (s *Store) WriteModel(ctx context.Context, spec ir.ModelSpec) (string, error) {
	hash, err := ir.ModelHash(spec)
	if err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}
	data, err := ir.MarshalModel(spec)
	if err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO models (hash, name, spec, ir_version, engine_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		hash,
		spec.Name,
		string(data),
		ir.IRVersion,
		ir.EngineVersion,
	)
	if err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}
	return hash, nil
}

// CreateRun inserts a run record. The referenced model must exist
// (foreign key constraint).
func (s *Store) CreateRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, model_hash, process, ticks, seq, status, completed_ticks, skipped_ticks, final_state_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.ModelHash,
		run.Process,
		run.Ticks,
		run.Seq,
		run.Status,
		run.CompletedTicks,
		run.SkippedTicks,
		run.FinalStateHash,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records a run's final status and counters.
func (s *Store) FinishRun(ctx context.Context, run ir.Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, completed_ticks = ?, skipped_ticks = ?, final_state_hash = ?
		WHERE id = ?
	`,
		run.Status,
		run.CompletedTicks,
		run.SkippedTicks,
		run.FinalStateHash,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: run %q not found", run.ID)
	}
	return nil
}

// WriteTick inserts a tick record.
// Uses ON CONFLICT(run_id, tick) DO NOTHING for idempotency.
func (s *Store) WriteTick(ctx context.Context, tick ir.Tick) error {
	argsJSON, err := marshalObject(tick.Args)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	watchedJSON, err := marshalList(tick.Watched)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ticks (run_id, tick, args, outcome, reason, state_hash, watched)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, tick) DO NOTHING
	`,
		tick.RunID,
		tick.Tick,
		argsJSON,
		tick.Outcome,
		tick.Reason,
		tick.StateHash,
		watchedJSON,
	)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	return nil
}

// WriteCheckpoint stores a full state snapshot. The state hash is computed
// here so it always matches the stored state.
// Uses ON CONFLICT(run_id, tick) DO NOTHING for idempotency.
func (s *Store) WriteCheckpoint(ctx context.Context, runID string, tick int64, state map[string]any) (ir.Checkpoint, error) {
	hash, err := ir.StateHash(state)
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("write checkpoint: %w", err)
	}
	stateJSON, err := marshalObject(state)
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("write checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, tick, state_hash, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, tick) DO NOTHING
	`, runID, tick, hash, stateJSON)
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("write checkpoint: %w", err)
	}
	return ir.Checkpoint{RunID: runID, Tick: tick, StateHash: hash, State: state}, nil
}
