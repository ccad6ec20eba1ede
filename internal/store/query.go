package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/simcore/internal/ir"
)

// RunFilter selects stored runs. Empty fields match everything; set
// fields are combined with AND.
type RunFilter struct {
	Process   string
	Status    string
	ModelHash string
}

// Empty reports whether f matches every run.
func (f RunFilter) Empty() bool {
	return f == RunFilter{}
}

// compile renders the filter as a WHERE clause and its parameters.
// Values are never interpolated. Columns are emitted in a fixed order so
// the same filter always yields the same SQL.
func (f RunFilter) compile() (string, []any) {
	var (
		conds  []string
		params []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		conds = append(conds, column+" = ?")
		params = append(params, value)
	}
	add("process", f.Process)
	add("status", f.Status)
	add("model_hash", f.ModelHash)

	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), params
}

// runQuery builds the SELECT for f. Every run query orders by seq with
// id as a binary-collated tiebreak.
func runQuery(f RunFilter) (string, []any) {
	where, params := f.compile()
	return `SELECT ` + runColumns + ` FROM runs WHERE ` + where +
		` ORDER BY seq ASC, id COLLATE BINARY ASC`, params
}

// FindRuns returns the runs matching f in logical order.
// Returns an empty slice (not nil) if none match.
func (s *Store) FindRuns(ctx context.Context, f RunFilter) ([]ir.Run, error) {
	query, params := runQuery(f)
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
