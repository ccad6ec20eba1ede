package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/store"
)

func TestTrace_ListsRuns(t *testing.T) {
	dbPath := recordRuns(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 run(s)")
	assert.Contains(t, out, "[1] cli-1 grow completed: 3/3 tick(s), 0 skipped")
	assert.Contains(t, out, "[2] cli-2 drive completed: 3/3 tick(s), 0 skipped")

	out, err = execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)
	var runs []ir.Run
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, "cli-2", runs[1].ID)
}

func TestTrace_FiltersRuns(t *testing.T) {
	dbPath := recordRuns(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--process", "drive")
	require.NoError(t, err)
	assert.Contains(t, out, "1 run(s)")
	assert.Contains(t, out, "cli-2 drive")
	assert.NotContains(t, out, "cli-1")

	out, err = execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--status", "cancelled")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching runs.")
}

func TestTrace_RunListText(t *testing.T) {
	emptyDB := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(emptyDB)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	dbPath := recordRuns(t)

	tests := []struct {
		name string
		args []string
		want string
		not  string
	}{
		{"empty database", []string{"--db", emptyDB}, "No runs found in database.", "run(s)"},
		{"empty database with filter", []string{"--db", emptyDB, "--process", "grow"}, "No matching runs.", "No runs found"},
		{"all runs", []string{"--db", dbPath}, "2 run(s)", "No matching runs."},
		{"filter matches", []string{"--db", dbPath, "--status", "completed", "--process", "grow"}, "[1] cli-1 grow completed", "cli-2"},
		{"filter matches nothing", []string{"--db", dbPath, "--process", "nope"}, "No matching runs.", "No runs found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.NotContains(t, out, tt.not)
		})
	}
}

func TestTrace_TickLog(t *testing.T) {
	dbPath := recordRuns(t)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "cli-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Run: cli-2")
	assert.Contains(t, out, "[1] OK   {drive=0.25} -> [0.25]")
	assert.Contains(t, out, "[3] OK   {drive=0.25} -> [0.75]")
	assert.Contains(t, out, "Skipped: 0")
	assert.NotContains(t, out, "State:")

	out, err = execute(t, NewTraceCommand(&RootOptions{Format: "text", Verbose: true}), "--db", dbPath, "--run", "cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, "[2] OK   {} -> [4.0,2.0]")
	assert.Contains(t, out, "State:")
}

func TestTrace_SkippedOnlyJSON(t *testing.T) {
	dbPath := recordRuns(t)
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}
	_, err := execute(t, newRunCommand(opts), leakyDir, "-p", "drive", "-n", "2", "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)
	var runs []ir.Run
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 3)
	skippedRun := runs[2].ID

	out, err = execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", skippedRun, "--skipped")
	require.NoError(t, err)

	var result TraceResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, skippedRun, resp.TraceID)
	assert.Equal(t, TraceStats{Ticks: 2, OK: 0, Skipped: 2}, result.Stats)
	require.Len(t, result.Ticks, 2)
	assert.Equal(t, ir.TickSkipped, result.Ticks[0].Outcome)
	assert.Equal(t, "missing arguments", result.Ticks[0].Reason)
}

func TestTrace_Errors(t *testing.T) {
	_, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")

	dbPath := recordRuns(t)
	_, err = execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
