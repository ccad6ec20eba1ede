package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/simcore/internal/config"
	"github.com/roach88/simcore/internal/engine"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
	Filter   store.RunFilter
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Process       string `json:"process"`
	Status        string `json:"status"`
	Ticks         int    `json:"ticks"`
	Divergence    int64  `json:"divergence,omitempty"` // first diverging tick
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay stored runs and verify determinism",
		Long: `Replay stored runs and verify that they are deterministic.

Each run is rebuilt from its stored model, restored to its initial
checkpoint and stepped again with the recorded per-tick arguments. The
state hash after every tick must match the stored tick log. Nothing is
written to the database.

Exit codes:
  0 - All runs replayed identically
  1 - A run diverged or could not be replayed
  2 - Command error (database not found, unknown run, etc.)

Examples:
  simcore replay --db runs.db
  simcore replay --db runs.db --run 0191f0c2-...
  simcore replay --db runs.db --status completed
  simcore replay --db runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay a specific run only")
	cmd.Flags().StringVar(&opts.Filter.Process, "process", "", "only replay runs of this process")
	cmd.Flags().StringVar(&opts.Filter.Status, "status", "", "only replay runs with this status")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	if !cmd.Flags().Changed("db") && opts.Config.Has(config.KeyDB) {
		opts.Database = opts.Config.DB
	}
	formatter := opts.formatter(cmd)
	if opts.Database == "" {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, "--db is required", nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	var runs []ir.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("run %s: %v", opts.RunID, err), nil)
		}
		runs = []ir.Run{run}
	} else if runs, err = st.FindRuns(ctx, opts.Filter); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to list runs: %v", err), nil)
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, run := range runs {
		r := replayRun(ctx, st, run, opts)
		formatter.VerboseLog("Replayed %s: deterministic=%t", run.ID, r.Deterministic)
		result.Runs = append(result.Runs, r)
		if !r.Deterministic {
			result.AllDeterministic = false
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

func replayRun(ctx context.Context, st *store.Store, run ir.Run, opts *ReplayOptions) ReplayRunResult {
	out := ReplayRunResult{RunID: run.ID, Process: run.Process, Status: run.Status}

	res, err := engine.Replay(ctx, st, run.ID, opts.registry(), engine.WithLogger(opts.logger()))
	if res != nil {
		out.Ticks = len(res.Ticks)
		out.Divergence = res.Divergence
	}
	switch {
	case err == nil:
		out.Deterministic = true
	case engine.IsDivergence(err):
		out.Error = fmt.Sprintf("diverged at tick %d", res.Divergence)
	default:
		out.Error = err.Error()
	}
	return out
}

// openExisting opens a database that must already exist. store.Open would
// create an empty one.
func openExisting(path string) (*store.Store, error) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    ErrCodeDiverged,
			Message: "determinism verification failed",
		}
	}
	if err := formatter.Respond(resp); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n\n", result.TotalRuns)
	for _, r := range result.Runs {
		mark := "✓"
		if !r.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s, %s): %d tick(s)\n", mark, truncateID(r.RunID), r.Process, r.Status, r.Ticks)
		if r.Error != "" {
			fmt.Fprintf(w, "  %s\n", r.Error)
		}
	}
	fmt.Fprintln(w)

	if !result.AllDeterministic {
		fmt.Fprintln(w, "✗ Determinism verification FAILED")
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	fmt.Fprintln(w, "✓ All runs replayed deterministically")
	return nil
}
