package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/simcore/internal/config"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Skipped  bool // only skipped ticks
	Filter   store.RunFilter
}

// TraceResult holds the tick log of one run.
type TraceResult struct {
	Run   ir.Run     `json:"run"`
	Ticks []ir.Tick  `json:"ticks"`
	Stats TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Ticks   int `json:"ticks"`
	OK      int `json:"ok"`
	Skipped int `json:"skipped"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show stored runs and their tick logs",
		Long: `Show the runs stored in a database, or the tick log of one run.

Without --run every stored run is listed in logical order, optionally
narrowed with --process and --status. With --run
each tick is shown with its arguments, outcome and watched values; in
verbose mode the state hash after the tick is included.

Examples:
  simcore trace --db runs.db
  simcore trace --db runs.db --process grow --status cancelled
  simcore trace --db runs.db --run 0191f0c2-...
  simcore trace --db runs.db --run 0191f0c2-... --skipped --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to show")
	cmd.Flags().BoolVar(&opts.Skipped, "skipped", false, "only show skipped ticks")
	cmd.Flags().StringVar(&opts.Filter.Process, "process", "", "only list runs of this process")
	cmd.Flags().StringVar(&opts.Filter.Status, "status", "", "only list runs with this status")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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

	if opts.RunID == "" {
		runs, err := st.FindRuns(ctx, opts.Filter)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to list runs: %v", err), nil)
		}
		if formatter.JSON() {
			return formatter.Success(runs)
		}
		outputRunList(formatter.Writer, runs, opts.Filter)
		return nil
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("run %s: %v", opts.RunID, err), nil)
	}
	ticks, err := st.ReadTicks(ctx, opts.RunID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to read ticks: %v", err), nil)
	}

	result := TraceResult{Run: run, Ticks: make([]ir.Tick, 0, len(ticks)), Stats: TraceStats{Ticks: len(ticks)}}
	for _, t := range ticks {
		if t.Outcome == ir.TickSkipped {
			result.Stats.Skipped++
		} else {
			result.Stats.OK++
		}
		if opts.Skipped && t.Outcome != ir.TickSkipped {
			continue
		}
		result.Ticks = append(result.Ticks, t)
	}

	if formatter.JSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, TraceID: run.ID})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func outputRunList(w io.Writer, runs []ir.Run, filter store.RunFilter) {
	if len(runs) == 0 {
		if filter.Empty() {
			fmt.Fprintln(w, "No runs found in database.")
		} else {
			fmt.Fprintln(w, "No matching runs.")
		}
		return
	}
	fmt.Fprintf(w, "%d run(s)\n\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "  [%d] %s %s %s: %d/%d tick(s), %d skipped\n",
			r.Seq, r.ID, r.Process, r.Status, r.CompletedTicks, r.Ticks, r.SkippedTicks)
	}
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Process: %s  Status: %s  Model: %s\n", run.Process, run.Status, truncateID(run.ModelHash))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Ticks ===")
	if len(result.Ticks) == 0 {
		fmt.Fprintln(w, "  (no ticks)")
	}
	for _, t := range result.Ticks {
		switch t.Outcome {
		case ir.TickSkipped:
			fmt.Fprintf(w, "  [%d] SKIP %s (%s)\n", t.Tick, formatArgs(t.Args), t.Reason)
		default:
			fmt.Fprintf(w, "  [%d] OK   %s -> %s\n", t.Tick, formatArgs(t.Args), formatValue(t.Watched))
		}
		if verbose {
			fmt.Fprintf(w, "       State: %s\n", truncateID(t.StateHash))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Ticks:   %d\n", result.Stats.Ticks)
	fmt.Fprintf(w, "  OK:      %d\n", result.Stats.OK)
	fmt.Fprintf(w, "  Skipped: %d\n", result.Stats.Skipped)
}
