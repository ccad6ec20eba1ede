package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/simcore/internal/compiler"
	"github.com/roach88/simcore/internal/config"
	"github.com/roach88/simcore/internal/engine"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/loader"
	"github.com/roach88/simcore/internal/process"
	"github.com/roach88/simcore/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database        string
	Process         string
	Ticks           int64
	Args            []string
	CheckpointEvery int64
	Metrics         bool

	// RunIDs overrides the run ID generator (for testing).
	// If nil, the engine uses UUIDv7 run IDs.
	RunIDs engine.RunIDGenerator
}

// RunSummary is the output of a run.
type RunSummary struct {
	Run        ir.Run         `json:"run"`
	WatchPaths []string       `json:"watch_paths,omitempty"`
	Watched    []any          `json:"watched"` // last tick
	Final      map[string]any `json:"final"`
	Database   string         `json:"database,omitempty"`
	Metrics    []MetricSample `json:"metrics,omitempty"`
}

// MetricSample is one labeled engine metric value. Histograms report
// their sample count.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <model-dir>",
		Short: "Run a process for a number of ticks",
		Long: `Load the CUE model in a directory, compile its processes and execute
one of them for N ticks, committing the store after each tick.

Runtime arguments are given as repeated --arg key=value flags. Values
that parse as JSON keep their type: 1 is an integer, 1.0 a float and
[1.0,2.0] a vector. With --db the model, the run, every tick and state
checkpoints are stored so the run can be traced and replayed.

Ctrl-C stops the run between ticks; it is stored as cancelled.

Examples:
  simcore run ./models/leaky --process grow --ticks 10
  simcore run ./models/leaky -p drive -n 100 --arg drive=0.5 --db runs.db
  simcore run ./models/leaky -p grow --db runs.db --checkpoint-every 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (runs are not stored without it)")
	cmd.Flags().StringVarP(&opts.Process, "process", "p", "", "process to run (defaults to the only process)")
	cmd.Flags().Int64VarP(&opts.Ticks, "ticks", "n", 1, "number of ticks")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "runtime argument key=value (repeatable)")
	cmd.Flags().Int64Var(&opts.CheckpointEvery, "checkpoint-every", 0, "checkpoint the store every N ticks (0: first and last only)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report engine metrics")

	return cmd
}

// applyConfig fills flags that were not given from the config file.
func (o *RunOptions) applyConfig(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("db") && o.Config.Has(config.KeyDB) {
		o.Database = o.Config.DB
	}
	if !flags.Changed("ticks") && o.Config.Has(config.KeyTicks) {
		o.Ticks = o.Config.Ticks
	}
	if !flags.Changed("checkpoint-every") && o.Config.Has(config.KeyCheckpointEvery) {
		o.CheckpointEvery = o.Config.CheckpointEvery
	}
}

func runEngine(opts *RunOptions, modelDir string, cmd *cobra.Command) error {
	opts.applyConfig(cmd)
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	if opts.Ticks < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Sprintf("--ticks must not be negative, got %d", opts.Ticks), nil)
	}
	args, err := parseArgs(opts.Args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
	}

	reg := opts.registry()
	res, verrs, err := compileModelDir(modelDir, reg, formatter)
	if err != nil {
		return failLoad(formatter, err)
	}
	if len(verrs) > 0 {
		return failValidation(formatter, verrs, nil)
	}

	m, err := loader.Load(*res.Model, reg, loader.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, compiler.ErrCodeBuildFailed, err.Error(), nil)
	}
	name, err := pickProcess(m, opts.Process)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
	}
	exec, _ := m.Process(name)

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithCheckpointEvery(opts.CheckpointEvery),
		engine.WithHooks(engine.Hooks{
			OnTick: func(t ir.Tick, _ *process.Result) {
				formatter.VerboseLog("tick %d ok %s -> %s", t.Tick, formatArgs(t.Args), formatValue(t.Watched))
			},
			OnSkip: func(t ir.Tick, err error) {
				formatter.VerboseLog("tick %d skipped: %v", t.Tick, err)
			},
		}),
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	var metricsReg *prometheus.Registry
	if opts.Metrics {
		metricsReg = prometheus.NewRegistry()
		metrics, err := engine.NewMetrics(metricsReg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Sprintf("registering metrics: %v", err), nil)
		}
		engOpts = append(engOpts, engine.WithMetrics(metrics))
	}

	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database, store.WithLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engOpts = append(engOpts, engine.WithStore(st))
	}

	// Use the command's context if set (tests), otherwise a fresh one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	eng := engine.New(m, engOpts...)
	result, err := eng.Run(ctx, name, opts.Ticks, engine.Constant(args))
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return formatter.Fail(ExitFailure, ErrCodeRunFailed, err.Error(), nil)
	}

	summary := RunSummary{
		Run:        result.Run,
		WatchPaths: exec.Spec().Watch,
		Watched:    []any{},
		Final:      result.Final,
		Database:   opts.Database,
	}
	if n := len(result.Ticks); n > 0 {
		summary.Watched = result.Ticks[n-1].Watched
	}
	if metricsReg != nil {
		if summary.Metrics, err = gatherSamples(metricsReg); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeRunFailed, fmt.Sprintf("gathering metrics: %v", err), nil)
		}
	}

	if formatter.JSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: summary, TraceID: summary.Run.ID})
	}
	outputRunText(formatter, summary)
	return nil
}

// pickProcess resolves the process flag; with no flag a model with a
// single process runs that one.
func pickProcess(m *loader.Model, name string) (string, error) {
	procs := m.Processes()
	names := make([]string, len(procs))
	for i, p := range procs {
		names[i] = p.Name()
	}
	if name == "" {
		if len(names) == 1 {
			return names[0], nil
		}
		if len(names) == 0 {
			return "", errors.New("model declares no processes")
		}
		return "", fmt.Errorf("--process is required: model has %s", strings.Join(names, ", "))
	}
	if !slices.Contains(names, name) {
		return "", fmt.Errorf("unknown process %q: model has %s", name, strings.Join(names, ", "))
	}
	return name, nil
}

func gatherSamples(reg *prometheus.Registry) ([]MetricSample, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	var samples []MetricSample
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			s := MetricSample{Name: mf.GetName(), Labels: make(map[string]string)}
			for _, lp := range metric.GetLabel() {
				s.Labels[lp.GetName()] = lp.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				s.Value = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				s.Value = float64(metric.GetHistogram().GetSampleCount())
			}
			samples = append(samples, s)
		}
	}
	return samples, nil
}

func outputRunText(formatter *OutputFormatter, s RunSummary) {
	w := formatter.Writer
	run := s.Run

	mark := "✓"
	if run.Status != ir.RunCompleted {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Run %s %s: %d/%d tick(s), %d skipped\n",
		mark, run.ID, run.Status, run.CompletedTicks, run.Ticks, run.SkippedTicks)
	fmt.Fprintf(w, "  process: %s\n", run.Process)
	fmt.Fprintf(w, "  model:   %s\n", truncateID(run.ModelHash))
	fmt.Fprintf(w, "  state:   %s\n", truncateID(run.FinalStateHash))
	if s.Database != "" {
		fmt.Fprintf(w, "  stored:  %s\n", s.Database)
	}

	if len(s.WatchPaths) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Watched (last tick):")
		for i, path := range s.WatchPaths {
			if i < len(s.Watched) {
				fmt.Fprintf(w, "  %s = %s\n", path, formatValue(s.Watched[i]))
			} else {
				fmt.Fprintf(w, "  %s = (skipped)\n", path)
			}
		}
	}

	if len(s.Metrics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Metrics:")
		for _, m := range s.Metrics {
			fmt.Fprintf(w, "  %s%s %s\n", m.Name, formatLabels(m.Labels), formatValue(m.Value))
		}
	}
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
