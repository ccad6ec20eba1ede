package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/simcore/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	Hash  string           `json:"hash"`
	Model json.RawMessage  `json:"model"` // canonical IR
	Stats CompilationStats `json:"stats"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Components   int `json:"components"`
	Compartments int `json:"compartments"`
	Transitions  int `json:"transitions"`
	Wires        int `json:"wires"`
	Processes    int `json:"processes"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <model-dir>",
		Short: "Compile a CUE model to canonical IR",
		Long: `Compile the CUE model in a directory to canonical IR JSON.

The model is loaded, validated against the schema and the registered
component kinds, and encoded as canonical JSON. The content hash printed
is the one runs are stored under.

Examples:
  simcore compile ./models/leaky
  simcore compile ./models/leaky -o leaky.json
  simcore compile ./models/leaky --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical IR to this file")

	return cmd
}

func runCompile(opts *CompileOptions, modelDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	res, verrs, err := compileModelDir(modelDir, opts.registry(), formatter)
	if err != nil {
		return failLoad(formatter, err)
	}
	if len(verrs) > 0 {
		return failValidation(formatter, verrs, nil)
	}
	spec := *res.Model

	data, err := ir.MarshalModel(spec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWrite, fmt.Sprintf("encoding IR: %v", err), nil)
	}
	hash, err := ir.ModelHash(spec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWrite, fmt.Sprintf("hashing IR: %v", err), nil)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWrite, fmt.Sprintf("writing output file: %v", err), nil)
		}
		formatter.VerboseLog("Wrote %d bytes to %s", len(data), opts.Output)
	}

	stats := calculateStats(spec)
	if formatter.JSON() {
		return formatter.Success(CompilationResult{Hash: hash, Model: data, Stats: stats})
	}
	return outputCompileText(formatter, spec, hash, stats, opts.Output)
}

// calculateStats computes summary statistics for a model.
func calculateStats(spec ir.ModelSpec) CompilationStats {
	stats := CompilationStats{
		Components: len(spec.Components),
		Wires:      len(spec.Wires),
		Processes:  len(spec.Processes),
	}
	for _, c := range spec.Components {
		stats.Compartments += len(c.Compartments)
		stats.Transitions += len(c.Transitions)
	}
	return stats
}

func outputCompileText(formatter *OutputFormatter, spec ir.ModelSpec, hash string, stats CompilationStats, outputFile string) error {
	w := formatter.Writer

	fmt.Fprintf(w, "✓ Compiled model %s: %d component(s), %d wire(s), %d process(es)\n",
		spec.Name, stats.Components, stats.Wires, stats.Processes)
	fmt.Fprintf(w, "  hash: %s\n\n", hash)

	if len(spec.Components) > 0 {
		fmt.Fprintln(w, "Components:")
		for _, c := range spec.Components {
			fmt.Fprintf(w, "  %s (%s): %d compartment(s), %d transition(s)\n",
				c.Name, c.Kind, len(c.Compartments), len(c.Transitions))
		}
		fmt.Fprintln(w)
	}

	if len(spec.Processes) > 0 {
		fmt.Fprintln(w, "Processes:")
		for _, p := range spec.Processes {
			if p.IsJoint() {
				fmt.Fprintf(w, "  %s: joint of %v\n", p.Name, p.Processes)
				continue
			}
			steps := make([]string, len(p.Steps))
			for i, s := range p.Steps {
				steps[i] = s.String()
			}
			fmt.Fprintf(w, "  %s: %v\n", p.Name, steps)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}
	return nil
}
