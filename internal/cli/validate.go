package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/simcore/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Cycles []compiler.Cycle           `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model-dir>",
		Short: "Validate a model without producing IR",
		Long: `Validate the CUE model in a directory.

Reports every schema problem at once (codes E100-E129), including
wiring cycles that pass through no transition.

Exit codes:
  0 - Model is valid
  2 - Model could not be loaded or has validation errors`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, modelDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	res, verrs, err := compileModelDir(modelDir, opts.registry(), formatter)
	if err != nil {
		return failLoad(formatter, err)
	}
	if len(verrs) > 0 {
		cycles := compiler.AnalyzeCycles(res.Model)
		for _, c := range cycles {
			formatter.VerboseLog("Wiring cycle: %v", c.Path)
		}
		return failValidation(formatter, verrs, cycles)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ Model %s is valid (%d file(s))\n", res.Model.Name, res.FileCount)
	return nil
}
