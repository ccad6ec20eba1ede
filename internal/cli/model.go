package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/simcore/internal/compiler"
	"github.com/roach88/simcore/internal/loader"
	"github.com/roach88/simcore/internal/model"
)

func (o *RootOptions) registry() *model.Registry {
	if o.Registry == nil {
		return loader.DefaultRegistry()
	}
	return o.Registry
}

// compileModelDir loads the CUE model in dir and validates it. Load
// failures come back as err; schema problems as a non-empty verrs.
func compileModelDir(dir string, reg *model.Registry, formatter *OutputFormatter) (*compiler.LoadResult, []compiler.ValidationError, error) {
	res, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, dir)
	verrs := compiler.Validate(res.Model, reg)
	return res, verrs, nil
}

// failLoad reports a model that could not be loaded. Load failures are
// command errors (exit 2).
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *compiler.LoadError
	if !errors.As(err, &loadErr) {
		return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric, err.Error(), nil)
	}

	if formatter.JSON() {
		var details any
		if loadErr.Pos.IsValid() {
			details = map[string]any{
				"file":   loadErr.Pos.Filename(),
				"line":   loadErr.Pos.Line(),
				"column": loadErr.Pos.Column(),
			}
		}
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, details)
	}

	fmt.Fprintln(formatter.Writer, "✗ Load failed")
	fmt.Fprintln(formatter.Writer)
	if loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", loadErr.Code, loadErr.Message)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
}

// failValidation reports every schema error. The JSON response carries
// the first error in error and all of them, plus any cycles, in data.
func failValidation(formatter *OutputFormatter, verrs []compiler.ValidationError, cycles []compiler.Cycle) error {
	msg := fmt.Sprintf("validation failed with %d error(s)", len(verrs))

	if formatter.JSON() {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: verrs, Cycles: cycles},
			Error: &CLIError{
				Code:    verrs[0].Code,
				Message: verrs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, msg)
	}

	fmt.Fprintf(formatter.Writer, "✗ Validation failed (%d error(s))\n\n", len(verrs))
	for _, ve := range verrs {
		if ve.Line > 0 {
			fmt.Fprintf(formatter.Writer, "  line %d\n", ve.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", ve.Code, ve.Message)
		fmt.Fprintf(formatter.Writer, "    at %s\n\n", ve.Field)
	}
	return NewExitError(ExitCommandError, msg)
}
