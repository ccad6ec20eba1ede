package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/state"
	"github.com/roach88/simcore/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // assertion type
	Expected string // human-readable expected outcome
	Actual   string // human-readable actual outcome
	Trace    []TraceTick
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, t := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", t.Tick, t.Outcome, canonical(t.Args), canonical(t.Watched))
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions need beyond the result.
type AssertionContext struct {
	Ctx context.Context

	// Store and RunID locate the persisted run; final_state reads the
	// last checkpoint from it. Without a store, Result.State is used.
	Store *store.Store
	RunID string

	// ModelName prefixes model-relative refs to form store paths.
	ModelName string
}

func (a *AssertionContext) storePath(ref string) (string, error) {
	comp, name, err := ir.CompartmentRef(ref).Parse()
	if err != nil {
		return "", err
	}
	return state.Join(a.ModelName, comp, name), nil
}

// assertFinalState checks the value of one compartment after the run.
func assertFinalState(actx *AssertionContext, result *Result, a Assertion) error {
	path, err := actx.storePath(a.Path)
	if err != nil {
		return err
	}

	final := result.State
	if actx.Store != nil {
		cp, err := actx.Store.LatestCheckpoint(actx.Ctx, actx.RunID, result.Run.Ticks)
		if err != nil {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: "a checkpoint for the final tick",
				Actual:   fmt.Sprintf("store error: %v", err),
			}
		}
		final = cp.State
	}

	actual, ok := final[path]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, canonical(a.Equals)),
			Actual:   fmt.Sprintf("no state path %q", path),
		}
	}
	if !valuesEqual(a.Equals, actual) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, canonical(a.Equals)),
			Actual:   fmt.Sprintf("%s = %s", a.Path, canonical(actual)),
		}
	}
	return nil
}

// tickAt returns the selected tick; 0 selects the last one.
func tickAt(trace []TraceTick, tick int64) (TraceTick, bool) {
	if len(trace) == 0 {
		return TraceTick{}, false
	}
	if tick == 0 {
		return trace[len(trace)-1], true
	}
	for _, t := range trace {
		if t.Tick == tick {
			return t, true
		}
	}
	return TraceTick{}, false
}

// assertWatched checks the watch-list values of one tick.
func assertWatched(trace []TraceTick, a Assertion) error {
	t, ok := tickAt(trace, a.Tick)
	if !ok {
		return &AssertionError{
			Type:     AssertWatched,
			Expected: fmt.Sprintf("tick %d to have run", a.Tick),
			Actual:   fmt.Sprintf("%d ticks ran", len(trace)),
			Trace:    trace,
		}
	}
	if !valuesEqual(a.Equals, t.Watched) {
		return &AssertionError{
			Type:     AssertWatched,
			Expected: fmt.Sprintf("tick %d watched %s", t.Tick, canonical(a.Equals)),
			Actual:   fmt.Sprintf("tick %d watched %s", t.Tick, canonical(t.Watched)),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutcome checks whether one tick ran or was skipped.
func assertOutcome(trace []TraceTick, a Assertion) error {
	t, ok := tickAt(trace, a.Tick)
	if !ok {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("tick %d to have run", a.Tick),
			Actual:   fmt.Sprintf("%d ticks ran", len(trace)),
			Trace:    trace,
		}
	}
	if t.Outcome != a.Outcome {
		actual := t.Outcome
		if t.Reason != "" {
			actual += " (" + t.Reason + ")"
		}
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("tick %d %s", t.Tick, a.Outcome),
			Actual:   fmt.Sprintf("tick %d %s", t.Tick, actual),
			Trace:    trace,
		}
	}
	return nil
}

// assertSkipped checks the number of skipped ticks.
func assertSkipped(result *Result, a Assertion) error {
	if n := result.Skipped(); n != a.Count {
		return &AssertionError{
			Type:     AssertSkipped,
			Expected: fmt.Sprintf("%d skipped ticks", a.Count),
			Actual:   fmt.Sprintf("%d skipped ticks", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertUnchanged checks that paths hold their pre-run values.
func assertUnchanged(actx *AssertionContext, result *Result, a Assertion) error {
	var changed []string
	for _, ref := range a.Paths {
		path, err := actx.storePath(ref)
		if err != nil {
			return err
		}
		before, ok := result.Initial[path]
		if !ok {
			return fmt.Errorf("unchanged: no state path %q", path)
		}
		if !valuesEqual(before, result.State[path]) {
			changed = append(changed, fmt.Sprintf("%s: %s -> %s", ref, canonical(before), canonical(result.State[path])))
		}
	}
	if len(changed) > 0 {
		return &AssertionError{
			Type:     AssertUnchanged,
			Expected: fmt.Sprintf("%v unchanged", a.Paths),
			Actual:   strings.Join(changed, ", "),
		}
	}
	return nil
}

// valuesEqual compares values by canonical JSON, so numbers keep their
// int/float distinction and []float64 equals a list of the same floats.
func valuesEqual(expected, actual any) bool {
	e, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	return bytes.Equal(e, a)
}

func canonical(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	if actx == nil {
		actx = &AssertionContext{}
	}
	if actx.Ctx == nil {
		actx.Ctx = context.Background()
	}

	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(actx, result, a)
		case AssertWatched:
			err = assertWatched(result.Trace, a)
		case AssertOutcome:
			err = assertOutcome(result.Trace, a)
		case AssertSkipped:
			err = assertSkipped(result, a)
		case AssertUnchanged:
			err = assertUnchanged(actx, result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
