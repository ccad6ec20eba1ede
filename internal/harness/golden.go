package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/simcore/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceSnapshot is the golden trace of one scenario run.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Process      string         `json:"process"`
	Trace        []TraceTick    `json:"trace"`
	Final        map[string]any `json:"final"`
}

// toCanonicalMap converts the snapshot to the value set ir.MarshalCanonical
// accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	ticks := make([]any, len(s.Trace))
	for i, t := range s.Trace {
		m := map[string]any{
			"tick":    t.Tick,
			"outcome": t.Outcome,
			"args":    t.Args,
			"watched": t.Watched,
		}
		if t.Reason != "" {
			m["reason"] = t.Reason
		}
		ticks[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"process":       s.Process,
		"trace":         ticks,
		"final":         s.Final,
	}
}

// GoldenTrace serializes a scenario result as canonical JSON. State hashes
// are left out; Run already checks them by replaying.
func GoldenTrace(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Process:      scenario.Process,
		Trace:        result.Trace,
		Final:        result.State,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. A trace mismatch
// fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := GoldenTrace(scenario, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
