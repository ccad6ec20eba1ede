package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a simulation test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the directory holding the model's CUE files.
	Model string `yaml:"model"`

	// Process is the process to run.
	Process string `yaml:"process"`

	// Ticks is the number of ticks to run.
	Ticks int64 `yaml:"ticks"`

	// Args are passed on every tick.
	Args map[string]any `yaml:"args,omitempty"`

	// Schedule overrides or adds arguments on specific ticks.
	Schedule []ScheduleStep `yaml:"schedule,omitempty"`

	// Clamp sets compartment values before the first tick.
	Clamp map[string]any `yaml:"clamp,omitempty"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// ScheduleStep holds the arguments for one tick. They are merged over the
// scenario-wide Args; a null value removes the argument for that tick.
type ScheduleStep struct {
	Tick int64          `yaml:"tick"`
	Args map[string]any `yaml:"args"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Path is a model-relative compartment ref (final_state).
	Path string `yaml:"path,omitempty"`

	// Paths are model-relative compartment refs (unchanged).
	Paths []string `yaml:"paths,omitempty"`

	// Tick selects a tick (watched, outcome). 0 means the last tick.
	Tick int64 `yaml:"tick,omitempty"`

	// Equals is the expected value (final_state, watched).
	Equals any `yaml:"equals,omitempty"`

	// Outcome is the expected tick outcome (outcome).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of skipped ticks (skipped).
	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertWatched    = "watched"
	AssertOutcome    = "outcome"
	AssertSkipped    = "skipped"
	AssertUnchanged  = "unchanged"
)

// LoadScenario reads and parses a scenario YAML file. A relative model
// path is resolved against the scenario file's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative model path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if info, err := os.Stat(s.Model); err != nil || !info.IsDir() {
		return fmt.Errorf("model directory not found: %s", s.Model)
	}
	if s.Process == "" {
		return fmt.Errorf("process is required")
	}
	if s.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive, got %d", s.Ticks)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[int64]bool)
	for i, step := range s.Schedule {
		if step.Tick < 1 || step.Tick > s.Ticks {
			return fmt.Errorf("schedule[%d]: tick %d outside 1..%d", i, step.Tick, s.Ticks)
		}
		if seen[step.Tick] {
			return fmt.Errorf("schedule[%d]: tick %d scheduled twice", i, step.Tick)
		}
		seen[step.Tick] = true
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, s.Ticks); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, ticks int64) error {
	switch a.Type {
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("final_state requires path")
		}
	case AssertWatched, AssertOutcome:
		if a.Tick < 0 || a.Tick > ticks {
			return fmt.Errorf("%s: tick %d outside 0..%d", a.Type, a.Tick, ticks)
		}
		if a.Type == AssertOutcome && a.Outcome == "" {
			return fmt.Errorf("outcome requires outcome")
		}
	case AssertSkipped:
		if a.Count < 0 {
			return fmt.Errorf("skipped: count must not be negative")
		}
	case AssertUnchanged:
		if len(a.Paths) == 0 {
			return fmt.Errorf("unchanged requires paths")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// ArgsFor returns the runtime arguments for tick: Args with the tick's
// schedule entry merged over them.
func (s *Scenario) ArgsFor(tick int64) map[string]any {
	args := make(map[string]any, len(s.Args))
	for k, v := range s.Args {
		args[k] = v
	}
	for _, step := range s.Schedule {
		if step.Tick != tick {
			continue
		}
		for k, v := range step.Args {
			if v == nil {
				delete(args, k)
				continue
			}
			args[k] = v
		}
	}
	return args
}
