package harness

import "github.com/roach88/simcore/internal/ir"

// TraceTick is one tick of a scenario run, as it appears in golden traces.
type TraceTick struct {
	Tick    int64          `json:"tick"`
	Outcome string         `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
	Args    map[string]any `json:"args"`
	Watched []any          `json:"watched"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held and the replay matched.
	Pass bool `json:"pass"`

	// Run is the stored run record.
	Run ir.Run `json:"run"`

	// Trace holds every executed tick in order.
	Trace []TraceTick `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Initial and State are the store snapshots before the first tick
	// (after clamps) and after the last one, keyed by store path.
	Initial map[string]any `json:"initial,omitempty"`
	State   map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceTick{},
		Errors:  []string{},
		Initial: make(map[string]any),
		State:   make(map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTick appends a recorded engine tick to the trace.
func (r *Result) AddTick(t ir.Tick) {
	r.Trace = append(r.Trace, TraceTick{
		Tick:    t.Tick,
		Outcome: t.Outcome,
		Reason:  t.Reason,
		Args:    t.Args,
		Watched: t.Watched,
	})
}

// Skipped returns the number of skipped ticks in the trace.
func (r *Result) Skipped() int {
	n := 0
	for _, t := range r.Trace {
		if t.Outcome == ir.TickSkipped {
			n++
		}
	}
	return n
}
