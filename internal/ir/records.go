package ir

// NOTE: These are store records for simulation runs. Ordering uses the
// logical Seq and Tick counters, never wall-clock time.

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// Tick outcomes.
const (
	TickOK      = "ok"
	TickSkipped = "skipped"
)

// Run is one engine run of a process over a stored model.
type Run struct {
	ID             string `json:"id"`
	ModelHash      string `json:"model_hash"`
	Process        string `json:"process"`
	Ticks          int64  `json:"ticks"` // requested
	Seq            int64  `json:"seq"`   // logical clock at start
	Status         string `json:"status"`
	CompletedTicks int64  `json:"completed_ticks"`
	SkippedTicks   int64  `json:"skipped_ticks"`
	FinalStateHash string `json:"final_state_hash,omitempty"`
	EngineVersion  string `json:"engine_version"`
	IRVersion      string `json:"ir_version"`
}

// Tick records one execution inside a run. Ticks are numbered from 1.
type Tick struct {
	RunID     string         `json:"run_id"`
	Tick      int64          `json:"tick"`
	Args      map[string]any `json:"args"`
	Outcome   string         `json:"outcome"`
	Reason    string         `json:"reason,omitempty"`
	StateHash string         `json:"state_hash"` // store after the tick
	Watched   []any          `json:"watched"`
}

// Checkpoint is a full store snapshot taken after Tick (0 is the state
// before the first tick).
type Checkpoint struct {
	RunID     string         `json:"run_id"`
	Tick      int64          `json:"tick"`
	StateHash string         `json:"state_hash"`
	State     map[string]any `json:"state"`
}
