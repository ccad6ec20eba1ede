// Package engine drives a loaded model through simulation runs.
//
// A run executes one process of a loaded model for a fixed number of ticks.
// Each tick calls Execute with update set, so the process commits its
// written paths back to the model store before the next tick reads them.
// Runtime arguments for every tick come from an ArgSchedule.
//
// Ticks are executed in a single goroutine, one after another. A tick that
// the process cannot execute (missing argument, graph rewired since compile,
// failed step) is recorded as skipped and the run continues with an
// unchanged store.
//
// With a store attached, the engine persists the model, the run record, a
// per-tick log (arguments, outcome, state hash, watched values) and state
// checkpoints. Tick 0 is always checkpointed so that Replay can restart the
// run from its initial state and check that every recorded state hash is
// reproduced.
//
// Ordering uses logical counters only. Runs are stamped with a seq from the
// Clock and ticks are numbered from 1. Wall-clock time is only read for the
// tick duration metric.
package engine
