// Package harness runs simulation scenarios against model files.
//
// A scenario names a model directory, a process, a tick count and the
// runtime arguments for each tick. The harness loads the model, applies
// clamps, runs the process through the engine on a fresh in-memory store,
// replays the stored run to check determinism, and evaluates assertions.
//
// # Scenario Format
//
//	name: leaky_drive
//	description: "W:acc integrates the drive argument"
//	model: models/counter
//	process: drive
//	ticks: 4
//	args: { drive: 1.0 }        # every tick
//	schedule:                   # per-tick overrides, merged over args
//	  - tick: 2
//	    args: { drive: 0.5 }
//	clamp:                      # set before the first tick
//	  "X:y": 10.0
//	assertions:
//	  - type: final_state
//	    path: "W:acc"
//	    equals: 3.5
//	  - type: watched
//	    tick: 2
//	    equals: [1.5]
//	  - type: outcome
//	    tick: 3
//	    outcome: ok
//	  - type: skipped
//	    count: 0
//	  - type: unchanged
//	    paths: ["X:y"]
//
// Paths are model-relative ("Component:compartment"). Values compare by
// canonical JSON, so 3 and 3.0 are different values.
//
// # Golden Traces
//
// The tick log of a run (arguments, outcome, watched values, final state)
// is serialized as canonical JSON and compared against
// testdata/golden/<name>.golden. Run go test with -update to regenerate.
//
// # Determinism
//
// Run IDs come from a fixed generator and the run seq starts at 1 in every
// scenario, so the same scenario always produces the same trace bytes.
package harness
