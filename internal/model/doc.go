// Package model implements the model graph: contexts, components,
// compartments, operations, and transition declarations.
//
// A Context owns the state store and a set of uniquely named components.
// Components are created in one step (Context.Create or Registry.Build),
// which validates the declaration, initializes every compartment's store
// path, and classifies each transition's inputs into compartment reads,
// parameters, and runtime arguments.
//
// Wiring is data flow into a compartment:
//
//	z.Wire(x)                   // overwrite(x)
//	z.Wire(model.Summation(a, b))
//	z.Forward(x)                // alias x's resolved target, one hop
//
// Rewiring is last-write-wins. Every wire bumps the context revision so a
// process compiled earlier can tell its artifact is stale.
//
// Errors:
//   - Construction and compile problems are returned as *ModelError and
//     *CompileError with a code
//   - Execution-time problems wrap ErrNotCompiled, ErrMissingArgument,
//     ErrGraphChanged, or ErrStepFailed
package model
