// Package ir provides the serializable model description for simcore.
//
// This package contains the persistence-facing types only. All other internal
// packages import ir; ir imports nothing internal. This keeps the model
// description the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - A ModelSpec is sufficient to rebuild a model graph: per-component
//     constructor data, wiring, and per-process step lists with watch paths
//   - Compiled artifacts are never part of the description; loading always
//     recompiles
//   - References inside a ModelSpec are model-relative ("Component:compartment");
//     store paths are absolute ("context:component:compartment")
//   - All JSON tags use snake_case
//   - Canonical JSON (sorted keys, NFC strings) is the only input to hashing
package ir
