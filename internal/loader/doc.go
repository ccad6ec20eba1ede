// Package loader turns a serialized model description into a live model
// context with compiled processes, and exports a live context back into
// the same description.
//
// Load always recompiles: compiled artifacts are never persisted.
package loader
