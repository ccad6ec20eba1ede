// Package state implements the flat path-to-value store that compartments
// read and write through.
//
// A path exists only after a compartment initializes it. Values change
// through direct Set calls (clamping, initialization) or through Commit,
// which writes back an explicit list of keys from a process result. Nothing
// is ever deleted implicitly.
//
// The store provides no locking. Callers serialize access.
package state
