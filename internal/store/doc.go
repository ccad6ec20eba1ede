// Package store provides SQLite-backed durable storage for simulation runs.
//
// The store keeps an append-only log of:
//   - Models: canonical model descriptions, keyed by content hash
//   - Runs: one engine run of a process, with its final status
//   - Ticks: per-tick arguments, outcome, watched values and state hash
//   - Checkpoints: full state snapshots at selected ticks
//
// # Ordering
//
// Runs are ordered by their logical seq, ticks by tick number. Timestamps
// are never stored, so a replayed run produces byte-identical rows.
//
// Run queries go through RunFilter, which binds every value as a
// parameter and always orders by seq with a binary-collated id tiebreak.
//
// # Database Configuration
//
// Open sets WAL journaling, synchronous=NORMAL, foreign keys and a busy
// timeout (5s unless WithBusyTimeout says otherwise). The schema version
// lives in PRAGMA user_version.
//
// Models and states are hashed with internal/ir (canonical JSON, SHA-256
// with domain separation).
package store
