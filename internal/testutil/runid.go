// Package testutil holds deterministic helpers and fixtures for tests.
package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDGenerator returns run IDs "<prefix>-1", "<prefix>-2", ...
//
// The same scenario run with a fresh generator produces identical run IDs,
// so stored tick logs and golden traces are byte-stable.
//
// Thread-safety: all methods are safe for concurrent use.
type FixedRunIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedRunIDGenerator creates a generator. An empty prefix uses "run".
func NewFixedRunIDGenerator(prefix string) *FixedRunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &FixedRunIDGenerator{prefix: prefix}
}

// Generate returns the next run ID.
func (g *FixedRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *FixedRunIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
