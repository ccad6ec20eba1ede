package state

import (
	"fmt"
	"maps"
	"slices"
)

// Snapshot is a flat copy of store values keyed by path.
type Snapshot map[string]any

// Clone returns a copy of the snapshot. Vector and container values are
// copied so the clone can be mutated independently.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = CloneValue(v)
	}
	return out
}

// Keys returns the snapshot paths in sorted order.
func (s Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// CloneValue copies mutable container values ([]float64, []any, map[string]any).
// Scalars are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case []float64:
		return slices.Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = CloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// Store is the shared path-to-value mapping.
type Store struct {
	values map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Init creates path with an initial value. Re-initializing an existing path
// replaces its value.
func (s *Store) Init(path string, v any) {
	s.values[path] = CloneValue(v)
}

// Has reports whether path has been initialized.
func (s *Store) Has(path string) bool {
	_, ok := s.values[path]
	return ok
}

// Get returns the current value at path.
func (s *Store) Get(path string) (any, bool) {
	v, ok := s.values[path]
	return v, ok
}

// Set writes v to an existing path.
func (s *Store) Set(path string, v any) error {
	if _, ok := s.values[path]; !ok {
		return fmt.Errorf("state path %q does not exist", path)
	}
	s.values[path] = CloneValue(v)
	return nil
}

// Slice copies the values of the given paths. Paths that do not exist are
// omitted.
func (s *Store) Slice(paths []string) Snapshot {
	out := make(Snapshot, len(paths))
	for _, p := range paths {
		if v, ok := s.values[p]; ok {
			out[p] = CloneValue(v)
		}
	}
	return out
}

// Snapshot copies the entire store.
func (s *Store) Snapshot() Snapshot {
	return Snapshot(s.values).Clone()
}

// Commit writes back only the listed keys from patch. Every key must exist
// in both the store and the patch; on error nothing is written.
func (s *Store) Commit(patch Snapshot, keys []string) error {
	for _, k := range keys {
		if _, ok := s.values[k]; !ok {
			return fmt.Errorf("commit: state path %q does not exist", k)
		}
		if _, ok := patch[k]; !ok {
			return fmt.Errorf("commit: patch has no value for %q", k)
		}
	}
	for _, k := range keys {
		s.values[k] = CloneValue(patch[k])
	}
	return nil
}

// Restore overwrites every path present in snap. Paths in snap that the
// store does not have are rejected.
func (s *Store) Restore(snap Snapshot) error {
	keys := snap.Keys()
	return s.Commit(snap, keys)
}

// Keys returns all store paths in sorted order.
func (s *Store) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of initialized paths.
func (s *Store) Len() int {
	return len(s.values)
}
