package state

import "strings"

// Separator joins hierarchical path segments.
const Separator = ":"

// Join builds a store path from segments, e.g. Join("ctx", "X", "y") is "ctx:X:y".
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Split breaks a store path into its segments.
func Split(path string) []string {
	return strings.Split(path, Separator)
}
