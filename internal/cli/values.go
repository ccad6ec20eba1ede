package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/process"
)

// parseArgs parses repeated --arg key=value flags. A value that is valid
// JSON is decoded into the persistence value set (1 is an integer, 1.0 a
// float, [1.0,2.0] a vector); anything else is taken as a string.
func parseArgs(pairs []string) (process.Args, error) {
	args := make(process.Args, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q: want key=value", pair)
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("--arg %q given twice", key)
		}
		args[key] = parseArgValue(raw)
	}
	return args, nil
}

func parseArgValue(raw string) any {
	if json.Valid([]byte(raw)) {
		if v, err := ir.DecodeValue([]byte(raw)); err == nil {
			return v
		}
	}
	return raw
}

// formatValue renders v as canonical JSON so floats keep their ".0".
func formatValue(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// formatArgs renders args as key=value pairs in sorted key order.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := ir.SortedKeys(args)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatValue(args[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateID shortens a long ID or hash for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
