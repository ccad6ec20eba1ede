package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simcore/internal/compiler"
	"github.com/roach88/simcore/internal/ir"
)

func compiledLeaky(t *testing.T) (ir.ModelSpec, []byte, string) {
	t.Helper()
	res, err := compiler.LoadDir(leakyDir)
	require.NoError(t, err)
	data, err := ir.MarshalModel(*res.Model)
	require.NoError(t, err)
	return *res.Model, data, ir.MustModelHash(*res.Model)
}

func TestCompile_Text(t *testing.T) {
	_, _, hash := compiledLeaky(t)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), leakyDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled model leaky: 3 component(s), 1 wire(s), 2 process(es)")
	assert.Contains(t, out, "hash: "+hash)
	assert.Contains(t, out, "X (expr): 2 compartment(s), 1 transition(s)")
	assert.Contains(t, out, "grow: [X.step Z.step]")
	assert.NotContains(t, out, "Wrote canonical IR")
}

func TestCompile_JSON(t *testing.T) {
	_, data, hash := compiledLeaky(t)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), leakyDir)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Hash  string           `json:"hash"`
			Model json.RawMessage  `json:"model"`
			Stats CompilationStats `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, hash, resp.Data.Hash)
	assert.JSONEq(t, string(data), string(resp.Data.Model))
	assert.Equal(t, CompilationStats{Components: 3, Compartments: 5, Transitions: 3, Wires: 1, Processes: 2}, resp.Data.Stats)
}

func TestCompile_OutputFileIsCanonical(t *testing.T) {
	spec, data, _ := compiledLeaky(t)
	path := filepath.Join(t.TempDir(), "leaky.json")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), leakyDir, "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote canonical IR to "+path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(written))

	back, err := ir.UnmarshalModel(written)
	require.NoError(t, err)
	assert.Equal(t, ir.MustModelHash(spec), ir.MustModelHash(back))
}

func TestCompile_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		code string
	}{
		{"missing dir", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none") }, compiler.ErrCodeNotFound},
		{"no cue files", func(t *testing.T) string { return t.TempDir() }, compiler.ErrCodeNoFiles},
		{"no model field", func(t *testing.T) string {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "m.cue"), []byte("package m\nother: 1\n"), 0644))
			return dir
		}, compiler.ErrCodeNoModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), tt.dir(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCompile_ValidationErrors(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), brokenDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownWireTarget)
	assert.Contains(t, out, compiler.ErrUnknownStepComponent)
}
