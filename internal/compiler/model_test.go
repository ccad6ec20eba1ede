package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simcore/internal/ir"
)

const leakySource = `
package model

model: {
	name: "leaky"
	components: {
		X: {
			params: k: 2
			compartments: {
				y: 0
				c: {initial: 1.0, fixed: true}
			}
			transitions: step: y: "y + c * k"
		}
		Z: {
			compartments: {
				a: 0
				b: 0
				out: 0
			}
			transitions: step: out: "a + b"
		}
	}
	wires: [
		{to: "Z:a", from: "X:y"},
		{to: "Z:b", op: "summation", from: ["X:y", {op: "negate", from: "X:c"}]},
	]
	processes: {
		main: {steps: ["X.step", "Z.step"], watch: ["Z:out"]}
		twice: {processes: ["main", "main"]}
	}
}
`

func TestCompileSource(t *testing.T) {
	spec, err := CompileSource(leakySource)
	require.NoError(t, err)

	assert.Equal(t, "leaky", spec.Name)
	require.Len(t, spec.Components, 2)

	x := spec.Components[0]
	assert.Equal(t, "X", x.Name)
	assert.Equal(t, ir.ExprKind, x.Kind)
	assert.Equal(t, map[string]any{"k": int64(2)}, x.Params)
	assert.Equal(t, []ir.CompartmentSpec{
		{Name: "y", Initial: int64(0)},
		{Name: "c", Initial: 1.0, Fixed: true},
	}, x.Compartments)
	assert.Equal(t, []ir.TransitionSpec{{
		Name:    "step",
		Outputs: []ir.OutputSpec{{Compartment: "y", Expr: "y + c * k"}},
	}}, x.Transitions)

	assert.Equal(t, []string{"a", "b", "out"}, compartmentNames(spec.Components[1]))

	require.Len(t, spec.Wires, 2)
	assert.Equal(t, ir.WireSpec{To: "Z:a", From: ir.SourceSpec{Path: "X:y"}}, spec.Wires[0])
	assert.Equal(t, ir.WireSpec{
		To: "Z:b",
		From: ir.SourceSpec{Op: &ir.OperationSpec{Op: "summation", Sources: []ir.SourceSpec{
			{Path: "X:y"},
			{Op: &ir.OperationSpec{Op: "negate", Sources: []ir.SourceSpec{{Path: "X:c"}}}},
		}}},
	}, spec.Wires[1])

	require.Len(t, spec.Processes, 2)
	assert.Equal(t, ir.ProcessSpec{
		Name:  "main",
		Steps: []ir.StepSpec{{Component: "X", Transition: "step"}, {Component: "Z", Transition: "step"}},
		Watch: []string{"Z:out"},
	}, spec.Processes[0])
	assert.Equal(t, []string{"main", "main"}, spec.Processes[1].Processes)
	assert.True(t, spec.Processes[1].IsJoint())

	assert.Empty(t, Validate(spec, nil))
}

func TestCompileForwardWire(t *testing.T) {
	spec, err := CompileSource(`
model: {
	name: "fwd"
	components: {
		A: compartments: x: 0
		B: compartments: y: 0
	}
	wires: [{to: "B:y", from: "A:x", forward: true}]
}
`)
	require.NoError(t, err)
	require.Len(t, spec.Wires, 1)
	assert.True(t, spec.Wires[0].Forward)
	assert.Empty(t, spec.Processes)
}

func TestCompileHostKind(t *testing.T) {
	spec, err := CompileSource(`
model: {
	name: "host"
	components: N: {kind: "neuron", params: {tau: 10.0, w: [1, 2.5]}}
}
`)
	require.NoError(t, err)
	require.Len(t, spec.Components, 1)
	assert.Equal(t, "neuron", spec.Components[0].Kind)
	assert.Equal(t, []float64{1, 2.5}, spec.Components[0].Params["w"])
	assert.Equal(t, 10.0, spec.Components[0].Params["tau"])
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing name", `model: components: {}`, "name"},
		{"missing wire target", `model: {name: "m", wires: [{from: "A:x"}]}`, "wires[0].to"},
		{"missing wire source", `model: {name: "m", wires: [{to: "A:x"}]}`, "wires[0].from"},
		{"bad source", `model: {name: "m", wires: [{to: "A:x", from: {x: 1}}]}`, "wires[0].from"},
		{"bad step", `model: {name: "m", processes: p: steps: ["nodot"]}`, "processes.p.steps"},
		{"non-string output", `model: {name: "m", components: A: transitions: t: x: 1}`, "components.A.transitions.t.x"},
		{"watch not list", `model: {name: "m", processes: p: watch: "A:x"}`, "processes.p.watch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource(tt.src)
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileSourceSyntaxError(t *testing.T) {
	_, err := CompileSource(`model: {name: `)
	assert.Error(t, err)
}

func TestCompileSourceNoModel(t *testing.T) {
	_, err := CompileSource(`other: 1`)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ModelField, ce.Field)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaky.cue"), []byte(leakySource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not cue"), 0644))

	res, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, "leaky", res.Model.Name)
	assert.Len(t, res.Model.Components, 2)
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
		assertLoadCode(t, err, ErrCodeNotFound)
	})

	t.Run("not a directory", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "file.cue")
		require.NoError(t, os.WriteFile(f, []byte("package model"), 0644))
		_, err := LoadDir(f)
		assertLoadCode(t, err, ErrCodeNotFound)
	})

	t.Run("no files", func(t *testing.T) {
		_, err := LoadDir(t.TempDir())
		assertLoadCode(t, err, ErrCodeNoFiles)
	})

	t.Run("no model", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("package model\n\nother: 1\n"), 0644))
		_, err := LoadDir(dir)
		assertLoadCode(t, err, ErrCodeNoModel)
	})

	t.Run("compile error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("package model\n\nmodel: components: {}\n"), 0644))
		_, err := LoadDir(dir)
		assertLoadCode(t, err, ErrCodeBuildFailed)
	})
}

func TestFindCUEFilesSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.cue"), []byte("package model"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.cue"), []byte("package model"), 0644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "root.cue")}, files)
}

func assertLoadCode(t *testing.T, err error, code string) {
	t.Helper()
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, code, le.Code)
}

func compartmentNames(c ir.ComponentSpec) []string {
	names := make([]string, len(c.Compartments))
	for i, comp := range c.Compartments {
		names[i] = comp.Name
	}
	return names
}
