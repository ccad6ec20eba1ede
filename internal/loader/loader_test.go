package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/roach88/simcore/internal/compiler"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/process"
	"github.com/roach88/simcore/internal/state"
)

const leaky = `
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
		W: {
			compartments: {
				v: 0
				acc: 0
			}
			transitions: step: acc: "v + drive"
		}
	}
	wires: [
		{to: "W:v", from: "Z:b", forward: true},
		{to: "Z:a", from: "X:y"},
		{to: "Z:b", op: "summation", from: ["X:y", {op: "negate", from: "X:c"}]},
	]
	processes: {
		main: {steps: ["X.step", "Z.step"], watch: ["Z:out"]}
		drive: {steps: ["W.step"], watch: ["W:acc"]}
		all: {processes: ["main", "drive"]}
	}
}
`

func loadLeaky(t *testing.T) *Model {
	t.Helper()
	spec, err := compiler.CompileSource(leaky)
	require.NoError(t, err)
	m, err := Load(*spec, nil)
	require.NoError(t, err)
	return m
}

func TestLoadAndExecute(t *testing.T) {
	m := loadLeaky(t)

	main, ok := m.Process("main")
	require.True(t, ok)
	assert.True(t, main.Compiled())
	assert.Empty(t, main.RequiredArgs())

	res, err := main.Execute(true, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{3.0}, res.Watched)

	store := m.Context.Store()
	y, _ := store.Get("leaky:X:y")
	assert.Equal(t, 2.0, y)
	out, _ := store.Get("leaky:Z:out")
	assert.Equal(t, 3.0, out)
}

func TestLoadForwardResolvesAgainstFinalWiring(t *testing.T) {
	m := loadLeaky(t)

	w, ok := m.Context.Component("W")
	require.True(t, ok)
	v, ok := w.Compartment("v")
	require.True(t, ok)
	z, _ := m.Context.Component("Z")
	b, _ := z.Compartment("b")

	assert.Same(t, b.Operation(), v.Operation())
	assert.Same(t, b, v.Forwarded())

	drive, _ := m.Process("drive")
	assert.Equal(t, []string{"drive"}, drive.RequiredArgs())

	res, err := drive.Execute(false, process.Args{"drive": int64(1)})
	require.NoError(t, err)
	// The forwarded summation is read inline: X:y + -(X:c), plus drive.
	assert.Equal(t, []any{0.0}, res.Watched)
}

func TestLoadJointProcess(t *testing.T) {
	m := loadLeaky(t)

	all, ok := m.Process("all")
	require.True(t, ok)
	assert.Equal(t, []string{"drive"}, all.RequiredArgs())
	assert.Equal(t, []string{"main", "drive", "all"}, processNames(m.Processes()))

	res, err := all.Execute(false, process.Args{"drive": 0.5})
	require.NoError(t, err)
	require.Len(t, res.Watched, 2)
	assert.Equal(t, 3.0, res.Watched[0])
	assert.Equal(t, 1.5, res.Watched[1])
}

func TestExportRoundTrip(t *testing.T) {
	m := loadLeaky(t)

	exported := m.Export()
	assert.Equal(t, "leaky", exported.Name)
	require.Len(t, exported.Wires, 3)
	assert.Equal(t, ir.WireSpec{To: "Z:a", From: ir.SourceSpec{Path: "X:y"}}, exported.Wires[0])
	assert.Equal(t, "summation", exported.Wires[1].From.Op.Op)
	assert.Equal(t, ir.WireSpec{To: "W:v", From: ir.SourceSpec{Path: "Z:b"}, Forward: true}, exported.Wires[2])
	assert.Equal(t, m.Spec.Processes, exported.Processes)
	assert.Equal(t, m.Spec.Components, exported.Components)

	// Survives persistence and rebuilds to the same description and the
	// same behaviour.
	data, err := ir.MarshalModel(exported)
	require.NoError(t, err)
	decoded, err := ir.UnmarshalModel(data)
	require.NoError(t, err)

	rebuilt, err := Load(decoded, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.MustModelHash(exported), ir.MustModelHash(rebuilt.Export()))

	for _, name := range []string{"main", "all"} {
		want, _ := m.Process(name)
		got, _ := rebuilt.Process(name)
		args := process.Args{"drive": 1.0}
		wantRes, err := want.Execute(false, args)
		require.NoError(t, err)
		gotRes, err := got.Execute(false, args)
		require.NoError(t, err)
		if diff := cmp.Diff(wantRes.Watched, gotRes.Watched); diff != "" {
			t.Errorf("%s watched mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	spec := ir.ModelSpec{
		Name: "bad",
		Components: []ir.ComponentSpec{
			{Name: "A", Kind: "missing"},
			{Name: "B", Kind: "other"},
		},
	}
	_, err := Load(spec, nil)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, model.IsModelError(e, model.ErrCodeUnknownKind))
	}
}

func TestLoadWireErrors(t *testing.T) {
	spec, err := compiler.CompileSource(leaky)
	require.NoError(t, err)
	spec.Wires = append(spec.Wires,
		ir.WireSpec{To: "X:c", From: ir.SourceSpec{Path: "Z:out"}},
		ir.WireSpec{To: "Z:a", From: ir.SourceSpec{Op: &ir.OperationSpec{Op: "max", Sources: []ir.SourceSpec{{Path: "X:y"}}}}},
		ir.WireSpec{To: "Q:a", From: ir.SourceSpec{Path: "X:y"}},
	)

	_, err = Load(*spec, nil)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	assert.True(t, model.IsModelError(errs[0], model.ErrCodeFixedCompartment))
	assert.True(t, model.IsModelError(errs[1], model.ErrCodeUnknownOperation))
	assert.Contains(t, errs[2].Error(), `unknown component "Q"`)
}

func TestLoadProcessErrors(t *testing.T) {
	spec, err := compiler.CompileSource(leaky)
	require.NoError(t, err)
	spec.Processes = append(spec.Processes,
		ir.ProcessSpec{Name: "bad", Steps: []ir.StepSpec{{Component: "X", Transition: "reset"}}},
		ir.ProcessSpec{Name: "orphan", Processes: []string{"later"}},
	)

	_, err = Load(*spec, nil)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.True(t, model.IsModelError(errs[0], model.ErrCodeUnknownTransition))
	assert.Contains(t, errs[1].Error(), `unknown child "later"`)
}

func TestLoadWithStore(t *testing.T) {
	spec, err := compiler.CompileSource(leaky)
	require.NoError(t, err)

	store := state.New()
	m, err := Load(*spec, nil, WithStore(store))
	require.NoError(t, err)
	assert.Same(t, store, m.Context.Store())
	assert.True(t, store.Has("leaky:X:y"))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaky.cue"), []byte(leaky), 0644))

	m, err := LoadDir(dir, nil)
	require.NoError(t, err)
	assert.Len(t, m.Processes(), 3)
}

func TestLoadDirValidationErrors(t *testing.T) {
	dir := t.TempDir()
	src := `
package model

model: {
	name: "broken"
	components: A: {
		compartments: x: {initial: 0, fixed: true}
		transitions: step: x: "x + 1"
	}
	processes: p: steps: ["A.nope"]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cue"), []byte(src), 0644))

	_, err := LoadDir(dir, nil)
	require.Error(t, err)
	var codes []string
	for _, e := range multierr.Errors(err) {
		var ve compiler.ValidationError
		require.ErrorAs(t, e, &ve)
		codes = append(codes, ve.Code)
	}
	assert.Equal(t, []string{compiler.ErrFixedOutput, compiler.ErrUnknownStepTransition}, codes)
}

func processNames(ps []process.Executor) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}
