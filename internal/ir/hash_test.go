package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() ModelSpec {
	return ModelSpec{
		Name: "net",
		Components: []ComponentSpec{
			{
				Name:   "X",
				Kind:   ExprKind,
				Params: map[string]any{"p": 2, "tau": 10.0},
				Compartments: []CompartmentSpec{
					{Name: "y", Initial: 0},
				},
				Transitions: []TransitionSpec{
					{Name: "step", Outputs: []OutputSpec{{Compartment: "y", Expr: "p"}}},
				},
			},
		},
		Processes: []ProcessSpec{
			{Name: "advance", Steps: []StepSpec{{Component: "X", Transition: "step"}}},
		},
	}
}

func TestModelHashDeterministic(t *testing.T) {
	a := MustModelHash(sampleModel())
	b := MustModelHash(sampleModel())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestModelHashSensitiveToContent(t *testing.T) {
	base := MustModelHash(sampleModel())

	changed := sampleModel()
	changed.Components[0].Params["p"] = 3
	assert.NotEqual(t, base, MustModelHash(changed))
}

func TestStateHashDomainSeparation(t *testing.T) {
	state := map[string]any{"name": "net"}
	stateHash := MustStateHash(state)

	canonical, err := MarshalCanonical(state)
	require.NoError(t, err)
	assert.NotEqual(t, hashWithDomain(DomainModel, canonical), stateHash)
	assert.Equal(t, hashWithDomain(DomainState, canonical), stateHash)
}

func TestStateHashRejectsNonFinite(t *testing.T) {
	var zero float64
	_, err := StateHash(map[string]any{"x": 1 / zero})
	assert.Error(t, err)
}

func TestModelHashKeepsFloatDistinction(t *testing.T) {
	asInt := sampleModel()
	asFloat := sampleModel()
	asFloat.Components[0].Compartments[0].Initial = 0.0
	assert.NotEqual(t, MustModelHash(asInt), MustModelHash(asFloat))
}

func TestMarshalModelRoundTrip(t *testing.T) {
	spec := sampleModel()
	spec.Components[0].Compartments = append(spec.Components[0].Compartments,
		CompartmentSpec{Name: "w", Initial: []float64{1, 2.5}, Fixed: true})
	spec.Wires = []WireSpec{{To: "X:y", From: SourceSpec{Op: &OperationSpec{
		Op: "negate", Sources: []SourceSpec{{Path: "X:w"}},
	}}}}

	data, err := MarshalModel(spec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tau":10.0`)

	decoded, err := UnmarshalModel(data)
	require.NoError(t, err)
	assert.Equal(t, int64(2), decoded.Components[0].Params["p"])
	assert.Equal(t, 10.0, decoded.Components[0].Params["tau"])
	assert.Equal(t, int64(0), decoded.Components[0].Compartments[0].Initial)
	assert.Equal(t, []float64{1, 2.5}, decoded.Components[0].Compartments[1].Initial)
	assert.Equal(t, spec.Wires, decoded.Wires)
	assert.Equal(t, MustModelHash(spec), MustModelHash(decoded))
}

func TestUnmarshalModelRejectsGarbage(t *testing.T) {
	_, err := UnmarshalModel([]byte(`{"name":`))
	assert.Error(t, err)
}
