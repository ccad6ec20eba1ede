package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simcore/internal/expr"
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/model"
)

func baseSpec() *ir.ModelSpec {
	return &ir.ModelSpec{
		Name: "m",
		Components: []ir.ComponentSpec{
			{
				Name:   "A",
				Kind:   ir.ExprKind,
				Params: map[string]any{"k": int64(2)},
				Compartments: []ir.CompartmentSpec{
					{Name: "x", Initial: int64(0)},
					{Name: "c", Initial: 1.0, Fixed: true},
				},
				Transitions: []ir.TransitionSpec{
					{Name: "step", Outputs: []ir.OutputSpec{{Compartment: "x", Expr: "x + c * k"}}},
				},
			},
			{
				Name:         "B",
				Kind:         ir.ExprKind,
				Compartments: []ir.CompartmentSpec{{Name: "y", Initial: int64(0)}},
				Transitions: []ir.TransitionSpec{
					{Name: "step", Outputs: []ir.OutputSpec{{Compartment: "y", Expr: "y * 2"}}},
				},
			},
		},
		Wires: []ir.WireSpec{{To: "B:y", From: ir.SourceSpec{Path: "A:x"}}},
		Processes: []ir.ProcessSpec{
			{Name: "main", Steps: []ir.StepSpec{{Component: "A", Transition: "step"}, {Component: "B", Transition: "step"}}},
		},
	}
}

func TestValidateValid(t *testing.T) {
	errs := Validate(baseSpec(), nil)
	assert.Empty(t, errs, "valid spec should have no errors")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.ModelSpec)
		code   string
	}{
		{"empty model name", func(s *ir.ModelSpec) { s.Name = " " }, ErrModelNameEmpty},
		{"invalid component name", func(s *ir.ModelSpec) { s.Components[1].Name = "B:1" }, ErrInvalidName},
		{"duplicate component", func(s *ir.ModelSpec) { s.Components[1].Name = "A" }, ErrDuplicateName},
		{"param collides with compartment", func(s *ir.ModelSpec) {
			s.Components[0].Params["x"] = int64(1)
		}, ErrDuplicateName},
		{"transition collides with compartment", func(s *ir.ModelSpec) {
			s.Components[1].Transitions[0].Name = "y"
		}, ErrDuplicateName},
		{"unknown kind", func(s *ir.ModelSpec) { s.Components[1].Kind = "neuron" }, ErrUnknownKind},
		{"unknown output", func(s *ir.ModelSpec) {
			s.Components[0].Transitions[0].Outputs[0].Compartment = "nope"
		}, ErrUnknownOutput},
		{"fixed output", func(s *ir.ModelSpec) {
			s.Components[0].Transitions[0].Outputs[0].Compartment = "c"
		}, ErrFixedOutput},
		{"expression syntax", func(s *ir.ModelSpec) {
			s.Components[0].Transitions[0].Outputs[0].Expr = "x +"
		}, ErrExprSyntax},
		{"branch on state", func(s *ir.ModelSpec) {
			s.Components[0].Transitions[0].Outputs[0].Expr = "[if x > 0 {1}, 0][0]"
		}, ErrStateDependentBranch},
		{"branch on runtime argument", func(s *ir.ModelSpec) {
			s.Components[0].Transitions[0].Outputs[0].Expr = "[if drive > 0 {1}, 0][0]"
		}, ErrStateDependentBranch},
		{"unknown wire target", func(s *ir.ModelSpec) { s.Wires[0].To = "B:nope" }, ErrUnknownWireTarget},
		{"malformed wire target", func(s *ir.ModelSpec) { s.Wires[0].To = "B" }, ErrUnknownWireTarget},
		{"unknown wire source", func(s *ir.ModelSpec) { s.Wires[0].From.Path = "C:x" }, ErrUnknownWireSource},
		{"unknown operation", func(s *ir.ModelSpec) {
			s.Wires[0].From = ir.SourceSpec{Op: &ir.OperationSpec{Op: "max", Sources: []ir.SourceSpec{{Path: "A:x"}}}}
		}, ErrUnknownOperation},
		{"wire into fixed", func(s *ir.ModelSpec) { s.Wires[0].To = "A:c" }, ErrWireIntoFixed},
		{"forward of operation", func(s *ir.ModelSpec) {
			s.Wires[0].Forward = true
			s.Wires[0].From = ir.SourceSpec{Op: &ir.OperationSpec{Op: "negate", Sources: []ir.SourceSpec{{Path: "A:x"}}}}
		}, ErrInvalidForward},
		{"unknown step component", func(s *ir.ModelSpec) { s.Processes[0].Steps[0].Component = "C" }, ErrUnknownStepComponent},
		{"unknown step transition", func(s *ir.ModelSpec) { s.Processes[0].Steps[0].Transition = "reset" }, ErrUnknownStepTransition},
		{"unknown watch", func(s *ir.ModelSpec) { s.Processes[0].Watch = []string{"A:nope"} }, ErrUnknownWatch},
		{"child declared later", func(s *ir.ModelSpec) {
			s.Processes = append([]ir.ProcessSpec{{Name: "joint", Processes: []string{"main"}}}, s.Processes...)
		}, ErrUnknownChild},
		{"empty process", func(s *ir.ModelSpec) { s.Processes[0].Steps = nil }, ErrProcessShape},
		{"steps and processes", func(s *ir.ModelSpec) { s.Processes[0].Processes = []string{"main"} }, ErrProcessShape},
		{"duplicate process", func(s *ir.ModelSpec) {
			s.Processes = append(s.Processes, s.Processes[0])
		}, ErrDuplicateName},
		{"wiring cycle", func(s *ir.ModelSpec) {
			s.Wires = append(s.Wires, ir.WireSpec{To: "A:x", From: ir.SourceSpec{Path: "B:y"}})
		}, ErrWiringCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := baseSpec()
			tt.mutate(spec)
			errs := Validate(spec, nil)
			require.NotEmpty(t, errs)
			assert.Contains(t, Codes(errs), tt.code)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := baseSpec()
	spec.Name = ""
	spec.Wires[0].To = "B:nope"
	spec.Processes[0].Steps[1].Transition = "reset"

	errs := Validate(spec, nil)
	assert.Equal(t, []string{ErrModelNameEmpty, ErrUnknownWireTarget, ErrUnknownStepTransition}, Codes(errs))
}

func TestValidateBranchOnParamsAndFixed(t *testing.T) {
	spec := baseSpec()
	spec.Components[0].Transitions[0].Outputs[0].Expr = "[if k > c {x + 1}, x][0]"
	assert.Empty(t, Validate(spec, nil))
}

func TestValidateHostKindsAreOpaque(t *testing.T) {
	reg := model.NewRegistry()
	require.NoError(t, expr.Register(reg))
	require.NoError(t, reg.Register("neuron", model.Factory{
		Build: func(ir.ComponentSpec) (model.Config, error) { return model.Config{}, nil },
	}))

	spec := baseSpec()
	spec.Components = append(spec.Components, ir.ComponentSpec{Name: "N", Kind: "neuron"})
	spec.Wires = append(spec.Wires, ir.WireSpec{To: "N:v", From: ir.SourceSpec{Path: "A:x"}})
	spec.Processes[0].Steps = append(spec.Processes[0].Steps, ir.StepSpec{Component: "N", Transition: "advance"})

	assert.Empty(t, Validate(spec, reg))
	assert.Contains(t, Codes(Validate(spec, nil)), ErrUnknownKind)
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "wires[0].to", Message: "bad", Code: ErrUnknownWireTarget}
	assert.Equal(t, "[E106] wires[0].to: bad", err.Error())

	err.Line = 7
	assert.Equal(t, "[E106] line 7: wires[0].to: bad", err.Error())
}

func TestValidateCycleMessageIsNotAFormat(t *testing.T) {
	spec := baseSpec()
	spec.Components[0].Name = "A%v"
	spec.Wires[0].From.Path = "A%v:x"
	spec.Wires = append(spec.Wires, ir.WireSpec{To: "A%v:x", From: ir.SourceSpec{Path: "B:y"}})
	spec.Processes[0].Steps[0].Component = "A%v"

	var msgs []string
	for _, e := range Validate(spec, nil) {
		if e.Code == ErrWiringCycle {
			msgs = append(msgs, e.Message)
		}
	}
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "A%v:x -> B:y")
	assert.NotContains(t, msgs[0], "%!")
}
