package testutil

import "github.com/roach88/simcore/internal/ir"

// CounterModel returns a two-component model named "counter".
//
// X:y grows by c*k = 2.0 every "main" tick. W:acc adds the runtime
// argument drive every "drive" tick, so "drive" skips when it is missing.
func CounterModel() ir.ModelSpec {
	return ir.ModelSpec{
		Name: "counter",
		Components: []ir.ComponentSpec{
			{
				Name:   "X",
				Kind:   ir.ExprKind,
				Params: map[string]any{"k": int64(2)},
				Compartments: []ir.CompartmentSpec{
					{Name: "y", Initial: 0.0},
					{Name: "c", Initial: 1.0, Fixed: true},
				},
				Transitions: []ir.TransitionSpec{
					{Name: "step", Outputs: []ir.OutputSpec{{Compartment: "y", Expr: "y + c * k"}}},
				},
			},
			{
				Name:         "W",
				Kind:         ir.ExprKind,
				Compartments: []ir.CompartmentSpec{{Name: "acc", Initial: 0.0}},
				Transitions: []ir.TransitionSpec{
					{Name: "step", Outputs: []ir.OutputSpec{{Compartment: "acc", Expr: "acc + drive"}}},
				},
			},
		},
		Processes: []ir.ProcessSpec{
			{Name: "main", Steps: []ir.StepSpec{{Component: "X", Transition: "step"}}, Watch: []string{"X:y"}},
			{Name: "drive", Steps: []ir.StepSpec{{Component: "W", Transition: "step"}}, Watch: []string{"W:acc"}},
		},
	}
}
