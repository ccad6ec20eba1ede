package model

import "slices"

// Values carries a transition's inputs by name.
type Values map[string]any

// TransitionFunc is the pure computational core of a transition. It
// receives every classified input by name and returns one value per
// declared output, in declaration order.
type TransitionFunc func(in Values) ([]any, error)

// TransitionDecl declares a transition at component creation.
//
// Inputs are classified against the component: compartment names become
// state reads, parameter names become compile-time constants, anything else
// is a runtime argument. BranchOn lists the inputs that steer control flow
// inside Fn; each must be a parameter or a fixed compartment.
type TransitionDecl struct {
	Name     string
	Inputs   []string
	Outputs  []string
	BranchOn []string
	Fn       TransitionFunc
}

// Classification partitions input names against a component's attributes.
type Classification struct {
	Compartments []string
	Params       []string
	Args         []string
}

// Transition is a declared transition with its inputs classified.
type Transition struct {
	owner    *Component
	name     string
	inputs   Classification
	outputs  []string
	branchOn []string
	fn       TransitionFunc
}

// Name returns the transition name.
func (t *Transition) Name() string { return t.name }

// Component returns the owning component.
func (t *Transition) Component() *Component { return t.owner }

// Outputs returns the declared output compartment names.
func (t *Transition) Outputs() []string { return slices.Clone(t.outputs) }

// Inputs returns the classified input names.
func (t *Transition) Inputs() Classification {
	return Classification{
		Compartments: slices.Clone(t.inputs.Compartments),
		Params:       slices.Clone(t.inputs.Params),
		Args:         slices.Clone(t.inputs.Args),
	}
}

// BranchOn returns the inputs that steer control flow.
func (t *Transition) BranchOn() []string { return slices.Clone(t.branchOn) }

// Func returns the pure transition function.
func (t *Transition) Func() TransitionFunc { return t.fn }
