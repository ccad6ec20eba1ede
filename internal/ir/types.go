package ir

// ModelSpec is the complete, persistable description of a model graph.
type ModelSpec struct {
	Name       string          `json:"name"`
	Components []ComponentSpec `json:"components"`
	Wires      []WireSpec      `json:"wires,omitempty"`
	Processes  []ProcessSpec   `json:"processes,omitempty"`
}

// ComponentSpec holds the constructor data for one component.
//
// Kind names a constructor registered by the host program. Params are the
// constructor keywords; for the built-in "expr" kind, Compartments and
// Transitions carry the component's structure as data.
type ComponentSpec struct {
	Name         string            `json:"name"`
	Kind         string            `json:"kind"`
	Params       map[string]any    `json:"params,omitempty"`
	Compartments []CompartmentSpec `json:"compartments,omitempty"`
	Transitions  []TransitionSpec  `json:"transitions,omitempty"`
}

// CompartmentSpec declares a compartment and its initial value.
type CompartmentSpec struct {
	Name    string `json:"name"`
	Initial any    `json:"initial"`
	Fixed   bool   `json:"fixed,omitempty"`
}

// TransitionSpec declares an expression transition.
// Outputs are evaluated in declaration order and written to the named
// compartments.
type TransitionSpec struct {
	Name    string       `json:"name"`
	Outputs []OutputSpec `json:"outputs"`
}

// OutputSpec binds an output compartment to the expression computing it.
type OutputSpec struct {
	Compartment string `json:"compartment"`
	Expr        string `json:"expr"`
}

// WireSpec is a data-flow edge into a destination compartment.
// A forward wire copies the source compartment's current target instead of
// reading the compartment itself; From must then be a Path.
type WireSpec struct {
	To      string     `json:"to"` // "Component:compartment"
	From    SourceSpec `json:"from"`
	Forward bool       `json:"forward,omitempty"`
}

// SourceSpec is either a compartment reference or a nested operation.
// Exactly one of Path and Op is set.
type SourceSpec struct {
	Path string         `json:"path,omitempty"`
	Op   *OperationSpec `json:"op,omitempty"`
}

// OperationSpec is a serialized operation node.
type OperationSpec struct {
	Op      string       `json:"op"`
	Sources []SourceSpec `json:"sources"`
}

// ProcessSpec describes a process.
// A method process has Steps; a joint process lists the names of the
// processes it composes in Processes. Watch holds model-relative refs.
type ProcessSpec struct {
	Name      string     `json:"name"`
	Steps     []StepSpec `json:"steps,omitempty"`
	Processes []string   `json:"processes,omitempty"`
	Watch     []string   `json:"watch,omitempty"`
}

// IsJoint reports whether the process composes other processes.
func (p ProcessSpec) IsJoint() bool {
	return len(p.Processes) > 0
}

// StepSpec names one transition call: (component, transition).
type StepSpec struct {
	Component  string `json:"component"`
	Transition string `json:"transition"`
}

// String renders the step as "Component.transition".
func (s StepSpec) String() string {
	return s.Component + "." + s.Transition
}

// ExprKind is the component kind whose structure is carried by its ComponentSpec.
const ExprKind = "expr"
