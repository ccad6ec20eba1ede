package ir

import (
	"fmt"
	"strings"
)

// PathSeparator joins hierarchical path segments.
const PathSeparator = ":"

// CompartmentRef is a model-relative compartment reference ("Component:name").
type CompartmentRef string

// Parse splits the reference into component and compartment names.
func (r CompartmentRef) Parse() (component, compartment string, err error) {
	parts := strings.Split(string(r), PathSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid compartment ref %q: expected Component:compartment", string(r))
	}
	return parts[0], parts[1], nil
}

// NewCompartmentRef builds a model-relative reference.
func NewCompartmentRef(component, compartment string) CompartmentRef {
	return CompartmentRef(component + PathSeparator + compartment)
}

// ParseStepRef parses the "Component.transition" shorthand.
func ParseStepRef(s string) (StepSpec, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return StepSpec{}, fmt.Errorf("invalid step ref %q: expected Component.transition", s)
	}
	return StepSpec{Component: s[:idx], Transition: s[idx+1:]}, nil
}
