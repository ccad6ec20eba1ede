package model

import (
	"errors"
	"fmt"
)

// Execution-time conditions. Processes report these by logging a warning
// and returning an error that wraps one of the sentinels; they never panic
// and never touch the store.
var (
	// ErrNotCompiled is returned when a process executes before Compile.
	ErrNotCompiled = errors.New("process is not compiled")

	// ErrMissingArgument is returned when a required runtime argument is absent.
	ErrMissingArgument = errors.New("missing required runtime argument")

	// ErrGraphChanged is returned when the model was rewired after compilation.
	ErrGraphChanged = errors.New("model graph changed since compilation")

	// ErrStepFailed is returned when a compiled step fails during evaluation.
	ErrStepFailed = errors.New("compiled step failed")

	errEmptyName    = errors.New("name is empty")
	errBadNameChars = errors.New("name contains ':', '.', or whitespace")
)

// ModelErrorCode categorizes construction-time errors.
type ModelErrorCode string

const (
	// ErrCodeDuplicateComponent indicates a component name is already taken in the context.
	ErrCodeDuplicateComponent ModelErrorCode = "DUPLICATE_COMPONENT"

	// ErrCodeMissingArgument indicates a required constructor keyword is absent.
	ErrCodeMissingArgument ModelErrorCode = "MISSING_ARGUMENT"

	// ErrCodeUnknownKind indicates no factory is registered for a component kind.
	ErrCodeUnknownKind ModelErrorCode = "UNKNOWN_KIND"

	// ErrCodeNameCollision indicates two attributes of a component share a name.
	ErrCodeNameCollision ModelErrorCode = "NAME_COLLISION"

	// ErrCodeFixedCompartment indicates a write or wire into a fixed compartment.
	ErrCodeFixedCompartment ModelErrorCode = "FIXED_COMPARTMENT"

	// ErrCodeWiredCompartment indicates a direct set on a compartment that has a source wired in.
	ErrCodeWiredCompartment ModelErrorCode = "WIRED_COMPARTMENT"

	// ErrCodeUnknownTransition indicates a transition name the component does not declare.
	ErrCodeUnknownTransition ModelErrorCode = "UNKNOWN_TRANSITION"

	// ErrCodeUnknownOperation indicates an operation kind that is not registered.
	ErrCodeUnknownOperation ModelErrorCode = "UNKNOWN_OPERATION"

	// ErrCodeDestinedOperation indicates an operation already bound to another destination.
	ErrCodeDestinedOperation ModelErrorCode = "DESTINED_OPERATION"

	// ErrCodeInvalidName indicates an empty name or one containing path separators.
	ErrCodeInvalidName ModelErrorCode = "INVALID_NAME"

	// ErrCodeInvalidTransition indicates a transition declaration without a function.
	ErrCodeInvalidTransition ModelErrorCode = "INVALID_TRANSITION"
)

// ModelError is a construction-time error in the model graph.
type ModelError struct {
	Code      ModelErrorCode
	Component string
	Name      string
	Message   string
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	switch {
	case e.Component != "" && e.Name != "":
		return fmt.Sprintf("%s: %s (component=%s, name=%s)", e.Code, e.Message, e.Component, e.Name)
	case e.Component != "":
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CompileErrorCode categorizes compile-time errors.
type CompileErrorCode string

const (
	// ErrCodeNonCompartmentOutput indicates a declared output that is not a compartment.
	ErrCodeNonCompartmentOutput CompileErrorCode = "NON_COMPARTMENT_OUTPUT"

	// ErrCodeFixedOutput indicates a transition output into a fixed compartment.
	ErrCodeFixedOutput CompileErrorCode = "FIXED_OUTPUT"

	// ErrCodeStateDependentBranch indicates control flow that reads per-step values.
	ErrCodeStateDependentBranch CompileErrorCode = "STATE_DEPENDENT_BRANCH"

	// ErrCodeNotCompilable indicates an operation kind that cannot be compiled.
	ErrCodeNotCompilable CompileErrorCode = "NOT_COMPILABLE"

	// ErrCodeWiringCycle indicates operations whose sources lead back to themselves.
	ErrCodeWiringCycle CompileErrorCode = "WIRING_CYCLE"

	// ErrCodeUnknownInput indicates a branch or input name that cannot be classified.
	ErrCodeUnknownInput CompileErrorCode = "UNKNOWN_INPUT"

	// ErrCodeNotCompiled indicates composing a process that is not compiled.
	ErrCodeNotCompiled CompileErrorCode = "NOT_COMPILED"
)

// CompileError is a fatal error found while compiling a process.
type CompileError struct {
	Code       CompileErrorCode
	Component  string
	Transition string
	Message    string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	switch {
	case e.Component != "" && e.Transition != "":
		return fmt.Sprintf("%s: %s (transition=%s.%s)", e.Code, e.Message, e.Component, e.Transition)
	case e.Component != "":
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsModelError reports whether err is a ModelError with the given code.
// Uses errors.As to handle wrapped errors.
func IsModelError(err error, code ModelErrorCode) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsCompileError reports whether err is a CompileError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error, code CompileErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func modelErr(code ModelErrorCode, component, name, format string, args ...any) *ModelError {
	return &ModelError{Code: code, Component: component, Name: name, Message: fmt.Sprintf(format, args...)}
}

func compileErr(code CompileErrorCode, component, transition, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Component: component, Transition: transition, Message: fmt.Sprintf(format, args...)}
}

// NewCompileError creates a CompileError. Used by packages that compile
// against the model (processes, expression components).
func NewCompileError(code CompileErrorCode, component, transition, format string, args ...any) *CompileError {
	return compileErr(code, component, transition, format, args...)
}
