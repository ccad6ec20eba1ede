package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while setting up or replaying a
// run. Skipped ticks are not errors; they are recorded in the tick log.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, if any.
	RunID string

	// Process names the process being run.
	Process string

	// Tick is the tick the error refers to (divergence errors).
	Tick int64
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownProcess indicates the model has no process by that name.
	ErrCodeUnknownProcess RuntimeErrorCode = "UNKNOWN_PROCESS"

	// ErrCodeInvalidTicks indicates a negative tick count.
	ErrCodeInvalidTicks RuntimeErrorCode = "INVALID_TICKS"

	// ErrCodeNoStore indicates an operation that needs a store ran without one.
	ErrCodeNoStore RuntimeErrorCode = "NO_STORE"

	// ErrCodeReplayDiverged indicates a replay did not reproduce a recorded state hash.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.RunID != "" && e.Tick > 0:
		return fmt.Sprintf("%s: %s (run=%s, tick=%d)", e.Code, e.Message, e.RunID, e.Tick)
	case e.RunID != "":
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	case e.Process != "":
		return fmt.Sprintf("%s: %s (process=%s)", e.Code, e.Message, e.Process)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDivergence reports whether err is a replay divergence.
func IsDivergence(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeReplayDiverged
	}
	return false
}

// IsUnknownProcess reports whether err names a process the model lacks.
func IsUnknownProcess(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnknownProcess
	}
	return false
}

func unknownProcessError(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownProcess,
		Message: "model has no such process",
		Process: name,
	}
}

func divergenceError(runID string, tick int64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReplayDiverged,
		Message: "replayed state hash differs from the recorded one",
		RunID:   runID,
		Tick:    tick,
	}
}
