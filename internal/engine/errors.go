package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error raised by the loop itself rather than by
// a task.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeLoopStopped indicates work was submitted after Stop or after
	// Run returned.
	ErrCodeLoopStopped RuntimeErrorCode = "LOOP_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStopped returns true if the error reports a stopped loop.
// Uses errors.As to handle wrapped errors.
func IsStopped(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeLoopStopped
	}
	return false
}

// NewStoppedError creates a RuntimeError for a stopped loop.
func NewStoppedError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeLoopStopped,
		Message: "loop is not running",
	}
}
