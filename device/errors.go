package device

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Memory errors
	ErrTypeMemory ErrorType = iota
	// Invalid argument errors
	ErrTypeInvalidArg
	// Launch configuration errors
	ErrTypeLaunch
	// Execution errors
	ErrTypeExecution
	// Not implemented errors
	ErrTypeNotImplemented
)

// Error is a structured error with the failing operation attached.
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("device %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeLaunch:
		return "Launch"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeNotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &Error{Type: ErrTypeMemory, Op: op, Message: message, Err: err}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{Type: ErrTypeInvalidArg, Op: op, Message: message}
}

// NewLaunchError creates a launch configuration error
func NewLaunchError(op string, message string) error {
	return &Error{Type: ErrTypeLaunch, Op: op, Message: message}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &Error{Type: ErrTypeExecution, Op: op, Message: message, Err: err}
}

// NewNotImplementedError creates an error for unsupported combinations
func NewNotImplementedError(op string, message string) error {
	return &Error{Type: ErrTypeNotImplemented, Op: op, Message: message}
}

var (
	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Malloc", "size must be positive")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = NewMemoryError("Free", "double free detected", nil)

	// ErrSyncOutsideCooperative is raised by SyncThreads in a kernel that
	// was not started with LaunchCooperative.
	ErrSyncOutsideCooperative = NewExecutionError("SyncThreads", "barrier used outside a cooperative launch", nil)
)

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool { return isType(err, ErrTypeMemory) }

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool { return isType(err, ErrTypeInvalidArg) }

// IsLaunchError checks if an error is a launch configuration error
func IsLaunchError(err error) bool { return isType(err, ErrTypeLaunch) }

// IsExecutionError checks if an error is an execution error
func IsExecutionError(err error) bool { return isType(err, ErrTypeExecution) }

// IsNotImplementedError checks if an error reports an unsupported combination
func IsNotImplementedError(err error) bool { return isType(err, ErrTypeNotImplemented) }
