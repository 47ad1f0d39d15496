package device

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantOp   string
		checkFn  func(error) bool
	}{
		{"Invalid Size", ErrInvalidSize, ErrTypeInvalidArg, "Malloc", IsInvalidArgError},
		{"Double Free", ErrDoubleFree, ErrTypeMemory, "Free", IsMemoryError},
		{"Sync Outside Cooperative", ErrSyncOutsideCooperative, ErrTypeExecution, "SyncThreads", IsExecutionError},
		{"Launch", NewLaunchError("Launch", "block too large"), ErrTypeLaunch, "Launch", IsLaunchError},
		{"Not Implemented", NewNotImplementedError("Mean", "unsupported"), ErrTypeNotImplemented, "Mean", IsNotImplementedError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *Error
			if !errors.As(tt.err, &e) {
				t.Fatalf("Expected *Error, got %T", tt.err)
			}
			if e.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", e.Type, tt.wantType)
			}
			if e.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", e.Op, tt.wantOp)
			}
			if !tt.checkFn(tt.err) {
				t.Errorf("Predicate rejected %v", tt.err)
			}
			if !strings.Contains(tt.err.Error(), tt.wantOp) {
				t.Errorf("Message %q does not name the operation", tt.err.Error())
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("index out of range")
	err := NewExecutionError("Launch", "kernel panicked", cause)
	wrapped := fmt.Errorf("Mean: row-major kernel: %w", err)

	if !errors.Is(wrapped, cause) {
		t.Error("Cause is not reachable through Unwrap")
	}
	if !IsExecutionError(wrapped) {
		t.Error("Wrapped error lost its type")
	}
	if IsLaunchError(wrapped) || IsMemoryError(nil) {
		t.Error("Predicates matched the wrong type")
	}
}
