// Package errors provides structured error handling for flowstate.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindUpstream indicates a failure raised by a value source.
	KindUpstream
	// KindStore indicates a key-value store read or write failure.
	KindStore
	// KindCodec indicates a value could not be encoded or decoded.
	KindCodec
	// KindLifecycle indicates an invalid lifecycle transition.
	KindLifecycle
	// KindMisuse indicates a violated API contract, such as using a disposed scope.
	KindMisuse
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindUpstream:
		return "upstream"
	case KindStore:
		return "store"
	case KindCodec:
		return "codec"
	case KindLifecycle:
		return "lifecycle"
	case KindMisuse:
		return "misuse"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Sentinel errors shared across packages.
var (
	// ErrDisposed is returned when work is attached to a scope that has
	// already been cancelled.
	ErrDisposed = errors.New("scope disposed")

	// ErrTornDown is returned when a torn-down cell is asked to do work.
	ErrTornDown = errors.New("cell torn down")
)

// FlowError represents a structured error in flowstate.
type FlowError struct {
	// Op is the operation that failed (e.g., "saved.Set").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Key is the persisted-state key involved, if any.
	Key string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *FlowError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s [%s] key=%s: %v", e.Op, e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first FlowError in err's chain,
// or KindUnknown when there is none.
func KindOf(err error) ErrorKind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "scope.Launch").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors reported by flowstate.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *FlowError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
