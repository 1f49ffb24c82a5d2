// Package errors provides structured error handling for the native host.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindLinkage indicates a declared capability with no bound native peer.
	// Linkage errors are fatal.
	KindLinkage
	// KindMarshal indicates a value that violates a marshaling contract,
	// such as a promise resolved with more than one value.
	KindMarshal
	// KindExecution indicates a failure inside a fire-and-forget native call.
	KindExecution
	// KindAsyncExecution indicates a failure while dispatching a promise call.
	KindAsyncExecution
	// KindDangling indicates a callback invoked after its runtime was torn down.
	KindDangling
	// KindMutation indicates a mutation that referenced an unknown tag or an
	// invalid index.
	KindMutation
	// KindPlatform indicates a platform channel or native transport error.
	KindPlatform
	// KindInit indicates an initialization error.
	KindInit
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindLinkage:
		return "linkage"
	case KindMarshal:
		return "marshal"
	case KindExecution:
		return "execution"
	case KindAsyncExecution:
		return "async_execution"
	case KindDangling:
		return "dangling"
	case KindMutation:
		return "mutation"
	case KindPlatform:
		return "platform"
	case KindInit:
		return "init"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// BridgeError represents a structured error raised at the bridge boundary.
type BridgeError struct {
	// Op is the operation that failed (e.g., "bridge.callSync").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Module is the capability name, if applicable.
	Module string
	// Method is the capability method, if applicable.
	Method string
	// Tag is the component tag, if applicable. Zero means no tag.
	Tag int64
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BridgeError) Error() string {
	switch {
	case e.Module != "" && e.Method != "":
		return fmt.Sprintf("%s [%s] module=%s method=%s: %v", e.Op, e.Kind, e.Module, e.Method, e.Err)
	case e.Module != "":
		return fmt.Sprintf("%s [%s] module=%s: %v", e.Op, e.Kind, e.Module, e.Err)
	case e.Tag != 0:
		return fmt.Sprintf("%s [%s] tag=%d: %v", e.Op, e.Kind, e.Tag, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "executor.main").
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

// MarshalError represents a value that could not cross the bridge.
type MarshalError struct {
	// Context names where marshaling happened (e.g., "resolve", "reject").
	Context string
	// Detail describes the violated contract.
	Detail string
	// Got is the offending value, if any.
	Got any
}

func (e *MarshalError) Error() string {
	if e.Got != nil {
		return fmt.Sprintf("%s: %s (got %T)", e.Context, e.Detail, e.Got)
	}
	return fmt.Sprintf("%s: %s", e.Context, e.Detail)
}

// ErrorHandler receives errors reported by the host.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *BridgeError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
