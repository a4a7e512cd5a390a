// signal.go defines the raw failure signals an execution context emits.

package jsexc

// Signal is a raw failure report from an execution context. It is either a
// SyncError or a RejectedPromise; the set is closed to this package.
type Signal interface {
	isSignal()
}

// ErrorValue is a structured JavaScript error (an Error instance or subclass).
type ErrorValue struct {
	// Name is the error class name, e.g. "TypeError".
	Name string

	// Message is the error's message property.
	Message string

	// Stack is the engine-formatted stack property, possibly empty.
	Stack string
}

// SyncError is an uncaught synchronous exception, the equivalent of an
// ErrorEvent dispatched on the realm's global object.
type SyncError struct {
	// Message is the raw event message, e.g. "TypeError: x is not defined".
	Message string

	// FileName, LineNumber and ColumnNumber locate the throw site when known.
	FileName     string
	LineNumber   int
	ColumnNumber int

	// Error is the thrown value when it is a structured error, nil otherwise.
	Error *ErrorValue
}

// RejectedPromise is a promise rejection that had no handler attached by the
// end of the task that produced it.
type RejectedPromise struct {
	// Reason is the rejection value. Structured errors are passed as
	// *ErrorValue; anything else is serialized as JSON when possible.
	Reason any
}

func (SyncError) isSignal()       {}
func (RejectedPromise) isSignal() {}
