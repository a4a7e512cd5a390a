// listener.go defines execution contexts and scoped listener registration.

package jsexc

import "sync"

// EventName names a failure event raised on an execution context.
type EventName string

const (
	// EventError is raised for uncaught synchronous exceptions.
	EventError EventName = "error"

	// EventUnhandledRejection is raised for rejections left without a handler.
	EventUnhandledRejection EventName = "unhandledrejection"
)

// Listener receives signals on the context's own execution goroutine.
// It must not block.
type Listener func(sig Signal)

// Disposer removes a listener. Calling it more than once is safe.
type Disposer func()

// ExecutionContext is one JavaScript realm: a top-level page or an embedded
// sub-document.
type ExecutionContext interface {
	// ID is the opaque, stable identity of the realm.
	ID() string

	// AddListener registers fn for event and returns its disposer.
	AddListener(event EventName, fn Listener) Disposer
}

// AttachListener registers fn on ec and returns a disposer that removes it
// exactly once, however many times it is invoked.
func AttachListener(ec ExecutionContext, event EventName, fn Listener) Disposer {
	remove := ec.AddListener(event, fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			if remove != nil {
				remove()
			}
		})
	}
}
