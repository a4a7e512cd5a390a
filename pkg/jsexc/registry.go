// registry.go tracks known execution contexts and publishes newly discovered ones.

package jsexc

import (
	"slices"
	"sync"
)

// ContextRegistry publishes execution contexts to subscribers.
type ContextRegistry interface {
	// AttachContextCallback invokes cb once for every known context and once
	// for each context discovered afterwards.
	AttachContextCallback(cb func(ExecutionContext))
}

// Registry is an append-only set of execution contexts, keyed by ID.
// It is safe for concurrent use; callbacks run outside its lock.
type Registry struct {
	mu        sync.Mutex
	contexts  []ExecutionContext
	seen      map[string]struct{}
	callbacks []func(ExecutionContext)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// Register adds ec and notifies every subscriber. It returns false, without
// notifying anyone, when a context with the same ID is already known.
func (r *Registry) Register(ec ExecutionContext) bool {
	if ec == nil {
		return false
	}

	r.mu.Lock()
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, ok := r.seen[ec.ID()]; ok {
		r.mu.Unlock()
		return false
	}
	r.seen[ec.ID()] = struct{}{}
	r.contexts = append(r.contexts, ec)
	callbacks := slices.Clone(r.callbacks)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(ec)
	}
	return true
}

// AttachContextCallback implements ContextRegistry.
func (r *Registry) AttachContextCallback(cb func(ExecutionContext)) {
	if cb == nil {
		return
	}

	// Subscribing and snapshotting under one lock hands each context to cb
	// exactly once: either here or from Register.
	r.mu.Lock()
	r.callbacks = append(r.callbacks, cb)
	known := append([]ExecutionContext(nil), r.contexts...)
	r.mu.Unlock()

	for _, ec := range known {
		cb(ec)
	}
}

// Contexts returns the known contexts in discovery order.
func (r *Registry) Contexts() []ExecutionContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutionContext(nil), r.contexts...)
}
