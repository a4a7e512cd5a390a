// event.go defines the envelope the collector persists around a JSException.

package jsexc

import "time"

// Event is the persisted form of a captured exception.
// Identity fields are populated by the collector before passing to sinks.
type Event struct {
	// EventID is a unique identifier for this event (UUID).
	EventID string

	// Timestamp is when the exception was recorded.
	Timestamp time.Time

	// Fingerprint is a hash for grouping similar exceptions.
	Fingerprint string

	// RealmID identifies the execution context that raised the exception.
	RealmID string

	// Exception is the canonical record, scrubbed by the collector if configured.
	Exception JSException

	// Metadata contains scrubbed key-value pairs for additional context.
	Metadata map[string]string

	// Host is the hosting process state, set when the collector samples it.
	Host *HostState
}
