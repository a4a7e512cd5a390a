// sink.go defines the Sink interface for event destinations.

package jsexc

import "context"

// Sink is the destination for events.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Write persists an event. Called after scrubbing and fingerprinting.
	Write(ctx context.Context, event Event) error

	// Flush ensures any buffered events are persisted.
	Flush(ctx context.Context) error

	// Close releases resources held by the sink.
	Close() error
}

// nopSink discards events. It is the collector default.
type nopSink struct{}

func (nopSink) Write(ctx context.Context, event Event) error { return nil }
func (nopSink) Flush(ctx context.Context) error              { return nil }
func (nopSink) Close() error                                 { return nil }
