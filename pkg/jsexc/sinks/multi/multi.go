// Package multi provides a sink that fans out to multiple sinks.
// All sinks receive all events; errors are aggregated.
package multi

import (
	"context"
	"errors"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

type sink struct {
	sinks []jsexc.Sink
}

// New creates a sink that writes to every non-nil sink given.
// Errors are aggregated via errors.Join.
func New(sinks ...jsexc.Sink) jsexc.Sink {
	s := &sink{}
	for _, child := range sinks {
		if child != nil {
			s.sinks = append(s.sinks, child)
		}
	}
	return s
}

// Write sends the event to all sinks, even if some fail.
func (s *sink) Write(ctx context.Context, event jsexc.Event) error {
	return s.each(func(child jsexc.Sink) error {
		return child.Write(ctx, event)
	})
}

// Flush flushes all sinks.
func (s *sink) Flush(ctx context.Context) error {
	return s.each(func(child jsexc.Sink) error {
		return child.Flush(ctx)
	})
}

// Close closes all sinks.
func (s *sink) Close() error {
	return s.each(func(child jsexc.Sink) error {
		return child.Close()
	})
}

func (s *sink) each(fn func(jsexc.Sink) error) error {
	var errs []error
	for _, child := range s.sinks {
		if err := fn(child); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
