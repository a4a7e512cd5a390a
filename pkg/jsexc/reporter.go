// reporter.go defines the outbound boundary of the capture core.

package jsexc

import (
	"context"

	"go.uber.org/zap"
)

// Reporter transmits canonical messages. Send is fire-and-forget: it has no
// result and delivery is entirely the implementation's concern.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Send(ctx context.Context, msg JSException)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, msg JSException)

// Send calls f.
func (f ReporterFunc) Send(ctx context.Context, msg JSException) {
	f(ctx, msg)
}

// CollectorReporterOption configures a CollectorReporter.
type CollectorReporterOption func(*CollectorReporter)

// WithReporterLogger sets the logger used for failed records.
func WithReporterLogger(logger *zap.Logger) CollectorReporterOption {
	return func(r *CollectorReporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetadata attaches static metadata to every recorded event.
func WithMetadata(meta map[string]string) CollectorReporterOption {
	return func(r *CollectorReporter) {
		r.metadata = meta
	}
}

// CollectorReporter records each message into a Collector.
type CollectorReporter struct {
	collector Collector
	logger    *zap.Logger
	metadata  map[string]string
}

// NewCollectorReporter creates a Reporter backed by collector.
func NewCollectorReporter(collector Collector, opts ...CollectorReporterOption) *CollectorReporter {
	r := &CollectorReporter{
		collector: collector,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send wraps msg in an Event and records it. Record errors are logged, never returned.
func (r *CollectorReporter) Send(ctx context.Context, msg JSException) {
	if ctx == nil {
		ctx = context.Background()
	}
	event := Event{Exception: msg}
	if realmID, ok := RealmIDFromContext(ctx); ok {
		event.RealmID = realmID
	}
	if len(r.metadata) > 0 {
		event.Metadata = make(map[string]string, len(r.metadata))
		for k, v := range r.metadata {
			event.Metadata[k] = v
		}
	}

	if err := r.collector.Record(ctx, event); err != nil {
		r.logger.Warn("failed to record exception",
			zap.String("realm", event.RealmID),
			zap.String("name", msg.Name()),
			zap.Error(err))
	}
}
