// collector.go provides the Collector interface and its default implementation.

package jsexc

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Collector records events to a configured sink.
type Collector interface {
	// Record persists an event. Blocks until the sink returns.
	// Applies scrubbing and fingerprinting before delegating to the sink.
	Record(ctx context.Context, event Event) error

	// Flush ensures any buffered events are persisted.
	Flush(ctx context.Context) error

	// Close releases resources held by the collector.
	Close() error
}

// CollectorOption configures a Collector.
type CollectorOption func(*collectorConfig)

type collectorConfig struct {
	sink      Sink
	scrubber  *Scrubber
	now       func() time.Time
	hostStart time.Time
}

// WithSink sets the sink for the collector.
func WithSink(sink Sink) CollectorOption {
	return func(c *collectorConfig) {
		c.sink = sink
	}
}

// WithScrubber configures the collector with a custom scrubber configuration.
func WithScrubber(cfg ScrubberConfig) CollectorOption {
	return func(c *collectorConfig) {
		c.scrubber = NewScrubber(cfg)
	}
}

// WithDefaultScrubbing enables scrubbing with production-safe defaults.
func WithDefaultScrubbing() CollectorOption {
	return func(c *collectorConfig) {
		c.scrubber = NewScrubber(DefaultScrubberConfig())
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *collectorConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHostState attaches a HostState sample to every event. Uptime is
// measured from start.
func WithHostState(start time.Time) CollectorOption {
	return func(c *collectorConfig) {
		c.hostStart = start
	}
}

type defaultCollector struct {
	sink      Sink
	scrubber  *Scrubber
	now       func() time.Time
	hostStart time.Time
}

// NewCollector creates a new Collector with the given options.
// Without a sink, events are discarded.
func NewCollector(opts ...CollectorOption) Collector {
	cfg := &collectorConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sink == nil {
		cfg.sink = nopSink{}
	}
	return &defaultCollector{
		sink:      cfg.sink,
		scrubber:  cfg.scrubber,
		now:       cfg.now,
		hostStart: cfg.hostStart,
	}
}

// Record fills identity fields, scrubs, fingerprints and writes the event.
func (c *defaultCollector) Record(ctx context.Context, event Event) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	if event.RealmID == "" {
		if realmID, ok := RealmIDFromContext(ctx); ok {
			event.RealmID = realmID
		}
	}

	if event.Host == nil && !c.hostStart.IsZero() {
		event.Host = CaptureHostState(c.hostStart)
	}

	if c.scrubber != nil {
		event.Exception = c.scrubber.ScrubException(event.Exception)
		event.Metadata = c.scrubber.ScrubMetadata(event.Metadata)
	}

	event.Fingerprint = Fingerprint(event)

	return c.sink.Write(ctx, event)
}

// Flush delegates to the sink.
func (c *defaultCollector) Flush(ctx context.Context) error {
	return c.sink.Flush(ctx)
}

// Close delegates to the sink.
func (c *defaultCollector) Close() error {
	return c.sink.Close()
}
