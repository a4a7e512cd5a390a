// Package async provides a sink wrapper with a bounded queue so that event
// delivery never blocks a realm's event loop.
// Events are processed in the background; oldest events are dropped when full.
package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async sink is closed")

// Option configures the async sink.
type Option func(*config)

type config struct {
	queueSize    int
	pollInterval time.Duration
	onDropped    func(count int)
	logger       *zap.Logger
}

// WithQueueSize sets the maximum number of queued events (default: 1000).
func WithQueueSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithPollInterval sets how often Flush checks for an empty queue (default: 10ms).
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithOnDropped sets a callback invoked when events are dropped due to queue overflow.
func WithOnDropped(fn func(count int)) Option {
	return func(c *config) {
		c.onDropped = fn
	}
}

// WithLogger sets the logger used for inner sink failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type sink struct {
	inner        jsexc.Sink
	queue        chan jsexc.Event
	done         chan struct{}
	pollInterval time.Duration
	onDropped    func(count int)
	logger       *zap.Logger

	// pending counts queued plus in-flight events.
	pending atomic.Int64

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New wraps a sink with a bounded queue for async writes.
// Write returns immediately; when the queue is full the oldest event is
// dropped to make room.
func New(inner jsexc.Sink, opts ...Option) jsexc.Sink {
	cfg := &config{
		queueSize:    1000,
		pollInterval: 10 * time.Millisecond,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &sink{
		inner:        inner,
		queue:        make(chan jsexc.Event, cfg.queueSize),
		done:         make(chan struct{}),
		pollInterval: cfg.pollInterval,
		onDropped:    cfg.onDropped,
		logger:       cfg.logger,
	}

	s.wg.Add(1)
	go s.processLoop()

	return s
}

func (s *sink) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.queue:
			s.deliver(event)
		case <-s.done:
			for {
				select {
				case event := <-s.queue:
					s.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (s *sink) deliver(event jsexc.Event) {
	defer s.pending.Add(-1)
	if err := s.inner.Write(context.Background(), event); err != nil {
		s.logger.Warn("async sink delivery failed",
			zap.String("event_id", event.EventID),
			zap.String("realm", event.RealmID),
			zap.Error(err),
		)
	}
}

// Write enqueues an event. It never blocks on the inner sink.
func (s *sink) Write(ctx context.Context, event jsexc.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	s.pending.Add(1)
	select {
	case s.queue <- event:
	default:
		s.dropOldestAndEnqueue(event)
	}
	return nil
}

func (s *sink) dropOldestAndEnqueue(event jsexc.Event) {
	select {
	case <-s.queue:
		s.dropped()
	default:
		// Processor emptied a slot in the meantime.
	}

	select {
	case s.queue <- event:
	default:
		s.dropped()
	}
}

func (s *sink) dropped() {
	s.pending.Add(-1)
	if s.onDropped != nil {
		s.onDropped(1)
	}
}

// Flush blocks until all queued events are delivered, then flushes the inner sink.
func (s *sink) Flush(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return s.inner.Flush(ctx)
}

// Close drains the queue and closes the inner sink.
func (s *sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		s.wg.Wait()
	})

	return s.inner.Close()
}
