// capture.go patches execution contexts and forwards their failures to a Reporter.

package jsexc

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// CaptureOption configures a Capture.
type CaptureOption func(*captureConfig)

type captureConfig struct {
	captureExceptions bool
	logger            *zap.Logger
	parser            StackParser
}

// WithCaptureExceptions enables or disables capture (default: true).
// A disabled Capture never installs a listener.
func WithCaptureExceptions(enabled bool) CaptureOption {
	return func(c *captureConfig) {
		c.captureExceptions = enabled
	}
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(logger *zap.Logger) CaptureOption {
	return func(c *captureConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStackParser replaces ParseStack as the stack parser.
func WithStackParser(parser StackParser) CaptureOption {
	return func(c *captureConfig) {
		c.parser = parser
	}
}

// patch is the listener pair installed on one context.
type patch struct {
	active    atomic.Bool
	disposers []Disposer
}

// Capture observes every context of a registry and forwards one JSException
// per classifiable failure signal to its Reporter.
type Capture struct {
	reporter   Reporter
	normalizer *Normalizer
	logger     *zap.Logger
	enabled    bool

	mu      sync.Mutex
	patches map[string]*patch
	closed  bool
}

// NewCapture creates a Capture that reports to reporter.
func NewCapture(reporter Reporter, opts ...CaptureOption) *Capture {
	cfg := &captureConfig{
		captureExceptions: true,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Capture{
		reporter:   reporter,
		normalizer: NewNormalizer(NewStackResolver(cfg.parser, cfg.logger)),
		logger:     cfg.logger,
		enabled:    cfg.captureExceptions && reporter != nil,
		patches:    make(map[string]*patch),
	}
}

// Enabled reports whether the capture installs listeners at all.
func (c *Capture) Enabled() bool {
	return c.enabled
}

// Install subscribes to registry so every known and future context is patched.
func (c *Capture) Install(registry ContextRegistry) {
	if !c.enabled || registry == nil {
		return
	}
	registry.AttachContextCallback(c.PatchContext)
}

// PatchContext installs the error and unhandledrejection listeners on ec.
// Patching the same context again, or after Close, does nothing.
func (c *Capture) PatchContext(ec ExecutionContext) {
	if !c.enabled || ec == nil {
		return
	}
	defer c.guard("patch context", ec)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	id := ec.ID()
	if _, ok := c.patches[id]; ok {
		return
	}

	p := &patch{}
	p.active.Store(true)
	c.patches[id] = p
	c.install(id, ec, p)

	c.logger.Debug("patched execution context", zap.String("realm", id))
}

// install attaches both listeners. If attaching fails half way the pair is
// deactivated, whatever was attached is removed again and the context is
// forgotten so a later PatchContext can retry. Called with c.mu held.
func (c *Capture) install(id string, ec ExecutionContext, p *patch) {
	complete := false
	defer func() {
		if !complete {
			delete(c.patches, id)
			p.active.Store(false)
			for _, dispose := range p.disposers {
				c.dispose(id, dispose)
			}
			p.disposers = nil
		}
	}()

	listener := c.handler(ec, p)
	p.disposers = append(p.disposers, AttachListener(ec, EventUnhandledRejection, listener))
	p.disposers = append(p.disposers, AttachListener(ec, EventError, listener))
	complete = true
}

// handler returns the listener shared by both events of one context.
func (c *Capture) handler(ec ExecutionContext, p *patch) Listener {
	realmID := ec.ID()
	return func(sig Signal) {
		defer c.guard("handle signal", ec)

		if !p.active.Load() {
			return
		}
		msg, ok := c.normalizer.Normalize(sig)
		if !ok {
			return
		}
		c.reporter.Send(WithRealmID(context.Background(), realmID), msg)
	}
}

// Patched reports whether ec currently has listeners installed.
func (c *Capture) Patched(ec ExecutionContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.patches[ec.ID()]
	return ok && p.active.Load()
}

// Close removes the listeners from every patched context. Signals raised
// afterwards are never forwarded. Close is idempotent and always returns nil.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for id, p := range c.patches {
		// Deactivate first so the pair is never observed half-removed.
		p.active.Store(false)
		for _, dispose := range p.disposers {
			c.dispose(id, dispose)
		}
		delete(c.patches, id)
	}
	return nil
}

func (c *Capture) dispose(realmID string, dispose Disposer) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Warn("listener disposer panicked",
				zap.String("realm", realmID),
				zap.String("recovered", formatRecovered(rec)))
		}
	}()
	dispose()
}

// guard recovers a panic on a capture path and logs it. Capture code runs
// inside the page's own error dispatch, so nothing may escape.
func (c *Capture) guard(op string, ec ExecutionContext) {
	if rec := recover(); rec != nil {
		c.logger.Error("recovered panic in exception capture",
			zap.String("op", op),
			zap.String("realm", safeID(ec)),
			zap.String("recovered", formatRecovered(rec)))
	}
}

func safeID(ec ExecutionContext) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	return ec.ID()
}
