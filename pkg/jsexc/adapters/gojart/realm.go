// realm.go hosts one goja runtime on its own event loop and raises its failures as events.

package gojart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

// ErrRealmClosed is returned when work is submitted to a closed realm.
var ErrRealmClosed = errors.New("gojart: realm closed")

// Option configures realms and pages.
type Option func(*config)

type config struct {
	logger *zap.Logger
}

// WithLogger sets the logger for realm diagnostics and console output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

type listenerEntry struct {
	id uint64
	fn jsexc.Listener
}

// Realm is a goja runtime on its own event loop. It implements
// [jsexc.ExecutionContext].
type Realm struct {
	id     string
	name   string
	logger *zap.Logger
	loop   *eventloop.EventLoop

	// Set once during initialization on the loop.
	vm        *goja.Runtime
	stringify goja.Callable

	mu        sync.Mutex
	listeners map[jsexc.EventName][]listenerEntry
	nextID    uint64

	// pending holds rejected promises without a handler. Loop goroutine only.
	pending []*goja.Promise

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewRealm starts a realm named name. The caller must Close it.
func NewRealm(name string, opts ...Option) *Realm {
	cfg := newConfig(opts)
	id := fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])

	r := &Realm{
		id:        id,
		name:      name,
		logger:    cfg.logger.With(zap.String("realm", id)),
		listeners: make(map[jsexc.EventName][]listenerEntry),
		done:      make(chan struct{}),
	}

	registry := new(require.Registry)
	registry.RegisterNativeModule("console", console.RequireWithPrinter(consolePrinter{logger: r.logger}))
	r.loop = eventloop.NewEventLoop(eventloop.WithRegistry(registry))
	r.loop.Start()

	initDone := make(chan struct{})
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(initDone)
		r.init(vm)
	})
	<-initDone

	r.logger.Debug("realm started")
	return r
}

func (r *Realm) init(vm *goja.Runtime) {
	r.vm = vm

	if jsonObj := vm.Get("JSON"); jsonObj != nil {
		if fn, ok := goja.AssertFunction(jsonObj.ToObject(vm).Get("stringify")); ok {
			r.stringify = fn
		}
	}

	vm.SetPromiseRejectionTracker(r.trackRejection)

	_ = vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return r.schedule(vm, call, false)
	})
	_ = vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return r.schedule(vm, call, true)
	})
	clearTimer := func(call goja.FunctionCall) goja.Value {
		switch t := call.Argument(0).Export().(type) {
		case *eventloop.Timer:
			r.loop.ClearTimeout(t)
		case *eventloop.Interval:
			r.loop.ClearInterval(t)
		}
		return goja.Undefined()
	}
	_ = vm.Set("clearTimeout", clearTimer)
	_ = vm.Set("clearInterval", clearTimer)

	// reportError raises an error event without unwinding the caller.
	_ = vm.Set("reportError", func(call goja.FunctionCall) goja.Value {
		r.dispatch(jsexc.EventError, syncErrorOf(call.Argument(0)))
		return goja.Undefined()
	})
}

// ID returns the realm's stable identity: its name plus a random suffix.
func (r *Realm) ID() string { return r.id }

// Name returns the name the realm was created with.
func (r *Realm) Name() string { return r.name }

// AddListener registers fn for event. Listeners run on the realm's loop in
// registration order.
func (r *Realm) AddListener(event jsexc.EventName, fn jsexc.Listener) jsexc.Disposer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.listeners[event] = append(r.listeners[event], listenerEntry{id: id, fn: fn})
	return func() { r.removeListener(event, id) }
}

func (r *Realm) removeListener(event jsexc.EventName, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.listeners[event]
	for i, e := range entries {
		if e.id == id {
			r.listeners[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of listeners registered for event.
func (r *Realm) ListenerCount(event jsexc.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[event])
}

func (r *Realm) dispatch(event jsexc.EventName, sig jsexc.Signal) {
	if r.closed.Load() {
		return
	}
	r.mu.Lock()
	entries := append([]listenerEntry(nil), r.listeners[event]...)
	r.mu.Unlock()

	for _, e := range entries {
		r.invoke(event, e.fn, sig)
	}
}

func (r *Realm) invoke(event jsexc.EventName, fn jsexc.Listener, sig jsexc.Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				zap.String("event", string(event)),
				zap.Any("recovered", rec),
			)
		}
	}()
	fn(sig)
}

func (r *Realm) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		r.pending = append(r.pending, p)
	case goja.PromiseRejectionHandle:
		for i, q := range r.pending {
			if q == p {
				r.pending = append(r.pending[:i], r.pending[i+1:]...)
				return
			}
		}
	}
}

// flushRejections raises an event for every promise still unhandled at the
// end of a task.
func (r *Realm) flushRejections() {
	for len(r.pending) > 0 {
		pending := r.pending
		r.pending = nil
		for _, p := range pending {
			r.dispatch(jsexc.EventUnhandledRejection, jsexc.RejectedPromise{Reason: r.reasonOf(p.Result())})
		}
	}
}

// settle routes the outcome of one task to the listeners.
func (r *Realm) settle(err error) {
	if err != nil {
		r.raise(err)
	}
	r.flushRejections()
}

func (r *Realm) raise(err error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		r.logger.Debug("task interrupted", zap.Error(err))
		return
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		r.dispatch(jsexc.EventError, syncErrorOf(ex.Value()))
		return
	}
	r.dispatch(jsexc.EventError, jsexc.SyncError{Message: "Uncaught " + err.Error()})
}

func (r *Realm) schedule(vm *goja.Runtime, call goja.FunctionCall, repeat bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(vm.NewTypeError("The \"callback\" argument must be of type function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	task := func(*goja.Runtime) {
		defer r.recoverTask()
		_, err := fn(goja.Undefined(), args...)
		r.settle(err)
	}
	if repeat {
		return vm.ToValue(r.loop.SetInterval(task, delay))
	}
	return vm.ToValue(r.loop.SetTimeout(task, delay))
}

// Run executes fn as one task on the realm's loop and waits for it. An error
// returned by fn is raised as an uncaught exception, as are exceptions thrown
// by script code; neither is returned. A Go panic in fn is raised as an
// InternalError. Run returns ErrRealmClosed if the realm closes before Run
// returns and ctx.Err() if ctx ends first. It must not be called from the
// realm's own loop.
func (r *Realm) Run(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	if r.closed.Load() {
		return ErrRealmClosed
	}

	done := make(chan struct{})
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(done)
		defer r.recoverTask()
		r.settle(fn(vm))
	})

	select {
	case <-done:
		if r.closed.Load() {
			return ErrRealmClosed
		}
		return nil
	case <-r.done:
		return ErrRealmClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunScript compiles and runs src as a classic script named name.
// Syntax errors are raised like any other uncaught exception.
func (r *Realm) RunScript(ctx context.Context, name, src string) error {
	return r.Run(ctx, func(vm *goja.Runtime) error {
		_, err := vm.RunScript(name, src)
		return err
	})
}

// Settle waits for d, then for every task queued before it to finish.
func (r *Realm) Settle(ctx context.Context, d time.Duration) error {
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-r.done:
			return ErrRealmClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.Run(ctx, func(*goja.Runtime) error { return nil })
}

// Close interrupts running script code and stops the loop. Pending timers are
// discarded. It is safe to call more than once but must not be called from
// the realm's own loop.
func (r *Realm) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.vm.Interrupt(ErrRealmClosed)
		r.loop.Stop()
		r.logger.Debug("realm closed")
	})
	return nil
}

// consolePrinter routes console.* output to the realm logger.
type consolePrinter struct {
	logger *zap.Logger
}

func (p consolePrinter) Log(msg string) {
	p.logger.Info("[JS Console]", zap.String("message", msg))
}

func (p consolePrinter) Warn(msg string) {
	p.logger.Warn("[JS Console]", zap.String("message", msg))
}

func (p consolePrinter) Error(msg string) {
	p.logger.Error("[JS Console]", zap.String("message", msg))
}
