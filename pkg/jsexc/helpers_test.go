package jsexc

import (
	"context"
	"sort"
	"sync"
)

// fakeContext is an in-memory ExecutionContext.
type fakeContext struct {
	id string

	mu        sync.Mutex
	nextID    int
	listeners map[EventName]map[int]Listener
}

func newFakeContext(id string) *fakeContext {
	return &fakeContext{id: id, listeners: make(map[EventName]map[int]Listener)}
}

func (f *fakeContext) ID() string { return f.id }

func (f *fakeContext) AddListener(event EventName, fn Listener) Disposer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listeners[event] == nil {
		f.listeners[event] = make(map[int]Listener)
	}
	id := f.nextID
	f.nextID++
	f.listeners[event][id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners[event], id)
	}
}

func (f *fakeContext) listenerCount(event EventName) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[event])
}

// fire dispatches sig to the listeners of event in registration order.
func (f *fakeContext) fire(event EventName, sig Signal) {
	f.mu.Lock()
	ids := make([]int, 0, len(f.listeners[event]))
	for id := range f.listeners[event] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.listeners[event][id])
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(sig)
	}
}

type sentMessage struct {
	realmID string
	msg     JSException
}

// recordingReporter captures sent messages for verification in tests.
type recordingReporter struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingReporter) Send(ctx context.Context, msg JSException) {
	realmID, _ := RealmIDFromContext(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{realmID: realmID, msg: msg})
}

func (r *recordingReporter) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]sentMessage, len(r.sent))
	copy(result, r.sent)
	return result
}

// testSink captures events for verification in tests.
type testSink struct {
	mu       sync.Mutex
	events   []Event
	writeErr error
}

func (s *testSink) Write(ctx context.Context, event Event) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *testSink) Flush(ctx context.Context) error { return nil }

func (s *testSink) Close() error { return nil }

func (s *testSink) getEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Event, len(s.events))
	copy(result, s.events)
	return result
}
