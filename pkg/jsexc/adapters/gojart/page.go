// page.go groups a main realm and its attached frames into one context registry.

package gojart

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

var (
	// ErrFrameExists is returned when attaching a frame under a name in use.
	ErrFrameExists = errors.New("gojart: frame already attached")

	// ErrFrameNotFound is returned when detaching an unknown frame.
	ErrFrameNotFound = errors.New("gojart: frame not found")
)

// MainRealmName names the realm every page starts with.
const MainRealmName = "main"

// Page is a top-level document: a main realm plus attached frames. It is the
// context registry for all of them, so a capture installed on the page sees
// the main realm immediately and every frame as it is attached.
type Page struct {
	*jsexc.Registry

	opts   []Option
	logger *zap.Logger
	main   *Realm

	mu     sync.Mutex
	frames map[string]*Realm
	closed bool
}

// NewPage starts a page with its main realm. The caller must Close it.
func NewPage(opts ...Option) *Page {
	cfg := newConfig(opts)
	p := &Page{
		Registry: jsexc.NewRegistry(),
		opts:     opts,
		logger:   cfg.logger,
		frames:   make(map[string]*Realm),
	}
	p.main = NewRealm(MainRealmName, opts...)
	p.Register(p.main)
	return p
}

// Main returns the page's main realm.
func (p *Page) Main() *Realm { return p.main }

// AttachFrame starts a frame realm and registers it. Registration completes
// before AttachFrame returns, so subscribers have seen the frame before any of
// its scripts run.
func (p *Page) AttachFrame(name string) (*Realm, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("attach frame %q: %w", name, ErrRealmClosed)
	}
	if name == MainRealmName {
		p.mu.Unlock()
		return nil, fmt.Errorf("attach frame %q: %w", name, ErrFrameExists)
	}
	if _, ok := p.frames[name]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("attach frame %q: %w", name, ErrFrameExists)
	}
	frame := NewRealm(name, p.opts...)
	p.frames[name] = frame
	p.mu.Unlock()

	p.Register(frame)
	p.logger.Debug("frame attached", zap.String("frame", name), zap.String("realm", frame.ID()))
	return frame, nil
}

// Frame returns the attached frame named name.
func (p *Page) Frame(name string) (*Realm, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.frames[name]
	return f, ok
}

// FrameNames returns the names of attached frames, sorted.
func (p *Page) FrameNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.frames))
	for name := range p.frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetachFrame closes the frame named name. Its listeners stay registered but
// never fire again.
func (p *Page) DetachFrame(name string) error {
	p.mu.Lock()
	frame, ok := p.frames[name]
	delete(p.frames, name)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("detach frame %q: %w", name, ErrFrameNotFound)
	}
	p.logger.Debug("frame detached", zap.String("frame", name), zap.String("realm", frame.ID()))
	return frame.Close()
}

// Close closes every frame and then the main realm.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	frames := p.frames
	p.frames = make(map[string]*Realm)
	p.mu.Unlock()

	var errs []error
	for _, f := range frames {
		errs = append(errs, f.Close())
	}
	errs = append(errs, p.main.Close())
	return errors.Join(errs...)
}
