// Package stderr provides a sink that prints exceptions in a human-readable format.
// Useful for development and for the jsexc-run CLI.
package stderr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

// Option configures the stderr sink.
type Option func(*config)

type config struct {
	verbose bool
	out     io.Writer
}

// WithVerbose prints the resolved stack frames under each exception.
func WithVerbose() Option {
	return func(c *config) {
		c.verbose = true
	}
}

// WithWriter redirects output away from os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

type sink struct {
	verbose bool

	mu  sync.Mutex
	out io.Writer
}

// New creates a sink that writes to stderr.
func New(opts ...Option) jsexc.Sink {
	cfg := &config{out: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.out == nil {
		cfg.out = os.Stderr
	}
	return &sink{verbose: cfg.verbose, out: cfg.out}
}

// Write formats the event. Lines for one event are never interleaved with
// another's.
func (s *sink) Write(ctx context.Context, event jsexc.Event) error {
	var b strings.Builder

	// Format: [JSEXC] <timestamp> <name> in <realm>
	timestamp := event.Timestamp.Format("2006-01-02T15:04:05Z07:00")
	fmt.Fprintf(&b, "[JSEXC] %s %s", timestamp, event.Exception.Name())
	if event.RealmID != "" {
		fmt.Fprintf(&b, " in %s", event.RealmID)
	}
	b.WriteByte('\n')

	if msg := event.Exception.Message(); msg != "" {
		fmt.Fprintf(&b, "        Message: %s\n", msg)
	}
	if event.Fingerprint != "" {
		fmt.Fprintf(&b, "        Fingerprint: %s\n", event.Fingerprint)
	}

	if s.verbose {
		frames, err := event.Exception.Frames()
		switch {
		case err != nil:
			fmt.Fprintf(&b, "        Stack: %s\n", event.Exception.StackJSON())
		case len(frames) > 0:
			b.WriteString("        Stack trace:\n")
			for _, f := range frames {
				fmt.Fprintf(&b, "          at %s\n", formatFrame(f))
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, b.String())
	return err
}

func formatFrame(f jsexc.StackFrame) string {
	loc := f.FileName
	if loc == "" {
		loc = "<anonymous>"
	}
	if f.LineNumber > 0 {
		loc = fmt.Sprintf("%s:%d", loc, f.LineNumber)
		if f.ColumnNumber > 0 {
			loc = fmt.Sprintf("%s:%d", loc, f.ColumnNumber)
		}
	}
	if f.FunctionName == "" {
		return loc
	}
	return fmt.Sprintf("%s (%s)", f.FunctionName, loc)
}

// Flush is a no-op.
func (s *sink) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op; the writer is owned by the caller.
func (s *sink) Close() error {
	return nil
}
