// stack.go resolves the stack of a structured error with a guaranteed fallback.

package jsexc

import "go.uber.org/zap"

// StackParser extracts ordered frames from a structured error.
// Implementations are untrusted: they may return an error or panic.
type StackParser interface {
	Parse(ev ErrorValue) ([]StackFrame, error)
}

// StackParserFunc adapts a function to StackParser.
type StackParserFunc func(ev ErrorValue) ([]StackFrame, error)

// Parse calls f.
func (f StackParserFunc) Parse(ev ErrorValue) ([]StackFrame, error) {
	return f(ev)
}

// StackResolver turns a structured error into a JSException.
type StackResolver struct {
	parser StackParser
	logger *zap.Logger
}

// NewStackResolver creates a resolver around parser. A nil parser selects
// ParseStack.
func NewStackResolver(parser StackParser, logger *zap.Logger) *StackResolver {
	if parser == nil {
		parser = StackParserFunc(ParseStack)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StackResolver{parser: parser, logger: logger}
}

// Resolve builds a JSException from ev. When the parser fails or panics the
// fallback frames are used verbatim. Resolve never panics.
func (r *StackResolver) Resolve(ev ErrorValue, fallback []StackFrame) JSException {
	frames, ok := r.parse(ev)
	if !ok {
		frames = fallback
	}
	return NewJSException(ev.Name, ev.Message, frames)
}

func (r *StackResolver) parse(ev ErrorValue) (frames []StackFrame, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug("stack parser panicked", zap.String("recovered", formatRecovered(rec)))
			frames, ok = nil, false
		}
	}()
	frames, err := r.parser.Parse(ev)
	if err != nil {
		return nil, false
	}
	return frames, true
}
