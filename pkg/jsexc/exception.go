// exception.go defines the canonical JSException record and its stack frames.

package jsexc

import "encoding/json"

// KindJSException is the wire kind of every record built by this package.
const KindJSException = "JSException"

// RejectionName is the exception name used for non-error rejection reasons.
const RejectionName = "Unhandled Promise Rejection"

const defaultErrorName = "Error"

// StackFrame is one call-site entry of a JavaScript stack.
type StackFrame struct {
	FunctionName string `json:"functionName,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	LineNumber   int    `json:"lineNumber,omitempty"`
	ColumnNumber int    `json:"columnNumber,omitempty"`
	Source       string `json:"source,omitempty"`
}

// JSException is the normalized, transport-ready exception record.
// Its fields are unexported so a value can never change after construction.
type JSException struct {
	name    string
	message string
	stack   string
}

// NewJSException builds a record from its parts. Empty names default to
// "Error" and empty messages fall back to the name. A nil frame slice is
// encoded as an empty JSON array.
func NewJSException(name, message string, frames []StackFrame) JSException {
	if name == "" {
		name = defaultErrorName
	}
	if message == "" {
		message = name
	}
	return JSException{
		name:    name,
		message: message,
		stack:   encodeFrames(frames),
	}
}

func encodeFrames(frames []StackFrame) string {
	if len(frames) == 0 {
		return "[]"
	}
	b, err := json.Marshal(frames)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Kind always returns KindJSException.
func (e JSException) Kind() string { return KindJSException }

// Name is the exception class name, e.g. "TypeError".
func (e JSException) Name() string { return e.name }

// Message is the exception detail text.
func (e JSException) Message() string { return e.message }

// StackJSON is the JSON array encoding of the ordered stack frames.
func (e JSException) StackJSON() string {
	if e.stack == "" {
		return "[]"
	}
	return e.stack
}

// Frames decodes StackJSON.
func (e JSException) Frames() ([]StackFrame, error) {
	var frames []StackFrame
	if err := json.Unmarshal([]byte(e.StackJSON()), &frames); err != nil {
		return nil, err
	}
	if frames == nil {
		frames = []StackFrame{}
	}
	return frames, nil
}

// IsZero reports whether e was never built by NewJSException.
func (e JSException) IsZero() bool { return e.name == "" }

type wireJSException struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// MarshalJSON encodes the record in its wire form.
func (e JSException) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireJSException{
		Kind:    KindJSException,
		Name:    e.name,
		Message: e.message,
		Stack:   e.StackJSON(),
	})
}

// UnmarshalJSON decodes the wire form, re-applying the record defaults.
func (e *JSException) UnmarshalJSON(data []byte) error {
	var w wireJSException
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var frames []StackFrame
	if w.Stack != "" {
		if err := json.Unmarshal([]byte(w.Stack), &frames); err != nil {
			return err
		}
	}
	*e = NewJSException(w.Name, w.Message, frames)
	return nil
}
