package jsexc

import (
	"errors"
	"testing"
)

func mustFrames(t *testing.T, e JSException) []StackFrame {
	t.Helper()
	frames, err := e.Frames()
	if err != nil {
		t.Fatalf("StackJSON %q does not decode: %v", e.StackJSON(), err)
	}
	return frames
}

func TestNormalize_SyncError_SplitsOnFirstColon(t *testing.T) {
	n := NewNormalizer(nil)

	msg, ok := n.Normalize(SyncError{
		Message:      "TypeError: x is not defined",
		FileName:     "app.js",
		LineNumber:   12,
		ColumnNumber: 4,
	})
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Name() != "TypeError" {
		t.Errorf("Name = %q, want TypeError", msg.Name())
	}
	if msg.Message() != "x is not defined" {
		t.Errorf("Message = %q, want %q", msg.Message(), "x is not defined")
	}

	frames := mustFrames(t, msg)
	want := StackFrame{FileName: "app.js", LineNumber: 12, ColumnNumber: 4}
	if len(frames) != 1 || frames[0] != want {
		t.Errorf("frames = %+v, want [%+v]", frames, want)
	}
}

func TestNormalize_SyncError_KeepsLaterColons(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(SyncError{Message: "RangeError: bad value: 42"})
	if msg.Name() != "RangeError" || msg.Message() != "bad value: 42" {
		t.Errorf("got (%q, %q)", msg.Name(), msg.Message())
	}
}

func TestNormalize_SyncError_NoColon(t *testing.T) {
	n := NewNormalizer(nil)

	msg, ok := n.Normalize(SyncError{Message: "Script error"})
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Name() != "Error" {
		t.Errorf("Name = %q, want Error", msg.Name())
	}
	if msg.Message() != "Script error" {
		t.Errorf("Message = %q, want %q", msg.Message(), "Script error")
	}
}

func TestNormalize_SyncError_EmptyDetail(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(SyncError{Message: "Oops:"})
	if msg.Name() != "Error" || msg.Message() != "Oops:" {
		t.Errorf("got (%q, %q), want (Error, Oops:)", msg.Name(), msg.Message())
	}
}

func TestNormalize_SyncError_EmptyMessageGetsDefaults(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(SyncError{})
	if msg.Name() == "" || msg.Message() == "" {
		t.Errorf("name/message must never be empty, got (%q, %q)", msg.Name(), msg.Message())
	}
}

func TestNormalize_SyncError_StructuredErrorUsesParsedStack(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(SyncError{
		Message:  "Uncaught TypeError: nope",
		FileName: "fallback.js",
		Error: &ErrorValue{
			Name:    "TypeError",
			Message: "nope",
			Stack:   "TypeError: nope\n    at boom (app.js:3:9)\n    at app.js:10:1",
		},
	})

	if msg.Name() != "TypeError" || msg.Message() != "nope" {
		t.Errorf("got (%q, %q)", msg.Name(), msg.Message())
	}
	frames := mustFrames(t, msg)
	if len(frames) != 2 {
		t.Fatalf("Expected 2 parsed frames, got %+v", frames)
	}
	if frames[0].FunctionName != "boom" || frames[0].FileName != "app.js" || frames[0].LineNumber != 3 {
		t.Errorf("first frame = %+v", frames[0])
	}
}

func TestNormalize_SyncError_ParserFailureUsesSignalFrame(t *testing.T) {
	n := NewNormalizer(nil)

	sig := SyncError{
		Message:      "Error: no stack",
		FileName:     "app.js",
		LineNumber:   7,
		ColumnNumber: 2,
		Error:        &ErrorValue{Name: "Error", Message: "no stack"},
	}
	msg, _ := n.Normalize(sig)

	frames := mustFrames(t, msg)
	if len(frames) != 1 || frames[0] != frameFromSignal(sig) {
		t.Errorf("frames = %+v, want exactly the signal frame", frames)
	}
}

func TestNormalize_RejectedPromise_Object(t *testing.T) {
	n := NewNormalizer(nil)

	msg, ok := n.Normalize(RejectedPromise{Reason: map[string]any{"foo": 1}})
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Name() != "Unhandled Promise Rejection" {
		t.Errorf("Name = %q", msg.Name())
	}
	if msg.Message() != `{"foo":1}` {
		t.Errorf("Message = %q, want %q", msg.Message(), `{"foo":1}`)
	}
	if msg.StackJSON() != "[]" {
		t.Errorf("StackJSON = %q, want []", msg.StackJSON())
	}
}

type rawReason string

func (r rawReason) MarshalJSON() ([]byte, error) { return []byte(r), nil }

func TestNormalize_RejectedPromise_KeepsHTMLCharacters(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(RejectedPromise{Reason: map[string]any{"q": "<tag>&"}})
	if msg.Message() != `{"q":"<tag>&"}` {
		t.Errorf("Message = %q, want HTML characters unescaped", msg.Message())
	}

	msg, _ = n.Normalize(RejectedPromise{Reason: rawReason(`{"q": "a<b && c>d"}`)})
	if msg.Message() != `{"q":"a<b && c>d"}` {
		t.Errorf("Message = %q, want marshaler output kept", msg.Message())
	}
}

func TestNormalize_RejectedPromise_String(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(RejectedPromise{Reason: "boom"})
	if msg.Message() != `"boom"` {
		t.Errorf("Message = %q, want JSON string", msg.Message())
	}
}

func TestNormalize_RejectedPromise_NilReason(t *testing.T) {
	n := NewNormalizer(nil)

	msg, ok := n.Normalize(RejectedPromise{})
	if !ok || msg.Message() != "null" {
		t.Errorf("got (%q, %v), want (null, true)", msg.Message(), ok)
	}
}

func TestNormalize_RejectedPromise_CircularReason(t *testing.T) {
	n := NewNormalizer(nil)

	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	var msg JSException
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Normalize panicked: %v", r)
			}
		}()
		msg, _ = n.Normalize(RejectedPromise{Reason: cyclic})
	}()

	if msg.Message() != "[object Object]" {
		t.Errorf("Message = %q, want string conversion", msg.Message())
	}
	if msg.StackJSON() != "[]" {
		t.Errorf("StackJSON = %q, want []", msg.StackJSON())
	}
}

type stringerReason struct{ Ch chan int }

func (s stringerReason) String() string { return "custom reason" }

func TestNormalize_RejectedPromise_UnsupportedValueUsesStringer(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(RejectedPromise{Reason: stringerReason{Ch: make(chan int)}})
	if msg.Message() != "custom reason" {
		t.Errorf("Message = %q, want %q", msg.Message(), "custom reason")
	}
}

type panickingMarshaler struct{}

func (panickingMarshaler) MarshalJSON() ([]byte, error) { panic("marshal exploded") }

func TestNormalize_RejectedPromise_PanickingMarshaler(t *testing.T) {
	n := NewNormalizer(nil)

	msg, ok := n.Normalize(RejectedPromise{Reason: panickingMarshaler{}})
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Message() != "[object Object]" {
		t.Errorf("Message = %q", msg.Message())
	}
}

func TestNormalize_RejectedPromise_StructuredReasonHasNoFallbackFrame(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(RejectedPromise{Reason: &ErrorValue{Name: "RangeError", Message: "too far"}})
	if msg.Name() != "RangeError" || msg.Message() != "too far" {
		t.Errorf("got (%q, %q)", msg.Name(), msg.Message())
	}
	if msg.StackJSON() != "[]" {
		t.Errorf("StackJSON = %q, want []", msg.StackJSON())
	}
}

func TestNormalize_RejectedPromise_GoError(t *testing.T) {
	n := NewNormalizer(nil)

	msg, _ := n.Normalize(RejectedPromise{Reason: errors.New("dial tcp: refused")})
	if msg.Name() != "Error" || msg.Message() != "dial tcp: refused" {
		t.Errorf("got (%q, %q)", msg.Name(), msg.Message())
	}
}

type otherSignal struct{ SyncError }

func TestNormalize_UnclassifiableSignal(t *testing.T) {
	n := NewNormalizer(nil)

	if _, ok := n.Normalize(nil); ok {
		t.Error("nil signal should yield no message")
	}
	if _, ok := n.Normalize(otherSignal{}); ok {
		t.Error("unknown signal type should yield no message")
	}
	var nilSync *SyncError
	if _, ok := n.Normalize(nilSync); ok {
		t.Error("nil *SyncError should yield no message")
	}
}
