package jsexc

import (
	"testing"
	"time"
)

func eventWith(name, message string, frames ...StackFrame) Event {
	return Event{
		EventID:   "evt-1",
		Timestamp: time.Now(),
		RealmID:   "main",
		Exception: NewJSException(name, message, frames),
	}
}

func TestFingerprint_Stability(t *testing.T) {
	e := eventWith("TypeError", "x is not defined", StackFrame{FunctionName: "render", FileName: "app.js", LineNumber: 3})

	fp1 := Fingerprint(e)
	fp2 := Fingerprint(e)
	if fp1 != fp2 {
		t.Errorf("Same event produced different fingerprints: %q vs %q", fp1, fp2)
	}
	if len(fp1) != 32 {
		t.Errorf("Fingerprint length = %d, want 32", len(fp1))
	}
}

func TestFingerprint_IgnoresVariableData(t *testing.T) {
	a := eventWith("TypeError", "x is not defined",
		StackFrame{FunctionName: "render", FileName: "https://cdn.example.com/app.3f2a9c1b.js?v=1", LineNumber: 3, ColumnNumber: 9})
	b := eventWith("TypeError", "y is not defined",
		StackFrame{FunctionName: "render", FileName: "https://cdn.example.com/app.77aa00ff.js?v=2", LineNumber: 40, ColumnNumber: 1})
	b.EventID = "evt-2"
	b.RealmID = "frame"

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("line numbers, bundle hashes, queries, IDs and messages should not affect the fingerprint")
	}
}

func TestFingerprint_DifferentNameOrFunction(t *testing.T) {
	base := eventWith("TypeError", "m", StackFrame{FunctionName: "render", FileName: "app.js"})
	otherName := eventWith("RangeError", "m", StackFrame{FunctionName: "render", FileName: "app.js"})
	otherFn := eventWith("TypeError", "m", StackFrame{FunctionName: "mount", FileName: "app.js"})

	if Fingerprint(base) == Fingerprint(otherName) {
		t.Error("different names should fingerprint differently")
	}
	if Fingerprint(base) == Fingerprint(otherFn) {
		t.Error("different functions should fingerprint differently")
	}
}

func TestFingerprint_OnlyFirstThreeFrames(t *testing.T) {
	frames := []StackFrame{
		{FunctionName: "a", FileName: "x.js"},
		{FunctionName: "b", FileName: "x.js"},
		{FunctionName: "c", FileName: "x.js"},
	}
	a := eventWith("Error", "m", append(frames, StackFrame{FunctionName: "d", FileName: "x.js"})...)
	b := eventWith("Error", "m", append(frames, StackFrame{FunctionName: "e", FileName: "y.js"})...)

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("frames beyond the third should not affect the fingerprint")
	}
}

func TestFingerprint_FramelessUsesNormalizedMessage(t *testing.T) {
	a := eventWith(RejectionName, `{"status":500}`)
	b := eventWith(RejectionName, `{"status":503}`)
	c := eventWith(RejectionName, `"timeout"`)

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("numbers in messages should be normalized")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different frameless messages should fingerprint differently")
	}
}
