// stackparse.go implements a multi-engine parser for JavaScript stack strings.

package jsexc

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrStackUnparseable is returned by ParseStack when no frame can be read.
var ErrStackUnparseable = errors.New("jsexc: cannot parse stack")

var (
	// V8 and goja: "    at fn (file.js:10:5)", "\tat file.js:3:9(12)", "at fn (file.js:3:9(12))".
	v8FramePattern = regexp.MustCompile(`^\s*at\s+(?:(.*?)\s+\()?(.+?):(\d+):(\d+)(?:\(\d+\))?\)?\s*$`)

	// Detects V8-style stacks.
	v8LinePattern = regexp.MustCompile(`^\s*at\s`)

	// Gecko and WebKit: "fn@http://host/file.js:10:5", "@file.js:1:1".
	geckoFramePattern = regexp.MustCompile(`^\s*(?:(.*?)@)?(.+?):(\d+):(\d+)\s*$`)
)

// ParseStack parses the Stack of ev. It understands V8/goja frames
// ("at fn (file:line:col)") and Gecko/WebKit frames ("fn@file:line:col").
// Lines that match neither form, such as the "Name: message" header or
// native frames, are skipped.
func ParseStack(ev ErrorValue) ([]StackFrame, error) {
	if strings.TrimSpace(ev.Stack) == "" {
		return nil, ErrStackUnparseable
	}

	lines := strings.Split(ev.Stack, "\n")
	v8 := false
	for _, line := range lines {
		if v8LinePattern.MatchString(line) {
			v8 = true
			break
		}
	}

	var frames []StackFrame
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		var frame StackFrame
		var ok bool
		if v8 {
			frame, ok = parseV8Line(line)
		} else {
			frame, ok = parseGeckoLine(line)
		}
		if ok {
			frames = append(frames, frame)
		}
	}

	if len(frames) == 0 {
		return nil, ErrStackUnparseable
	}
	return frames, nil
}

func parseV8Line(line string) (StackFrame, bool) {
	m := v8FramePattern.FindStringSubmatch(line)
	if m == nil {
		return StackFrame{}, false
	}
	return newParsedFrame(m[1], m[2], m[3], m[4], line), true
}

func parseGeckoLine(line string) (StackFrame, bool) {
	if !strings.Contains(line, "@") {
		return StackFrame{}, false
	}
	m := geckoFramePattern.FindStringSubmatch(line)
	if m == nil {
		return StackFrame{}, false
	}
	return newParsedFrame(m[1], m[2], m[3], m[4], line), true
}

func newParsedFrame(fn, file, line, col, source string) StackFrame {
	lineNumber, _ := strconv.Atoi(line)
	columnNumber, _ := strconv.Atoi(col)
	return StackFrame{
		FunctionName: strings.TrimSpace(fn),
		FileName:     strings.TrimSpace(file),
		LineNumber:   lineNumber,
		ColumnNumber: columnNumber,
		Source:       strings.TrimSpace(source),
	}
}
