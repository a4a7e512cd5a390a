// fingerprint.go generates stable hashes for grouping similar exceptions.

package jsexc

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const fingerprintFrames = 3

// Fingerprint generates a hash for grouping similar exceptions.
// The fingerprint is based on:
//   - the exception name
//   - the first 3 stack frames (function name and file, normalized)
//   - the normalized message, only when there are no frames
//
// It ignores event IDs, timestamps, realm IDs, line and column numbers.
func Fingerprint(event Event) string {
	parts := []string{event.Exception.Name()}

	frames, _ := event.Exception.Frames()
	keys := frameKeys(frames)
	if len(keys) == 0 {
		parts = append(parts, normalizeMessage(event.Exception.Message()))
	}
	parts = append(parts, keys...)

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))

	// 16 bytes, 32 hex chars
	return hex.EncodeToString(hash[:16])
}

var (
	// Cache-busting query strings and fragments.
	fileQueryPattern = regexp.MustCompile(`[?#].*$`)

	// Content hashes in bundle names like "app.3f2a9c1b.js".
	bundleHashPattern = regexp.MustCompile(`\.[0-9a-f]{8,}\.`)

	// Numbers and hex literals in messages.
	numberPattern = regexp.MustCompile(`\b(0x[0-9a-fA-F]+|\d+)\b`)
)

// frameKeys reduces the first frames to "function@file" keys.
func frameKeys(frames []StackFrame) []string {
	var keys []string
	for _, f := range frames {
		if f.FunctionName == "" && f.FileName == "" {
			continue
		}
		file := fileQueryPattern.ReplaceAllString(f.FileName, "")
		file = bundleHashPattern.ReplaceAllString(file, ".")
		keys = append(keys, f.FunctionName+"@"+file)
		if len(keys) >= fingerprintFrames {
			break
		}
	}
	return keys
}

func normalizeMessage(msg string) string {
	return numberPattern.ReplaceAllString(msg, "N")
}
