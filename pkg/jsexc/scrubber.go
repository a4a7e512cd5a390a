// scrubber.go implements fail-closed redaction of secrets and PII in captured exceptions.

package jsexc

import (
	"regexp"
	"strings"
)

const (
	redacted         = "[REDACTED]"
	redactedScrubErr = "[REDACTED:SCRUB_ERROR]"
	truncationMarker = "...[TRUNCATED]"
)

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// SensitivePatterns contains additional regex patterns matched against
	// metadata keys and JSON object keys.
	SensitivePatterns []string

	// MaxMessageSize is the maximum length for exception messages (default: 4096).
	MaxMessageSize int

	// MaxFrames is the maximum number of stack frames kept (default: 64).
	MaxFrames int

	// MaxSourceSize is the maximum length of a frame's source line (default: 512).
	MaxSourceSize int

	// MaxMetadataValueSize is the maximum size per metadata value (default: 1024).
	MaxMetadataValueSize int

	// ScrubMessages enables pattern scrubbing of messages (default: true).
	ScrubMessages bool

	// FailClosed redacts a whole field when it cannot be scrubbed (default: true).
	FailClosed bool
}

// DefaultScrubberConfig returns production-safe defaults.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		MaxMessageSize:       4096,
		MaxFrames:            64,
		MaxSourceSize:        512,
		MaxMetadataValueSize: 1024,
		ScrubMessages:        true,
		FailClosed:           true,
	}
}

// Compiled once at package init.
var messageScrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)(authorization|bearer)[=:\s]+['"]?[\w\-\.]+['"]?[\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)gh[po]_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`(?i)xox[baprs]-[a-zA-Z0-9\-]{10,}`),
	regexp.MustCompile(`(?i)eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), // JWT

	// Credentials
	regexp.MustCompile(`(?i)(password|passwd|secret|credential)[=:\s]+['"]?[^\s'",]+['"]?`),

	// PII
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), // Email
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                            // SSN
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),      // Credit card
}

// Query strings in script URLs often carry session tokens.
var urlQueryPattern = regexp.MustCompile(`\?[^\s:#)]*`)

// User-specific directories in file:// and local script paths.
var pathNormalizationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/home/[^/]+/`),
	regexp.MustCompile(`/Users/[^/]+/`),
	regexp.MustCompile(`C:\\Users\\[^\\]+\\`),
	regexp.MustCompile(`/tmp/[^/]+/`),
}

var sensitiveKeySubstrings = []string{
	"token",
	"key",
	"secret",
	"password",
	"passwd",
	"credential",
	"auth",
	"cookie",
	"session",
}

// Scrubber redacts sensitive data from exceptions and event metadata.
type Scrubber struct {
	cfg       ScrubberConfig
	extraKeys []*regexp.Regexp
}

// NewScrubber creates a scrubber. Invalid SensitivePatterns are ignored.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	s := &Scrubber{cfg: cfg}
	for _, p := range cfg.SensitivePatterns {
		if re, err := regexp.Compile(p); err == nil {
			s.extraKeys = append(s.extraKeys, re)
		}
	}
	return s
}

// ScrubException returns a scrubbed copy of e. Rejection payloads that are
// JSON documents are scrubbed structurally; other messages by pattern.
func (s *Scrubber) ScrubException(e JSException) JSException {
	if e.IsZero() {
		return e
	}

	message := e.Message()
	if e.Name() == RejectionName && looksLikeJSONDocument(message) {
		message = s.ScrubJSON(message)
	} else {
		message = s.ScrubMessage(message)
	}

	frames, err := e.Frames()
	if err != nil {
		frames = nil
		if s.cfg.FailClosed {
			message = redactedScrubErr
		}
	}
	return NewJSException(e.Name(), message, s.ScrubFrames(frames))
}

// ScrubMessage scrubs sensitive patterns from a message.
func (s *Scrubber) ScrubMessage(msg string) string {
	if !s.cfg.ScrubMessages {
		return msg
	}
	if s.cfg.MaxMessageSize > 0 && len(msg) > s.cfg.MaxMessageSize {
		msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	}
	for _, pattern := range messageScrubPatterns {
		msg = pattern.ReplaceAllString(msg, redacted)
	}
	return msg
}

// ScrubFrames strips query strings and user directories from file names,
// scrubs source lines and caps the number of frames.
func (s *Scrubber) ScrubFrames(frames []StackFrame) []StackFrame {
	if len(frames) == 0 {
		return frames
	}
	if s.cfg.MaxFrames > 0 && len(frames) > s.cfg.MaxFrames {
		frames = frames[:s.cfg.MaxFrames]
	}

	out := make([]StackFrame, len(frames))
	for i, f := range frames {
		f.FileName = s.scrubLocation(f.FileName)
		f.Source = s.scrubLocation(f.Source)
		if s.cfg.MaxSourceSize > 0 && len(f.Source) > s.cfg.MaxSourceSize {
			f.Source = truncateWithMarker(f.Source, s.cfg.MaxSourceSize)
		}
		out[i] = f
	}
	return out
}

func (s *Scrubber) scrubLocation(loc string) string {
	if loc == "" {
		return loc
	}
	loc = urlQueryPattern.ReplaceAllString(loc, "")
	for _, pattern := range pathNormalizationPatterns {
		loc = pattern.ReplaceAllString(loc, "/[PATH]/")
	}
	return loc
}

// ScrubMetadata redacts sensitive keys from metadata.
func (s *Scrubber) ScrubMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	result := make(map[string]string, len(meta))
	for key, value := range meta {
		if s.isSensitiveKey(key) {
			result[key] = redacted
			continue
		}
		if s.cfg.MaxMetadataValueSize > 0 && len(value) > s.cfg.MaxMetadataValueSize {
			value = truncateWithMarker(value, s.cfg.MaxMetadataValueSize)
		}
		result[key] = s.ScrubMessage(value)
	}
	return result
}

// ScrubJSON scrubs a JSON document, redacting values under sensitive keys and
// pattern-scrubbing strings. Key order and number literals are kept; a
// document with nothing to redact is returned unchanged apart from
// truncation. Returns "[REDACTED:SCRUB_ERROR]" on invalid JSON when
// FailClosed is set.
func (s *Scrubber) ScrubJSON(doc string) string {
	data, err := decodeOrderedJSON(doc)
	if err != nil {
		if s.cfg.FailClosed {
			return redactedScrubErr
		}
		return doc
	}

	result := doc
	if scrubbed, changed := s.scrubJSONValue(data); changed {
		out, err := marshalJSON(scrubbed)
		if err != nil {
			if s.cfg.FailClosed {
				return redactedScrubErr
			}
			return doc
		}
		result = string(out)
	}

	if s.cfg.MaxMessageSize > 0 && len(result) > s.cfg.MaxMessageSize {
		result = truncateWithMarker(result, s.cfg.MaxMessageSize)
	}
	return result
}

// scrubJSONValue returns the scrubbed value and whether anything changed.
func (s *Scrubber) scrubJSONValue(val any) (any, bool) {
	switch v := val.(type) {
	case jsonObject:
		result := make(jsonObject, len(v))
		changed := false
		for i, m := range v {
			result[i].Key = m.Key
			if s.isSensitiveKey(m.Key) {
				result[i].Value = redacted
				changed = true
				continue
			}
			value, c := s.scrubJSONValue(m.Value)
			result[i].Value = value
			changed = changed || c
		}
		return result, changed
	case []any:
		result := make([]any, len(v))
		changed := false
		for i, value := range v {
			scrubbed, c := s.scrubJSONValue(value)
			result[i] = scrubbed
			changed = changed || c
		}
		return result, changed
	case string:
		scrubbed := s.ScrubMessage(v)
		return scrubbed, scrubbed != v
	default:
		return v, false
	}
}

func (s *Scrubber) isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range sensitiveKeySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	for _, re := range s.extraKeys {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

func looksLikeJSONDocument(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// truncateWithMarker truncates s to maxLen bytes including the marker.
func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncationMarker) {
		return truncationMarker[:maxLen]
	}
	return s[:maxLen-len(truncationMarker)] + truncationMarker
}
