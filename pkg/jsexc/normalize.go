// normalize.go maps raw failure signals to canonical JSException records.

package jsexc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Normalizer converts signals into JSException records. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	resolver *StackResolver
}

// NewNormalizer creates a Normalizer that resolves structured errors with resolver.
// A nil resolver uses ParseStack.
func NewNormalizer(resolver *StackResolver) *Normalizer {
	if resolver == nil {
		resolver = NewStackResolver(nil, nil)
	}
	return &Normalizer{resolver: resolver}
}

// Normalize returns the record for sig, or false when sig matches neither
// signal shape.
func (n *Normalizer) Normalize(sig Signal) (JSException, bool) {
	switch s := sig.(type) {
	case SyncError:
		return n.normalizeSyncError(s), true
	case *SyncError:
		if s == nil {
			return JSException{}, false
		}
		return n.normalizeSyncError(*s), true
	case RejectedPromise:
		return n.normalizeRejection(s), true
	case *RejectedPromise:
		if s == nil {
			return JSException{}, false
		}
		return n.normalizeRejection(*s), true
	default:
		return JSException{}, false
	}
}

func (n *Normalizer) normalizeSyncError(s SyncError) JSException {
	fallback := []StackFrame{frameFromSignal(s)}
	if s.Error != nil {
		return n.resolver.Resolve(*s.Error, fallback)
	}

	name, detail, found := strings.Cut(s.Message, ":")
	name = strings.TrimSpace(name)
	detail = strings.TrimSpace(detail)
	if !found || detail == "" {
		name = defaultErrorName
		detail = s.Message
	}
	return NewJSException(name, detail, fallback)
}

// frameFromSignal locates the throw site reported by the event itself.
func frameFromSignal(s SyncError) StackFrame {
	return StackFrame{
		FileName:     s.FileName,
		LineNumber:   s.LineNumber,
		ColumnNumber: s.ColumnNumber,
	}
}

func (n *Normalizer) normalizeRejection(s RejectedPromise) JSException {
	// Rejections carry no location, so structured reasons get no fallback frame.
	if ev, ok := AsErrorValue(s.Reason); ok {
		return n.resolver.Resolve(ev, nil)
	}
	return NewJSException(RejectionName, serializeReason(s.Reason), nil)
}

// AsErrorValue reports whether v is a structured error and returns it.
// Go errors are treated as structured errors named "Error".
func AsErrorValue(v any) (ErrorValue, bool) {
	switch e := v.(type) {
	case ErrorValue:
		return e, true
	case *ErrorValue:
		if e == nil {
			return ErrorValue{}, false
		}
		return *e, true
	case error:
		if e == nil {
			return ErrorValue{}, false
		}
		var named interface{ ErrorName() string }
		name := defaultErrorName
		if errors.As(e, &named) {
			name = named.ErrorName()
		}
		return ErrorValue{Name: name, Message: safeErrorString(e)}, true
	default:
		return ErrorValue{}, false
	}
}

// serializeReason JSON-encodes reason, falling back to a string conversion
// when encoding fails or a marshaler panics.
func serializeReason(reason any) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = stringifyReason(reason)
		}
	}()
	b, err := marshalJSON(reason)
	if err != nil || len(b) == 0 {
		return stringifyReason(reason)
	}
	return string(b)
}

// marshalJSON encodes v like JSON.stringify does: no HTML escaping, no
// trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// stringifyReason converts reason to text without walking composite values,
// which may be cyclic.
func stringifyReason(reason any) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = "[object Object]"
		}
	}()
	switch v := reason.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	switch reflect.TypeOf(reason).Kind() {
	case reflect.Map, reflect.Struct, reflect.Pointer, reflect.Slice, reflect.Array,
		reflect.Interface, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return "[object Object]"
	default:
		return fmt.Sprint(reason)
	}
}

func safeErrorString(err error) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = defaultErrorName
		}
	}()
	return err.Error()
}

// formatRecovered formats a recovered panic value as a string.
func formatRecovered(recovered any) string {
	if recovered == nil {
		return "<nil>"
	}
	if err, ok := recovered.(error); ok {
		return safeErrorString(err)
	}
	return stringifyReason(recovered)
}
