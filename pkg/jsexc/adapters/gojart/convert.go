// convert.go turns goja values into capture signals.

package gojart

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

var errNotSerializable = errors.New("value has no JSON representation")

// display renders v the way the engine prints it in an "Uncaught ..." message.
func display(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}

// property reads a string property, treating null and undefined as empty.
func property(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// errorValueOf reports whether v is an Error instance and returns its fields.
func errorValueOf(v goja.Value) (jsexc.ErrorValue, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Error" {
		return jsexc.ErrorValue{}, false
	}
	return jsexc.ErrorValue{
		Name:    property(obj, "name"),
		Message: property(obj, "message"),
		Stack:   property(obj, "stack"),
	}, true
}

// syncErrorOf builds the error event for a value thrown out of a task.
func syncErrorOf(thrown goja.Value) (sig jsexc.SyncError) {
	defer func() {
		if rec := recover(); rec != nil {
			sig = jsexc.SyncError{Message: "Uncaught exception"}
		}
	}()

	ev, ok := errorValueOf(thrown)
	if !ok {
		return jsexc.SyncError{Message: "Uncaught " + display(thrown)}
	}

	headline := ev.Name
	if ev.Message != "" {
		headline = fmt.Sprintf("%s: %s", ev.Name, ev.Message)
	}
	sig = jsexc.SyncError{Message: "Uncaught " + headline, Error: &ev}
	if frames, err := jsexc.ParseStack(ev); err == nil {
		sig.FileName = frames[0].FileName
		sig.LineNumber = frames[0].LineNumber
		sig.ColumnNumber = frames[0].ColumnNumber
	}
	return sig
}

// reasonOf converts a rejection reason for the normalizer. Error instances
// become structured values; anything else keeps a handle on the runtime so it
// can be serialized with the realm's own JSON.stringify.
func (r *Realm) reasonOf(v goja.Value) (reason any) {
	defer func() {
		if rec := recover(); rec != nil {
			reason = jsValue{realm: r, val: v}
		}
	}()
	if ev, ok := errorValueOf(v); ok {
		return ev
	}
	return jsValue{realm: r, val: v}
}

// jsValue is a rejection reason still owned by its runtime. It must only be
// encoded on the realm's loop.
type jsValue struct {
	realm *Realm
	val   goja.Value
}

// MarshalJSON encodes the value with JSON.stringify. Cyclic values and values
// JSON cannot represent return an error.
func (v jsValue) MarshalJSON() ([]byte, error) {
	if v.realm.stringify == nil {
		return nil, errNotSerializable
	}
	val := v.val
	if val == nil {
		val = goja.Undefined()
	}
	out, err := v.realm.stringify(goja.Undefined(), val)
	if err != nil {
		return nil, err
	}
	if out == nil || goja.IsUndefined(out) {
		return nil, errNotSerializable
	}
	return []byte(out.String()), nil
}

// String converts the value the way JavaScript's String() does.
func (v jsValue) String() string {
	return display(v.val)
}
