// recover.go turns Go panics in realm tasks into error events.

package gojart

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

// recoverTask turns a Go panic raised by host code during a task into an
// error event so the loop goroutine survives. Deferred directly by tasks.
func (r *Realm) recoverTask() {
	rec := recover()
	if rec == nil {
		return
	}
	msg := formatRecovered(rec)
	r.logger.Error("task panicked",
		zap.String("recovered", msg),
		zap.ByteString("stack", debug.Stack()),
	)
	r.dispatch(jsexc.EventError, jsexc.SyncError{
		Message: "Uncaught InternalError: " + msg,
		Error:   &jsexc.ErrorValue{Name: "InternalError", Message: msg},
	})
	r.flushRejections()
}

func formatRecovered(rec any) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", rec)
}
