// Package gojart hosts JavaScript realms on goja runtimes so that
// [jsexc.Capture] can observe them.
//
// A [Realm] is one goja runtime driven by its own goja_nodejs event loop.
// Every task the realm runs (scripts, timer callbacks) executes on that loop;
// uncaught exceptions are raised as "error" events and promises still
// rejected without a handler once a task finishes are raised as
// "unhandledrejection" events. Listeners run synchronously on the loop, so
// events of one realm reach them in the order they occurred.
//
// A [Page] groups a main realm with any number of attached frames and is the
// [jsexc.ContextRegistry] for all of them:
//
//	page := gojart.NewPage(gojart.WithLogger(logger))
//	defer page.Close()
//
//	capture := jsexc.NewCapture(reporter)
//	capture.Install(page)
//	defer capture.Close()
//
//	frame, _ := page.AttachFrame("checkout")
//	_ = frame.RunScript(ctx, "checkout.js", src)
package gojart
