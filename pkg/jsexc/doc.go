// Package jsexc captures uncaught JavaScript exceptions and unhandled promise
// rejections across every execution realm of a monitored page and turns them
// into one canonical record per failure.
//
// # Core Components
//
// The capture core is engine-agnostic:
//
//   - ExecutionContext: one JS realm that raises "error" and "unhandledrejection" signals
//   - Registry: the set of known contexts, with a subscription for newly discovered ones
//   - Normalizer: maps a Signal to a JSException (or to nothing)
//   - StackResolver: best-effort stack parsing with a guaranteed fallback
//   - Capture: patches every context, normalizes signals and forwards them to a Reporter
//
// The reporter side reuses a collector/sink pipeline:
//
//   - CollectorReporter: wraps each JSException in an Event and records it
//   - Collector: assigns IDs, scrubs sensitive data and fingerprints before persistence
//   - Sink: destination for events (stderr, multi, async, cxdb, prom)
//
// # Quick Start
//
//	collector := jsexc.NewCollector(
//	    jsexc.WithSink(stderr.New()),
//	    jsexc.WithDefaultScrubbing(),
//	)
//	page := gojart.NewPage()
//	defer page.Close()
//	capture := jsexc.NewCapture(jsexc.NewCollectorReporter(collector))
//	capture.Install(page)
//	defer capture.Close()
//	_ = page.Main().RunScript(ctx, "main.js", src)
//
// # Design Principles
//
//   - Capture never raises into the page it observes: parser, serializer and reporter
//     failures degrade to safe defaults and are logged
//   - Exactly one JSException per classifiable signal, none otherwise
//   - A JSException is immutable once built
package jsexc
