// Package prom provides a sink that counts exceptions as Prometheus metrics.
package prom

import (
	"context"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
)

const (
	kindError     = "error"
	kindRejection = "rejection"

	// otherName replaces exception names outside the bounded set.
	otherName = "other"
)

var builtinNames = map[string]bool{
	"Error":             true,
	"EvalError":         true,
	"RangeError":        true,
	"ReferenceError":    true,
	"SyntaxError":       true,
	"TypeError":         true,
	"URIError":          true,
	"AggregateError":    true,
	"InternalError":     true,
	"DOMException":      true,
	jsexc.RejectionName: true,
}

// Custom error classes such as "ValidationError" are defined in code, so
// their number is bounded.
var errorClassPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]{0,63}(Error|Exception)$`)

// nameLabel keeps label cardinality bounded: names derived from thrown
// strings map to "other".
func nameLabel(name string) string {
	if builtinNames[name] || errorClassPattern.MatchString(name) {
		return name
	}
	return otherName
}

type sink struct {
	exceptions *prometheus.CounterVec
	lastSeen   *prometheus.GaugeVec
}

// New registers the exception metrics on reg and returns a sink updating them.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) jsexc.Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &sink{
		exceptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsexc_exceptions_total",
				Help: "Total captured JavaScript exceptions by kind and name.",
			},
			[]string{"kind", "name"},
		),
		lastSeen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jsexc_last_exception_timestamp_seconds",
				Help: "Unix time of the most recent captured exception by kind.",
			},
			[]string{"kind"},
		),
	}
}

// Write counts the event.
func (s *sink) Write(ctx context.Context, event jsexc.Event) error {
	kind := kindError
	if event.Exception.Name() == jsexc.RejectionName {
		kind = kindRejection
	}
	s.exceptions.WithLabelValues(kind, nameLabel(event.Exception.Name())).Inc()

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s.lastSeen.WithLabelValues(kind).Set(float64(ts.UnixNano()) / 1e9)
	return nil
}

// Flush is a no-op; metrics are scraped.
func (s *sink) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op; collectors stay registered for a final scrape.
func (s *sink) Close() error {
	return nil
}
