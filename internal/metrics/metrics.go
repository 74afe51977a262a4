// Package metrics holds the Prometheus collectors for the quote API. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "estimate"

// Submission outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeReplayed = "replayed"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
	OutcomeOK       = "ok"
)

// Metrics groups the service collectors.
type Metrics struct {
	submissions *prometheus.CounterVec
	previews    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil registerer yields a no-op value.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_submissions_total",
			Help:      "Quote submissions by outcome.",
		}, []string{"outcome"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_previews_total",
			Help:      "Quote previews by outcome.",
		}, []string{"outcome"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.submissions, m.previews, m.reqDuration)
	return m
}

// IncSubmission counts one submission outcome.
func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// IncPreview counts one preview outcome.
func (m *Metrics) IncPreview(outcome string) {
	if m == nil {
		return
	}
	m.previews.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the latency of one HTTP request. route is the
// matched route pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.reqDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
