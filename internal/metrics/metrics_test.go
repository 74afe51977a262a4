package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.IncSubmission(OutcomeCreated)
	m.IncSubmission(OutcomeReplayed)
	m.IncSubmission(OutcomeReplayed)
	m.IncPreview(OutcomeOK)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeReplayed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.previews.WithLabelValues(OutcomeOK)))
}

func TestMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("POST", "/api/quotes", 201, 15*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.reqDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.Nil(t, New(nil))
	assert.NotPanics(t, func() {
		m.IncSubmission(OutcomeFailed)
		m.IncPreview(OutcomeFailed)
		m.ObserveRequest("GET", "/health", 200, time.Millisecond)
	})
}
