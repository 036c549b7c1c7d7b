package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncTransition("pending", "needs_review", "system")
	m.IncTransition("pending", "needs_review", "system")
	m.IncAlert("critical", "delivery_failed")
	m.IncDropped()
	m.SetQueueDepth(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("pending", "needs_review", "system")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alerts.WithLabelValues("critical", "delivery_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedJobs))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.QueueDepth))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTransition("a", "b", "c")
		m.ObserveEvaluation(time.Now())
		m.IncDelivery("t", "ok")
		m.IncAlert("info", "x")
		m.SetQueueDepth(1)
		m.IncDropped()
		m.IncRecheck("valid")
		m.ObserveHTTP("GET", "/health", "200", time.Now())
	})
}
