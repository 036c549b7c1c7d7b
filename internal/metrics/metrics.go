package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics verification workflow and notification counters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	Deliveries         *prometheus.CounterVec
	Alerts             *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	DroppedJobs        prometheus.Counter
	RecheckResults     *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers all metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartshop_verification_transitions_total",
			Help: "Committed company verification transitions",
		}, []string{"from", "to", "actor"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartshop_verification_evaluation_duration_seconds",
			Help:    "Duration of automated evaluation including the state commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartshop_notification_deliveries_total",
			Help: "Notification jobs by template and final outcome",
		}, []string{"template", "outcome"}),
		Alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartshop_crm_alerts_total",
			Help: "CRM alerts recorded",
		}, []string{"severity", "type"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "smartshop_notification_queue_depth",
			Help: "Notification jobs waiting for a worker",
		}),
		DroppedJobs: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartshop_notification_dropped_total",
			Help: "Notification jobs dropped because the queue was full",
		}),
		RecheckResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartshop_partner_recheck_total",
			Help: "Periodic VAT re-check results",
		}, []string{"result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartshop_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartshop_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) IncTransition(from, to, actor string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, actor).Inc()
}

// ObserveEvaluation call with time.Now() taken at the start of the evaluation
func (m *Metrics) ObserveEvaluation(start time.Time) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncDelivery(template, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(template, outcome).Inc()
}

func (m *Metrics) IncAlert(severity, alertType string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(severity, alertType).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.DroppedJobs.Inc()
}

func (m *Metrics) IncRecheck(result string) {
	if m == nil {
		return
	}
	m.RecheckResults.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
