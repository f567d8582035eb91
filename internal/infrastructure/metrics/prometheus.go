package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every billing metric.
const DefaultNamespace = "billing"

// PrometheusMetrics records billing outcomes in its own Prometheus registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	WebhookEvents   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec
	Reconciliations *prometheus.CounterVec
	Cancellations   *prometheus.CounterVec
	PortalSessions  *prometheus.CounterVec
	UserLookups     *prometheus.CounterVec
}

// NewPrometheusMetrics creates the billing collectors plus the Go and
// process collectors.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: reg,
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Total number of webhook deliveries by type and outcome",
		}, []string{"event_type", "outcome"}),
		WebhookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Duration of webhook processing in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Total number of current-plan reads by reconciled state",
		}, []string{"state"}),
		Cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Total number of cancellation requests by outcome",
		}, []string{"outcome"}),
		PortalSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "portal_sessions_total",
			Help:      "Total number of billing portal requests by outcome",
		}, []string{"outcome"}),
		UserLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_lookups_total",
			Help:      "Total number of customer to user lookups by method",
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.WebhookDuration,
		m.Reconciliations,
		m.Cancellations,
		m.PortalSessions,
		m.UserLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) WebhookProcessed(eventType, outcome string, duration time.Duration) {
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	m.WebhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) Reconciled(state string) {
	m.Reconciliations.WithLabelValues(state).Inc()
}

func (m *PrometheusMetrics) CancellationCompleted(outcome string) {
	m.Cancellations.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) PortalOpened(outcome string) {
	m.PortalSessions.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) UserLookup(method string) {
	m.UserLookups.WithLabelValues(method).Inc()
}
