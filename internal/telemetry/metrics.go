package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds service collectors
type Metrics struct {
	Reconciliations  *prometheus.CounterVec
	WebhookRejected  *prometheus.CounterVec
	Reminders        *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates collectors and registers them in reg
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Payment reconciliations by provider, trigger and outcome.",
		}, []string{"provider", "trigger", "outcome"}),
		WebhookRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_rejected_total",
			Help:      "Rejected webhook notifications by reason.",
		}, []string{"reason"}),
		Reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_processed_total",
			Help:      "Processed due reminders by result.",
		}, []string{"result"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Payment provider call duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "op"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Reconciliations,
		m.WebhookRejected,
		m.Reminders,
		m.ProviderDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveProvider records duration of provider call started at start
func (m *Metrics) ObserveProvider(provider, op string, start time.Time) {
	m.ProviderDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

// Handler returns /metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
