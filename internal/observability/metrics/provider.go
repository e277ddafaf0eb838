// Package metrics provides custom Prometheus metrics for the contactsync services.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics contains all Prometheus metrics related to the contact
// provider API client.
type ProviderMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RetriesTotal     prometheus.Counter
	RateLimitWaits   prometheus.Counter
	QuotaWaits       prometheus.Counter
	InFlightRequests prometheus.Gauge
	RequestDuration  prometheus.Histogram
	registry         *prometheus.Registry
}

// NewProviderMetrics creates a new instance of ProviderMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewProviderMetrics(registry *prometheus.Registry) (*ProviderMetrics, error) {
	m := &ProviderMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register provider metrics: %w", err)
	}
	return m, nil
}

func (m *ProviderMetrics) initMetrics() {
	m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_api_requests_total",
		Help: "Total number of provider API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	m.RetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provider_api_retries_total",
		Help: "Total number of retried provider API requests",
	})

	m.RateLimitWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provider_api_rate_limit_waits_total",
		Help: "Total number of waits caused by remote-reported rate limit exhaustion",
	})

	m.QuotaWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provider_api_quota_waits_total",
		Help: "Total number of waits caused by the local quota windows",
	})

	m.InFlightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "provider_api_in_flight_requests",
		Help: "Current number of in-flight provider API requests",
	})

	m.RequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "provider_api_request_duration_seconds",
		Help:    "Latency of provider API requests in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
}

// ObserveRequest records a completed request with its endpoint, status and duration.
func (m *ProviderMetrics) ObserveRequest(endpoint, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.Observe(duration.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *ProviderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.RetriesTotal.Describe(ch)
	m.RateLimitWaits.Describe(ch)
	m.QuotaWaits.Describe(ch)
	m.InFlightRequests.Describe(ch)
	m.RequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ProviderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.RetriesTotal.Collect(ch)
	m.RateLimitWaits.Collect(ch)
	m.QuotaWaits.Collect(ch)
	m.InFlightRequests.Collect(ch)
	m.RequestDuration.Collect(ch)
}
