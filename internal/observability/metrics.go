// Package observability provides metrics and monitoring capabilities for contactsync.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"

	"github.com/caselink/contactsync/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Provider *metrics.ProviderMetrics
	Dedup    *metrics.DedupMetrics
	Sync     *metrics.SyncMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	providerMetrics, err := metrics.NewProviderMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider metrics: %w", err)
	}

	dedupMetrics, err := metrics.NewDedupMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup metrics: %w", err)
	}

	syncMetrics, err := metrics.NewSyncMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Provider: providerMetrics,
		Dedup:    dedupMetrics,
		Sync:     syncMetrics,
	}, nil
}

// Handler returns an http.Handler exposing the registered metrics in
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
