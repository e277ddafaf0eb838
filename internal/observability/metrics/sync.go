package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics contains all Prometheus metrics related to sync orchestration
// and communications import.
type SyncMetrics struct {
	RunsTotal        *prometheus.CounterVec
	ClientsProcessed prometheus.Counter
	ContactsCreated  prometheus.Counter
	ContactsUpdated  prometheus.Counter
	ContactsSkipped  prometheus.Counter
	ClientErrors     prometheus.Counter
	CommsImported    *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	registry         *prometheus.Registry
}

// NewSyncMetrics creates a new instance of SyncMetrics.
func NewSyncMetrics(registry *prometheus.Registry) (*SyncMetrics, error) {
	m := &SyncMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register sync metrics: %w", err)
	}
	return m, nil
}

func (m *SyncMetrics) initMetrics() {
	m.RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Total number of sync runs by mode and outcome",
	}, []string{"mode", "outcome"})

	m.ClientsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_clients_processed_total",
		Help: "Total number of client records processed by the orchestrator",
	})

	m.ContactsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_contacts_created_total",
		Help: "Total number of remote contacts created",
	})

	m.ContactsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_contacts_updated_total",
		Help: "Total number of remote contacts updated",
	})

	m.ContactsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_contacts_skipped_total",
		Help: "Total number of contacts skipped by validation or dry-run",
	})

	m.ClientErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_client_errors_total",
		Help: "Total number of per-client sync failures",
	})

	m.CommsImported = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comms_imported_total",
		Help: "Total number of communication events imported by type and action",
	}, []string{"type", "action"})

	m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Duration of sync runs in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
}

// ObserveRun records a completed sync run.
func (m *SyncMetrics) ObserveRun(mode, outcome string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(mode, outcome).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RunsTotal.Describe(ch)
	m.ClientsProcessed.Describe(ch)
	m.ContactsCreated.Describe(ch)
	m.ContactsUpdated.Describe(ch)
	m.ContactsSkipped.Describe(ch)
	m.ClientErrors.Describe(ch)
	m.CommsImported.Describe(ch)
	m.RunDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RunsTotal.Collect(ch)
	m.ClientsProcessed.Collect(ch)
	m.ContactsCreated.Collect(ch)
	m.ContactsUpdated.Collect(ch)
	m.ContactsSkipped.Collect(ch)
	m.ClientErrors.Collect(ch)
	m.CommsImported.Collect(ch)
	m.RunDuration.Collect(ch)
}
