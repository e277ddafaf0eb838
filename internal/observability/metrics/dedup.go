package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DedupMetrics contains all Prometheus metrics related to duplicate detection.
type DedupMetrics struct {
	ChecksTotal     *prometheus.CounterVec
	CacheEvictions  prometheus.Counter
	SnapshotLoads   prometheus.Counter
	IndexedContacts prometheus.Gauge
	registry        *prometheus.Registry
}

// NewDedupMetrics creates a new instance of DedupMetrics.
func NewDedupMetrics(registry *prometheus.Registry) (*DedupMetrics, error) {
	m := &DedupMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dedup metrics: %w", err)
	}
	return m, nil
}

func (m *DedupMetrics) initMetrics() {
	m.ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedup_checks_total",
		Help: "Total number of duplicate checks by outcome and match reason",
	}, []string{"outcome", "reason"})

	m.CacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedup_cache_evictions_total",
		Help: "Total number of stale cached contact references evicted during self-healing",
	})

	m.SnapshotLoads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedup_snapshot_loads_total",
		Help: "Total number of full remote contact snapshot loads",
	})

	m.IndexedContacts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dedup_indexed_contacts",
		Help: "Current number of remote contacts held in the local indexes",
	})
}

// Describe implements the prometheus.Collector interface.
func (m *DedupMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ChecksTotal.Describe(ch)
	m.CacheEvictions.Describe(ch)
	m.SnapshotLoads.Describe(ch)
	m.IndexedContacts.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DedupMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ChecksTotal.Collect(ch)
	m.CacheEvictions.Collect(ch)
	m.SnapshotLoads.Collect(ch)
	m.IndexedContacts.Collect(ch)
}
