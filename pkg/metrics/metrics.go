// Package metrics exposes Prometheus collectors for rate syncing and serving.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "energyrates"

// Sync outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	syncRuns        *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	fetchDuration   *prometheus.HistogramVec
	ratesWritten    *prometheus.CounterVec
	ratesRejected   *prometheus.CounterVec
	freshnessChecks *prometheus.CounterVec
	staleServed     *prometheus.CounterVec
	refreshesShared *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the metrics registered on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates the collectors and registers them on registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Day syncs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of a day sync including store writes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Duration of a single supplier request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		ratesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rates_written_total",
			Help:      "Rates written to the store.",
		}, []string{"kind"}),
		ratesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rates_rejected_total",
			Help:      "Rates rejected by store validation.",
		}, []string{"kind"}),
		freshnessChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "freshness_decisions_total",
			Help:      "Freshness decisions by kind and reason.",
		}, []string{"kind", "reason"}),
		staleServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_served_total",
			Help:      "Reads answered with stale rates after a refresh timed out.",
		}, []string{"kind"}),
		refreshesShared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_shared_total",
			Help:      "Reads that joined a refresh already in flight.",
		}, []string{"kind"}),
	}
	registerer.MustRegister(
		m.syncRuns,
		m.syncDuration,
		m.fetchDuration,
		m.ratesWritten,
		m.ratesRejected,
		m.freshnessChecks,
		m.staleServed,
		m.refreshesShared,
	)
	return m
}

// SyncFinished records one day sync.
func (m *Metrics) SyncFinished(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(kind, outcome).Inc()
	m.syncDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// FetchObserved records one supplier request.
func (m *Metrics) FetchObserved(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RatesStored records the outcome of a store write.
func (m *Metrics) RatesStored(kind string, written, rejected int) {
	if m == nil {
		return
	}
	m.ratesWritten.WithLabelValues(kind).Add(float64(written))
	m.ratesRejected.WithLabelValues(kind).Add(float64(rejected))
}

// FreshnessDecided records a freshness decision.
func (m *Metrics) FreshnessDecided(kind, reason string) {
	if m == nil {
		return
	}
	m.freshnessChecks.WithLabelValues(kind, reason).Inc()
}

// StaleServed records a read served from stale rows.
func (m *Metrics) StaleServed(kind string) {
	if m == nil {
		return
	}
	m.staleServed.WithLabelValues(kind).Inc()
}

// RefreshShared records a read that waited on another caller's refresh.
func (m *Metrics) RefreshShared(kind string) {
	if m == nil {
		return
	}
	m.refreshesShared.WithLabelValues(kind).Inc()
}
