package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Restore request metrics
	RestoresTotal   *prometheus.CounterVec
	RestoreDuration *prometheus.HistogramVec
	RestoreErrors   *prometheus.CounterVec

	// State machine metrics
	StateVersion     prometheus.Gauge
	RestoresInFlight prometheus.Gauge

	// Shard progress metrics
	ShardsScheduled *prometheus.CounterVec
	ShardsCompleted *prometheus.CounterVec

	// Repository metrics
	ManifestFetches     *prometheus.CounterVec
	ManifestCacheHits   *prometheus.CounterVec
	ManifestCacheMisses *prometheus.CounterVec

	// Reaper metrics
	ReapedRestores *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RestoresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_restores_total",
				Help: "Total number of restore requests accepted",
			},
			[]string{"repository", "partial"},
		),

		RestoreDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snaprestore_restore_plan_duration_seconds",
				Help:    "Duration of restore plan building and submission",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"repository"},
		),

		RestoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_restore_errors_total",
				Help: "Total number of rejected restore requests",
			},
			[]string{"repository", "error_code"},
		),

		StateVersion: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaprestore_cluster_state_version",
				Help: "Current cluster state version",
			},
		),

		RestoresInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "snaprestore_restores_in_flight",
				Help: "Number of restore operations currently tracked in cluster state",
			},
		),

		ShardsScheduled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_shards_scheduled_total",
				Help: "Total number of shards scheduled for snapshot recovery",
			},
			[]string{"repository"},
		),

		ShardsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_shards_completed_total",
				Help: "Total number of shard recoveries that reached a terminal state",
			},
			[]string{"state"},
		),

		ManifestFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_manifest_fetches_total",
				Help: "Total number of snapshot manifest reads from repositories",
			},
			[]string{"repository", "kind"},
		),

		ManifestCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_manifest_cache_hits_total",
				Help: "Total number of manifest cache hits",
			},
			[]string{"kind"},
		),

		ManifestCacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_manifest_cache_misses_total",
				Help: "Total number of manifest cache misses",
			},
			[]string{"kind"},
		),

		ReapedRestores: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snaprestore_reaped_restores_total",
				Help: "Total number of completed restores removed from cluster state",
			},
			[]string{"state"},
		),
	}
}

// RecordRestore records an accepted restore request
func (m *Metrics) RecordRestore(repository string, partial bool, duration float64) {
	label := "false"
	if partial {
		label = "true"
	}
	m.RestoresTotal.WithLabelValues(repository, label).Inc()
	m.RestoreDuration.WithLabelValues(repository).Observe(duration)
}

// RecordRestoreError records a rejected restore request
func (m *Metrics) RecordRestoreError(repository, errorCode string) {
	m.RestoreErrors.WithLabelValues(repository, errorCode).Inc()
}

// UpdateStateVersion updates the current cluster state version gauge
func (m *Metrics) UpdateStateVersion(version int64) {
	m.StateVersion.Set(float64(version))
}

// UpdateRestoresInFlight updates the tracked restore count
func (m *Metrics) UpdateRestoresInFlight(count int) {
	m.RestoresInFlight.Set(float64(count))
}

// RecordShardsScheduled records shards scheduled for recovery
func (m *Metrics) RecordShardsScheduled(repository string, count int) {
	m.ShardsScheduled.WithLabelValues(repository).Add(float64(count))
}

// RecordShardCompleted records one shard reaching a terminal state
func (m *Metrics) RecordShardCompleted(state string) {
	m.ShardsCompleted.WithLabelValues(state).Inc()
}

// RecordManifestFetch records one repository metadata read
func (m *Metrics) RecordManifestFetch(repository, kind string) {
	m.ManifestFetches.WithLabelValues(repository, kind).Inc()
}

// RecordManifestCacheHit records a manifest cache hit
func (m *Metrics) RecordManifestCacheHit(kind string) {
	m.ManifestCacheHits.WithLabelValues(kind).Inc()
}

// RecordManifestCacheMiss records a manifest cache miss
func (m *Metrics) RecordManifestCacheMiss(kind string) {
	m.ManifestCacheMisses.WithLabelValues(kind).Inc()
}

// RecordReapedRestore records one completed restore removed by the reaper
func (m *Metrics) RecordReapedRestore(state string) {
	m.ReapedRestores.WithLabelValues(state).Inc()
}
