// Package metric provides Prometheus metrics for snapkeep.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snapkeep"

// Snapshot outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	SnapshotsTotal   *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram
	BackupsRetained  prometheus.Gauge
	BackupSizeBytes  prometheus.Gauge

	RecoveryRecords prometheus.Gauge
	ManifestErrors  prometheus.Counter
	RecoveryPurged  prometheus.Counter
}

// NewRegistry creates a registry with all snapkeep collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot ticks by outcome.",
		}, []string{"status"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Time to serialize, write and rotate one snapshot.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		BackupsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backups_retained",
			Help:      "Backups left in the autosave directory after the last rotation.",
		}),
		BackupSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_size_bytes",
			Help:      "Size of the most recent backup.",
		}),
		RecoveryRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recovery_records",
			Help:      "Recovery records found by the last manifest scan.",
		}),
		ManifestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_errors_total",
			Help:      "Recovery manifests skipped because they could not be parsed.",
		}),
		RecoveryPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_purged_total",
			Help:      "Recovery manifests removed by age-based cleanup.",
		}),
	}

	reg.MustRegister(
		r.SnapshotsTotal,
		r.SnapshotDuration,
		r.BackupsRetained,
		r.BackupSizeBytes,
		r.RecoveryRecords,
		r.ManifestErrors,
		r.RecoveryPurged,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving the registry in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveSnapshot records the outcome of one snapshot attempt.
func (r *Registry) ObserveSnapshot(status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.SnapshotsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		r.SnapshotDuration.Observe(elapsed.Seconds())
	}
}

// SetBackups records the rotation result.
func (r *Registry) SetBackups(retained int, newestSize int64) {
	if r == nil {
		return
	}
	r.BackupsRetained.Set(float64(retained))
	r.BackupSizeBytes.Set(float64(newestSize))
}

// SetRecoveryRecords records the size of the last manifest scan.
func (r *Registry) SetRecoveryRecords(n int) {
	if r == nil {
		return
	}
	r.RecoveryRecords.Set(float64(n))
}

// IncManifestErrors counts one unparsable manifest.
func (r *Registry) IncManifestErrors() {
	if r == nil {
		return
	}
	r.ManifestErrors.Inc()
}

// AddRecoveryPurged counts manifests removed by cleanup.
func (r *Registry) AddRecoveryPurged(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.RecoveryPurged.Add(float64(n))
}
