// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xenlk/xenlk/pkg/metrics"
)

// lockMetrics is the Prometheus implementation of metrics.LockMetrics.
type lockMetrics struct {
	acquires        *prometheus.CounterVec
	acquireDuration *prometheus.HistogramVec
	steals          *prometheus.CounterVec
	releases        *prometheus.CounterVec
}

// NewLockMetrics creates a new Prometheus-backed LockMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLockMetrics() metrics.LockMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &lockMetrics{
		acquires: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xenlk_lock_acquires_total",
				Help: "Total number of acquire calls by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		acquireDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "xenlk_lock_acquire_duration_seconds",
				Help: "Duration of acquire calls, including backoff and quiet periods",
				Buckets: []float64{
					0.0001, // uncontended local filesystem
					0.001,
					0.01,
					0.05, // NFS round trips
					0.1,
					0.5, // one backoff
					1,
					5,
					10, // retry storms and post-steal quiet periods
					60,
				},
			},
			[]string{"mode"},
		),
		steals: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xenlk_lock_steals_total",
				Help: "Total number of forced lock removals by kind",
			},
			[]string{"kind"}, // "exclusive", "writer", "reader"
		),
		releases: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xenlk_lock_releases_total",
				Help: "Total number of release calls by mode",
			},
			[]string{"mode"},
		),
	}
}

func (m *lockMetrics) RecordAcquire(mode, outcome string, duration time.Duration) {
	m.acquires.WithLabelValues(mode, outcome).Inc()
	m.acquireDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func (m *lockMetrics) RecordSteal(kind string) {
	m.steals.WithLabelValues(kind).Inc()
}

func (m *lockMetrics) RecordRelease(mode string) {
	m.releases.WithLabelValues(mode).Inc()
}
