// Package metrics exposes Prometheus collectors for the clip service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	clipsTotal           *prometheus.CounterVec
	stageDurationSeconds *prometheus.HistogramVec
	relayImagesTotal     *prometheus.CounterVec
	storageRetriesTotal  prometheus.Counter
	activePipelines      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		clipsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipvault_clips_total",
				Help: "Total number of clip requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clipvault_stage_duration_seconds",
				Help:    "Histogram of pipeline stage latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"stage"},
		)

		relayImagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipvault_relay_images_total",
				Help: "Total images processed by the relay, labeled by status.",
			},
			[]string{"status"},
		)

		storageRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "clipvault_storage_conflict_retries_total",
				Help: "Total parent document write conflicts that triggered a retry.",
			},
		)

		activePipelines = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "clipvault_active_pipelines",
				Help: "Number of clip pipelines currently running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveClip increments the clip counter for the given outcome.
func ObserveClip(outcome string) {
	clipsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records the latency of one pipeline stage.
func ObserveStage(stage string, duration time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveRelay records per-image relay outcomes.
func ObserveRelay(status string, count int) {
	if count > 0 {
		relayImagesTotal.WithLabelValues(status).Add(float64(count))
	}
}

// ObserveStorageRetry counts one conflict-triggered retry.
func ObserveStorageRetry() {
	storageRetriesTotal.Inc()
}

// IncActivePipelines increments the running pipeline gauge.
func IncActivePipelines() {
	activePipelines.Inc()
}

// DecActivePipelines decrements the running pipeline gauge.
func DecActivePipelines() {
	activePipelines.Dec()
}
