// Package telemetry provides Prometheus metrics for the monitoring core.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	sweepsTotal         prometheus.Counter
	sweepDuration       prometheus.Observer
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter
	queryFailures       prometheus.Counter
	watchedEntries      prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_notify_sweeps_total", Help: "Number of completed poll sweeps"})
		sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "twitch_notify_sweep_duration_seconds", Help: "Sweep duration seconds", Buckets: prometheus.DefBuckets})
		notificationsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_notify_notifications_sent_total", Help: "Live notifications delivered"})
		notificationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_notify_notifications_failed_total", Help: "Live notification deliveries that failed"})
		queryFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_notify_query_failures_total", Help: "Per-entry stream queries that failed"})
		watchedEntries = promauto.NewGauge(prometheus.GaugeOpts{Name: "twitch_notify_watched_entries", Help: "Watch entries seen by the last sweep"})
	})
}

func ObserveSweep(d time.Duration) {
	if sweepsTotal != nil {
		sweepsTotal.Inc()
	}
	if sweepDuration != nil {
		sweepDuration.Observe(d.Seconds())
	}
}

func IncNotificationSent() {
	if notificationsSent != nil {
		notificationsSent.Inc()
	}
}

func IncNotificationFailed() {
	if notificationsFailed != nil {
		notificationsFailed.Inc()
	}
}

func IncQueryFailed() {
	if queryFailures != nil {
		queryFailures.Inc()
	}
}

func SetWatchedEntries(n int) {
	if watchedEntries != nil {
		watchedEntries.Set(float64(n))
	}
}

// Serve exposes /metrics on addr. Blocks until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
