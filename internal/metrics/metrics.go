// Package metrics exposes Prometheus collectors for the site discovery tool.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	vhostsScannedTotal         *prometheus.CounterVec
	vhostsRetainedTotal        *prometheus.CounterVec
	sitesDiscovered            prometheus.Gauge
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	lastSuccessTimestamp       prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitedTotal           prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		vhostsScannedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitediscovery_vhosts_scanned_total",
				Help: "Total number of virtual hosts read from configuration, labeled by source.",
			},
			[]string{"source"},
		)

		vhostsRetainedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitediscovery_vhosts_retained_total",
				Help: "Total number of virtual hosts kept after filtering, labeled by source.",
			},
			[]string{"source"},
		)

		sitesDiscovered = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitediscovery_sites",
				Help: "Number of sites reported by the most recent successful run.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitediscovery_runs_total",
				Help: "Total number of discovery runs, labeled by status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitediscovery_run_duration_seconds",
				Help:    "Histogram of discovery run durations.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		)

		lastSuccessTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitediscovery_last_success_timestamp_seconds",
				Help: "Unix time of the most recent successful run.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitediscovery_http_rate_limited_total",
				Help: "Total number of discovery requests rejected by the rate limiter.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile dumps the default registry in the text exposition format, for
// the node exporter textfile collector.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveSource records how many virtual hosts one source produced and kept.
func ObserveSource(source string, scanned, retained int) {
	Init()
	vhostsScannedTotal.WithLabelValues(source).Add(float64(scanned))
	vhostsRetainedTotal.WithLabelValues(source).Add(float64(retained))
}

// ObserveRun records the outcome of a discovery run.
func ObserveRun(status string, sites int, duration time.Duration, finished time.Time) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
	if status == StatusSuccess {
		sitesDiscovered.Set(float64(sites))
		lastSuccessTimestamp.Set(float64(finished.Unix()))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimited increments the rate limiter rejection counter.
func ObserveRateLimited() {
	Init()
	rateLimitedTotal.Inc()
}
