// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes used as label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRetried   = "retried"
	OutcomeDropped   = "dropped"
)

var (
	requestsTotal         *prometheus.CounterVec
	itemsTotal            *prometheus.CounterVec
	fetchDurationSeconds  *prometheus.HistogramVec
	rateLimitDelaySeconds *prometheus.HistogramVec
	activeFetchWorkers    prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call multiple times.
func Init() {
	once.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinneret_requests_total",
				Help: "Total fetch requests processed, labeled by politeness key and outcome.",
			},
			[]string{"site", "outcome"},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinneret_items_total",
				Help: "Total records flowing out of the pipeline, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spinneret_fetch_duration_seconds",
				Help:    "Histogram of transport fetch latencies, labeled by politeness key.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spinneret_rate_limit_delay_seconds",
				Help:    "Histogram of rate limiter wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		activeFetchWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "spinneret_active_fetch_workers",
				Help: "Number of fetch workers currently holding a request.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records a finished request with its outcome.
func ObserveRequest(site, outcome string, duration time.Duration) {
	if requestsTotal == nil {
		return
	}
	requestsTotal.WithLabelValues(site, outcome).Inc()
	if duration > 0 {
		fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	}
}

// ObserveItem records a record outcome ("scraped", "deduplicated", "failed").
func ObserveItem(outcome string) {
	if itemsTotal == nil {
		return
	}
	itemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records a rate limiter wait.
func ObserveRateLimitDelay(site string, delay time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(site).Observe(delay.Seconds())
}

// WorkerActive adjusts the active fetch worker gauge.
func WorkerActive(delta float64) {
	if activeFetchWorkers == nil {
		return
	}
	activeFetchWorkers.Add(delta)
}
