// Package metrics exposes Prometheus collectors for the client layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichepulse",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API calls issued.",
		},
		[]string{"method", "path", "status"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nichepulse",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of API calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichepulse",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits.",
		},
		[]string{"view"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichepulse",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses.",
		},
		[]string{"view"},
	)

	unlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nichepulse",
			Subsystem: "keywords",
			Name:      "unlocks_total",
			Help:      "Total number of unlock attempts.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(apiRequests, apiDuration, cacheHits, cacheMisses, unlocks)
}

// ObserveAPIRequest records a completed API call.
func ObserveAPIRequest(method, path string, status int, elapsed time.Duration) {
	apiRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	apiDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// CacheHit records a cache hit for the named view.
func CacheHit(view string) {
	cacheHits.WithLabelValues(view).Inc()
}

// CacheMiss records a cache miss for the named view.
func CacheMiss(view string) {
	cacheMisses.WithLabelValues(view).Inc()
}

// ObserveUnlock records the outcome of an unlock attempt.
func ObserveUnlock(status string) {
	unlocks.WithLabelValues(status).Inc()
}
