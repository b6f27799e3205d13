// Package metrics provides Prometheus metrics for the token data pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamFetchesTotal is a counter of upstream fetch attempts per source.
	UpstreamFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "Total number of upstream fetch attempts",
		},
		[]string{"source", "status"},
	)

	// UpstreamFetchDuration is a histogram of upstream fetch durations.
	UpstreamFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Duration of upstream fetch calls including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// UpstreamRetriesTotal is a counter of retried upstream requests.
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_retries_total",
			Help: "Total number of retried upstream requests",
		},
		[]string{"source"},
	)

	// SourceHealth is a gauge of the health status of token sources.
	SourceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_health",
			Help: "Health status of token sources (1=healthy, 0=unhealthy)",
		},
		[]string{"source"},
	)

	// ReplenishCycleDuration is a histogram of full replenishment cycle durations.
	ReplenishCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replenish_cycle_duration_seconds",
			Help:    "Duration of full replenishment cycles (fetch, merge, write, broadcast)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// SnapshotTokens is a gauge of the number of tokens in the current snapshot.
	SnapshotTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_tokens",
			Help: "Number of reconciled tokens in the current snapshot",
		},
	)

	// DeltasBroadcastTotal is a counter of deltas broadcast to subscribers.
	DeltasBroadcastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltas_broadcast_total",
			Help: "Total number of significant deltas broadcast",
		},
		[]string{"kind"},
	)

	// WebSocketClients is a gauge of connected websocket clients.
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	// CacheOperationsTotal is a counter of cache operations by outcome.
	CacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init initializes the Prometheus metrics registry.
func Init() {
	prometheus.MustRegister(
		UpstreamFetchesTotal,
		UpstreamFetchDuration,
		UpstreamRetriesTotal,
		SourceHealth,
		ReplenishCycleDuration,
		SnapshotTokens,
		DeltasBroadcastTotal,
		WebSocketClients,
		CacheOperationsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordFetch records an upstream fetch attempt and its duration.
func RecordFetch(source, status string, duration time.Duration) {
	UpstreamFetchesTotal.WithLabelValues(source, status).Inc()
	UpstreamFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordRetry records a retried upstream request.
func RecordRetry(source string) {
	UpstreamRetriesTotal.WithLabelValues(source).Inc()
}

// RecordSourceHealth records the health status of a source.
func RecordSourceHealth(source string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	SourceHealth.WithLabelValues(source).Set(val)
}

// RecordCycle records a completed replenishment cycle.
func RecordCycle(duration time.Duration, tokens int) {
	ReplenishCycleDuration.Observe(duration.Seconds())
	SnapshotTokens.Set(float64(tokens))
}

// RecordDelta records a broadcast delta by kind ("price" or "volume").
func RecordDelta(kind string) {
	DeltasBroadcastTotal.WithLabelValues(kind).Inc()
}

// RecordCacheOp records a cache operation outcome ("hit", "miss", "error", "ok").
func RecordCacheOp(operation, outcome string) {
	CacheOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
