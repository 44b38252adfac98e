// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection Metrics
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_records_processed_total",
			Help: "Total number of store records evaluated by the engine",
		},
		[]string{"source"},
	)

	RecordProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_record_processing_duration_seconds",
			Help:    "Time spent evaluating one record",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)

	AnomaliesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_anomalies_emitted_total",
			Help: "Total number of anomalies written to the sink",
		},
		[]string{"event_name"},
	)

	AnomaliesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_anomalies_suppressed_total",
			Help: "Total number of duplicate anomalies dropped by the sink",
		},
		[]string{"event_name"},
	)

	RuleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_rule_errors_total",
			Help: "Total number of rule evaluation failures",
		},
		[]string{"rule"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_cache_entries",
			Help: "Live entries per correlation cache",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_cache_evictions_total",
			Help: "Entries removed by the cache janitor",
		},
		[]string{"cache"},
	)

	// Ingest Metrics
	StreamFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_stream_frames_total",
			Help: "Frames read from the event stream",
		},
		[]string{"kind"}, // "banner", "envelope", "malformed", "unknown_dataset"
	)

	StreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_stream_connected",
			Help: "1 while connected to the event stream",
		},
	)

	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_stream_reconnects_total",
			Help: "Reconnect attempts to the event stream",
		},
	)

	// Output Metrics
	SinkWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_sink_write_errors_total",
			Help: "Failed anomaly log writes",
		},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_store_operations_total",
			Help: "Anomaly store operations",
		},
		[]string{"operation", "result"},
	)

	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_bus_published_total",
			Help: "Messages published to the internal event bus",
		},
		[]string{"topic", "result"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_notifications_total",
			Help: "Anomaly notifications sent to external systems",
		},
		[]string{"notifier", "result"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// WebSocket Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordRecord records one evaluated record.
func RecordRecord(source string, duration time.Duration) {
	RecordsProcessed.WithLabelValues(source).Inc()
	RecordProcessingDuration.Observe(duration.Seconds())
}

// RecordAnomaly counts an anomaly as emitted or suppressed.
func RecordAnomaly(eventName string, emitted bool) {
	if emitted {
		AnomaliesEmitted.WithLabelValues(eventName).Inc()
		return
	}
	AnomaliesSuppressed.WithLabelValues(eventName).Inc()
}

// RecordRuleError counts a failed rule evaluation.
func RecordRuleError(rule string) {
	RuleErrors.WithLabelValues(rule).Inc()
}

// UpdateCacheSizes sets the per-cache entry gauges.
func UpdateCacheSizes(sizes map[string]int) {
	for name, n := range sizes {
		CacheEntries.WithLabelValues(name).Set(float64(n))
	}
}

// RecordEvictions counts janitor removals for one cache.
func RecordEvictions(cache string, n int) {
	if n > 0 {
		CacheEvictions.WithLabelValues(cache).Add(float64(n))
	}
}

// RecordFrame counts one stream frame by kind.
func RecordFrame(kind string) {
	StreamFrames.WithLabelValues(kind).Inc()
}

// SetStreamConnected flips the connection gauge.
func SetStreamConnected(connected bool) {
	if connected {
		StreamConnected.Set(1)
		return
	}
	StreamConnected.Set(0)
}

// RecordStoreOperation counts a store call.
func RecordStoreOperation(operation string, err error) {
	StoreOperations.WithLabelValues(operation, result(err)).Inc()
}

// RecordBusPublish counts a bus publish.
func RecordBusPublish(topic string, err error) {
	BusPublished.WithLabelValues(topic, result(err)).Inc()
}

// RecordNotification counts an outbound notification.
func RecordNotification(notifier string, err error) {
	Notifications.WithLabelValues(notifier, result(err)).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCircuitBreakerTransition records a breaker state change. States
// follow gobreaker's numbering: 0 closed, 1 half-open, 2 open.
func RecordCircuitBreakerTransition(name, from, to string, toState int) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(toState))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
