// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package metrics provides Prometheus instrumentation for Sentinel.

All collectors are registered with the default registry through promauto and
served by the HTTP API at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

Detection:
  - sentinel_records_processed_total: records evaluated (counter)
    Labels: source
  - sentinel_record_processing_duration_seconds: per-record latency (histogram)
  - sentinel_anomalies_emitted_total: anomalies written (counter)
    Labels: event_name
  - sentinel_anomalies_suppressed_total: duplicates dropped (counter)
    Labels: event_name
  - sentinel_rule_errors_total: rule failures (counter)
    Labels: rule
  - sentinel_cache_entries: live correlation entries (gauge)
    Labels: cache
  - sentinel_cache_evictions_total: entries removed by the janitor (counter)
    Labels: cache

Ingest:
  - sentinel_stream_frames_total: frames read (counter)
    Labels: kind (banner, envelope, malformed, unknown_dataset)
  - sentinel_stream_connected: 1 while a stream connection is open (gauge)
  - sentinel_stream_reconnects_total: reconnect attempts (counter)

Outputs:
  - sentinel_sink_write_errors_total, sentinel_store_operations_total,
    sentinel_bus_published_total, sentinel_notifications_total

HTTP and WebSocket:
  - http_requests_total, http_request_duration_seconds, http_requests_in_flight
  - websocket_connections_active, websocket_messages_sent_total

Circuit breakers:
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_state_transitions_total

# Usage

	start := time.Now()
	metrics.RecordRecord("pos", time.Since(start))
	metrics.RecordAnomaly("Scanner Avoidance", true)
*/
package metrics
