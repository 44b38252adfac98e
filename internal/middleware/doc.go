// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package middleware provides chi-compatible HTTP middleware for the query API.

  - RequestID: propagates or generates X-Request-ID and attaches a request
    scoped zerolog logger to the context
  - AccessLog: one debug line per request with status and latency
  - PrometheusMetrics: request counters, latency histogram and in-flight gauge,
    labeled by chi route pattern so path parameters do not explode cardinality

Typical stack:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
