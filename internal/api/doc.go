// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package api serves the stream-mode HTTP surface with chi.

Routes:

	GET   /health                      liveness and uptime
	GET   /metrics                     Prometheus exposition
	GET   /ws                          live anomaly feed (websocket)
	GET   /api/v1/anomalies            stored anomalies, newest first
	GET   /api/v1/anomalies/{id}       one stored anomaly
	GET   /api/v1/stats                ingest, engine and store counters
	GET   /api/v1/detectors            rule state and counters
	PATCH /api/v1/detectors/{rule}     enable, disable or retune a rule

/api/v1 is rate limited per client IP with httprate. CORS applies
globally so preflight requests reach it. Responses share one envelope:

	{"status":"success","data":...,"metadata":{"timestamp":"..."}}
	{"status":"error","error":{"code":"NOT_FOUND","message":"..."}}
*/
package api
