// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package websocket pushes detected anomalies to dashboards as they happen.

The Hub subscribes to the event bus like any other consumer and fans each
anomaly out to every connected client:

	eventbus ──► Hub.Consume ──► broadcast ──┬─► Client 1
	                                         ├─► Client 2
	                                         └─► Client N

Each client runs two goroutines. readPump answers application-level pings
and detects disconnects; writePump serializes outgoing messages and sends
protocol pings every pingPeriod.

Message types:

  - anomaly: Data is the anomaly record as written to the JSONL log
  - stats: Data is a periodic counter snapshot supplied by the caller
  - ping / pong: client keepalive

Slow clients whose send buffer is full are dropped rather than allowed to
stall the broadcast.
*/
package websocket
