// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package supervisor runs stream mode under a suture v4 supervisor tree.

	RootSupervisor ("sentinel")
	├── IngestSupervisor ("ingest-layer")
	│   └── IngestService (TCP or Kafka source)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── RunnerService (event bus)
	│   ├── RunnerService (websocket hub, if the server is enabled)
	│   └── TickerService (stats push)
	├── DataSupervisor ("data-layer")
	│   ├── TickerService (janitor)
	│   └── TickerService (store GC, if the store is enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed messaging service restarts without interrupting ingestion.
Supervisor events are logged through sutureslog over the zerolog slog
bridge. The ingest service is not restarted once its source stops; the
command drains the bus and then cancels the tree.
*/
package supervisor
