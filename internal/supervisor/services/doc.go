// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package services adapts Sentinel components to suture.Service.

Each wrapper translates a component lifecycle into Serve(ctx) error and
names itself through fmt.Stringer so supervisor events identify it:

  - HTTPServerService: bind, Serve / Shutdown
  - RunnerService: anything with Run(ctx) error (event bus, websocket hub)
  - IngestService: drives an ingest.Source to completion, without restart
  - TickerService: runs a function on an interval (janitor, store GC, stats push)
*/
package services
