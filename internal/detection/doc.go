// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package detection implements the incremental loss-prevention rule engine.
// Each store record is evaluated on arrival against bounded correlation
// caches rather than by re-scanning history.
//
// Detection Architecture:
//
//	Record -> Engine.Process -> cache updates -> rules -> Sink
//	                                                       |
//	                                                       v
//	                                          anomaly log / event bus
//
// Dispatch Order (fixed per source):
//   - RFID: RFID cache update, Scanner Avoidance
//   - POS: sales count and POS cache update, Barcode Switching,
//     Weight Discrepancy, System Error
//   - Queue: Long Queue, Extended Wait, System Error
//   - Recognition: recognition cache update, System Error
//   - Inventory: Inventory Discrepancy
//
// Modes:
// ModeStreaming bounds every cache by age and size and sweeps them every
// CleanupEvery records. ModeBatch keeps everything for a finite data set and
// summarizes recurring failures once at Flush.
//
// The Engine is the only owner of correlation state. Process serializes
// records, so transports may call it from any goroutine.
package detection
