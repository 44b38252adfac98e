// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package batch runs the detection engine over recorded datasets.

A data directory holds one JSON-Lines file per source plus the product
catalog:

	rfid_readings.jsonl
	pos_transactions.jsonl
	queue_monitoring.jsonl
	product_recognition.jsonl
	inventory_snapshots.jsonl
	products_list.csv

The engine runs in batch mode: correlation caches are primed with every
RFID, recognition and POS record first, retention is unbounded, and
recurring failures are summarized once at the end. Results are
deduplicated, sorted by timestamp and written to
detection_events_<YYYYMMDD_HHMMSS>.jsonl.
*/
package batch
