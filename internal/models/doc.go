// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package models defines the records Sentinel reads and the anomalies it writes.

Records:

  - POSRecord: a scanned item at a station (SKU, barcode, price, weight)
  - RFIDRecord: a tag read at a named location such as OUT_SCAN_AREA
  - RecognitionRecord: the camera's predicted product and its accuracy
  - QueueRecord: customer count and average dwell time for a station
  - InventoryRecord: a store-wide SKU to quantity snapshot

Every record carries a Header with the timestamp, station and status. Records from different sources describe the same checkout
moment when their CorrelationKey (timestamp and station) matches.

Anomalies:

Anomaly pairs a generated event id with a Detail, one concrete type per
EventName. Anomalies marshal to the JSON line format of the anomaly log;
ParseAnomaly reverses it using the event_name discriminator inside
event_data.

Timestamps stay in their wire form (2006-01-02T15:04:05) and compare
lexically; ParseTimestamp converts when arithmetic is needed.
*/
package models
