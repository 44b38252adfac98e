// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package models

// SourceType identifies which store sensor produced a record.
type SourceType string

const (
	SourcePOS         SourceType = "pos"
	SourceRFID        SourceType = "rfid"
	SourceQueue       SourceType = "queue"
	SourceRecognition SourceType = "product_recognition"
	SourceInventory   SourceType = "inventory"
)

// Sources lists every source type in evaluation order for offline runs.
var Sources = []SourceType{SourceRFID, SourcePOS, SourceQueue, SourceRecognition, SourceInventory}

// datasetSources maps stream dataset names to source types. The table is
// fixed; the stream server publishes exactly these names.
var datasetSources = map[string]SourceType{
	"POS_Transactions":       SourcePOS,
	"RFID_data":              SourceRFID,
	"Queue_monitor":          SourceQueue,
	"Product_recognism":      SourceRecognition,
	"Current_inventory_data": SourceInventory,
}

// SourceForDataset resolves a stream dataset name. ok is false for names
// outside the table.
func SourceForDataset(dataset string) (SourceType, bool) {
	st, ok := datasetSources[dataset]
	return st, ok
}

// DatasetFiles names the JSONL file holding each source in a data
// directory for offline runs.
var DatasetFiles = map[SourceType]string{
	SourceRFID:        "rfid_readings.jsonl",
	SourcePOS:         "pos_transactions.jsonl",
	SourceQueue:       "queue_monitoring.jsonl",
	SourceRecognition: "product_recognition.jsonl",
	SourceInventory:   "inventory_snapshots.jsonl",
}

// Valid reports whether st is one of the five known sources.
func (st SourceType) Valid() bool {
	switch st {
	case SourcePOS, SourceRFID, SourceQueue, SourceRecognition, SourceInventory:
		return true
	}
	return false
}
