// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Record statuses that mark a sensor or terminal fault.
const (
	StatusReadError   = "Read Error"
	StatusSystemCrash = "System Crash"
)

// UnknownID fills station and customer ids absent from the payload.
const UnknownID = "Unknown"

// ErrUnknownSource is returned by DecodeRecord for an unrecognized source.
var ErrUnknownSource = errors.New("unknown source type")

// Record is one typed sensor reading. Implementations are the five
// *Record structs in this file.
type Record interface {
	Source() SourceType
	Meta() *Header
}

// Header carries the fields common to every source.
type Header struct {
	Timestamp       string     `json:"timestamp"`
	StationID       string     `json:"station_id"`
	Status          string     `json:"status,omitempty"`
	DurationSeconds *FlexFloat `json:"duration_seconds,omitempty"`
}

// Meta returns the header. Promoted to every record type.
func (h *Header) Meta() *Header { return h }

// IsSystemError reports whether Status marks a fault.
func (h *Header) IsSystemError() bool {
	return h.Status == StatusReadError || h.Status == StatusSystemCrash
}

// CorrelationKey joins timestamp and station the way POS, RFID and
// recognition readings are matched: "<timestamp>_<station_id>".
func (h *Header) CorrelationKey() string {
	return CorrelationKey(h.Timestamp, h.StationID)
}

// CorrelationKey builds the cross-source match key.
func CorrelationKey(timestamp, stationID string) string {
	return timestamp + "_" + stationID
}

// POSData is a scanned checkout line.
type POSData struct {
	CustomerID string    `json:"customer_id"`
	SKU        string    `json:"sku"`
	Barcode    string    `json:"barcode"`
	Price      FlexFloat `json:"price"`
	WeightG    FlexFloat `json:"weight_g"`
}

// POSRecord is a point-of-sale transaction.
type POSRecord struct {
	Header
	Data POSData `json:"data"`
}

// Source implements Record.
func (*POSRecord) Source() SourceType { return SourcePOS }

// RFIDData is one tag read.
type RFIDData struct {
	SKU      string `json:"sku"`
	Location string `json:"location"`
	EPC      string `json:"epc,omitempty"`
}

// RFIDRecord is an RFID reader event.
type RFIDRecord struct {
	Header
	Data RFIDData `json:"data"`
}

// Source implements Record.
func (*RFIDRecord) Source() SourceType { return SourceRFID }

// QueueData is a queue camera sample.
type QueueData struct {
	CustomerCount    FlexInt   `json:"customer_count"`
	AverageDwellTime FlexFloat `json:"average_dwell_time"`
}

// QueueRecord is a queue monitoring sample.
type QueueRecord struct {
	Header
	Data QueueData `json:"data"`
}

// Source implements Record.
func (*QueueRecord) Source() SourceType { return SourceQueue }

// RecognitionData is a vision model prediction at the scanner.
type RecognitionData struct {
	PredictedProduct string     `json:"predicted_product"`
	Accuracy         *FlexFloat `json:"accuracy,omitempty"`
}

// RecognitionRecord is a product recognition event.
type RecognitionRecord struct {
	Header
	Data RecognitionData `json:"data"`
}

// Source implements Record.
func (*RecognitionRecord) Source() SourceType { return SourceRecognition }

// InventoryRecord is a shelf snapshot: SKU to on-hand quantity.
type InventoryRecord struct {
	Header
	Data map[string]FlexInt `json:"data"`
}

// Source implements Record.
func (*InventoryRecord) Source() SourceType { return SourceInventory }

// DecodeRecord parses one JSON object as a record of the given source and
// fills defaults for missing station and customer ids.
func DecodeRecord(src SourceType, raw []byte) (Record, error) {
	var rec Record
	switch src {
	case SourcePOS:
		rec = &POSRecord{}
	case SourceRFID:
		rec = &RFIDRecord{}
	case SourceQueue:
		rec = &QueueRecord{}
	case SourceRecognition:
		rec = &RecognitionRecord{}
	case SourceInventory:
		rec = &InventoryRecord{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}

	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", src, err)
	}
	Normalize(rec)
	return rec, nil
}

// Normalize applies the defaults readers rely on.
func Normalize(rec Record) {
	h := rec.Meta()
	if h.StationID == "" {
		h.StationID = UnknownID
	}
	if pos, ok := rec.(*POSRecord); ok && pos.Data.CustomerID == "" {
		pos.Data.CustomerID = UnknownID
	}
}

// FlexFloat decodes a JSON number, a numeric string, or null.
// Unparseable strings decode to zero.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			v = 0
		}
		*f = FlexFloat(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", b, err)
	}
	*f = FlexFloat(v)
	return nil
}

// FlexInt is FlexFloat truncated to an integer.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (i *FlexInt) UnmarshalJSON(b []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = FlexInt(int(f))
	return nil
}
