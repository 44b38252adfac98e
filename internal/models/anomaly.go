// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package models

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventName is the wire name written in event_data.event_name.
type EventName string

const (
	EventScannerAvoidance  EventName = "Scanner Avoidance"
	EventBarcodeSwitching  EventName = "Barcode Switching"
	EventWeightDiscrepancy EventName = "Weight Discrepancies"
	EventSystemError       EventName = "System Error"
	EventRecurringFailures EventName = "Recurring System Failures"
	EventLongQueue         EventName = "Long Queue Length"
	EventLongWait          EventName = "Long Wait Time"
	EventInventory         EventName = "Inventory Discrepancy"
)

// EventNames lists every anomaly kind.
var EventNames = []EventName{
	EventScannerAvoidance,
	EventBarcodeSwitching,
	EventWeightDiscrepancy,
	EventSystemError,
	EventRecurringFailures,
	EventLongQueue,
	EventLongWait,
	EventInventory,
}

// Severity levels used by recurring failures and wait priority.
const (
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Inventory discrepancy classifications.
const (
	InventoryShrinkage = "Shrinkage"
	InventoryOverage   = "Overage"
)

// Anomaly is one flagged event as written to the anomaly log:
//
//	{"timestamp": "...", "event_id": "E1a2b3c4d", "event_data": {"event_name": "...", ...}}
//
// Anomalies are never mutated after NewAnomaly returns.
type Anomaly struct {
	Timestamp string `json:"timestamp"`
	EventID   string `json:"event_id"`
	EventData Detail `json:"event_data"`
}

// Detail is the event-specific payload.
type Detail interface {
	Name() EventName
	Station() string
	setName()
}

// NewAnomaly stamps the detail with its event name and assigns an id.
func NewAnomaly(timestamp string, d Detail) *Anomaly {
	d.setName()
	return &Anomaly{
		Timestamp: timestamp,
		EventID:   NewEventID(),
		EventData: d,
	}
}

// NewEventID returns "E" followed by the first eight hex digits of a v4 UUID.
func NewEventID() string {
	return "E" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Name is shorthand for EventData.Name().
func (a *Anomaly) Name() EventName { return a.EventData.Name() }

// ScannerAvoidance flags an item leaving the scan area unrung.
type ScannerAvoidance struct {
	EventName  EventName `json:"event_name"`
	StationID  string    `json:"station_id"`
	CustomerID *string   `json:"customer_id"`
	ProductSKU string    `json:"product_sku"`
}

func (d *ScannerAvoidance) Name() EventName { return EventScannerAvoidance }
func (d *ScannerAvoidance) Station() string { return d.StationID }
func (d *ScannerAvoidance) setName()        { d.EventName = d.Name() }

// BarcodeSwitching flags a cheaper barcode scanned for a dearer item.
type BarcodeSwitching struct {
	EventName       EventName `json:"event_name"`
	StationID       string    `json:"station_id"`
	CustomerID      string    `json:"customer_id"`
	ActualSKU       string    `json:"actual_sku"`
	ScannedBarcode  string    `json:"scanned_barcode"`
	ScannedPrice    float64   `json:"scanned_price"`
	ActualPrice     float64   `json:"actual_price"`
	PriceDifference float64   `json:"price_difference"`
}

func (d *BarcodeSwitching) Name() EventName { return EventBarcodeSwitching }
func (d *BarcodeSwitching) Station() string { return d.StationID }
func (d *BarcodeSwitching) setName()        { d.EventName = d.Name() }

// WeightDiscrepancy flags a scale reading off the catalog weight.
type WeightDiscrepancy struct {
	EventName      EventName `json:"event_name"`
	StationID      string    `json:"station_id"`
	CustomerID     string    `json:"customer_id"`
	ProductSKU     string    `json:"product_sku"`
	ExpectedWeight float64   `json:"expected_weight"`
	ActualWeight   float64   `json:"actual_weight"`
	Difference     float64   `json:"difference"`
}

func (d *WeightDiscrepancy) Name() EventName { return EventWeightDiscrepancy }
func (d *WeightDiscrepancy) Station() string { return d.StationID }
func (d *WeightDiscrepancy) setName()        { d.EventName = d.Name() }

// SystemError is one faulted record.
type SystemError struct {
	EventName       EventName `json:"event_name"`
	StationID       string    `json:"station_id"`
	ErrorType       string    `json:"error_type"`
	DurationSeconds *float64  `json:"duration_seconds"`
}

func (d *SystemError) Name() EventName { return EventSystemError }
func (d *SystemError) Station() string { return d.StationID }
func (d *SystemError) setName()        { d.EventName = d.Name() }

// RecurringFailures summarizes repeated faults within one interval bucket.
type RecurringFailures struct {
	EventName       EventName `json:"event_name"`
	StationID       string    `json:"station_id"`
	ErrorCount      int       `json:"error_count"`
	IntervalMinutes int       `json:"interval_minutes"`
	Severity        string    `json:"severity"`
}

func (d *RecurringFailures) Name() EventName { return EventRecurringFailures }
func (d *RecurringFailures) Station() string { return d.StationID }
func (d *RecurringFailures) setName()        { d.EventName = d.Name() }

// LongQueue flags a queue that stayed over the customer threshold.
type LongQueue struct {
	EventName            EventName `json:"event_name"`
	StationID            string    `json:"station_id"`
	NumOfCustomers       int       `json:"num_of_customers"`
	QueueDurationSeconds float64   `json:"queue_duration_seconds"`
	AverageDwellTime     float64   `json:"average_dwell_time"`
}

func (d *LongQueue) Name() EventName { return EventLongQueue }
func (d *LongQueue) Station() string { return d.StationID }
func (d *LongQueue) setName()        { d.EventName = d.Name() }

// LongWait flags an average dwell time over the threshold.
type LongWait struct {
	EventName       EventName `json:"event_name"`
	StationID       string    `json:"station_id"`
	WaitTimeSeconds float64   `json:"wait_time_seconds"`
	CustomerCount   int       `json:"customer_count"`
	Priority        string    `json:"priority"`
}

func (d *LongWait) Name() EventName { return EventLongWait }
func (d *LongWait) Station() string { return d.StationID }
func (d *LongWait) setName()        { d.EventName = d.Name() }

// InventoryDiscrepancy compares on-hand stock to catalog minus sales.
// It has no station; field names follow the stock report format.
type InventoryDiscrepancy struct {
	EventName         EventName `json:"event_name"`
	SKU               string    `json:"SKU"`
	ExpectedInventory int       `json:"Expected_Inventory"`
	ActualInventory   int       `json:"Actual_Inventory"`
	Discrepancy       int       `json:"Discrepancy"`
	Type              string    `json:"Type"`
	UnitsSold         int       `json:"Units_Sold"`
}

func (d *InventoryDiscrepancy) Name() EventName { return EventInventory }
func (d *InventoryDiscrepancy) Station() string { return "" }
func (d *InventoryDiscrepancy) setName()        { d.EventName = d.Name() }

// ParseAnomaly decodes one anomaly log line back into typed form.
func ParseAnomaly(data []byte) (*Anomaly, error) {
	var raw struct {
		Timestamp string          `json:"timestamp"`
		EventID   string          `json:"event_id"`
		EventData json.RawMessage `json:"event_data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode anomaly: %w", err)
	}

	var head struct {
		EventName EventName `json:"event_name"`
	}
	if err := json.Unmarshal(raw.EventData, &head); err != nil {
		return nil, fmt.Errorf("decode anomaly event_data: %w", err)
	}

	d, err := newDetail(head.EventName)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw.EventData, d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.EventName, err)
	}
	return &Anomaly{Timestamp: raw.Timestamp, EventID: raw.EventID, EventData: d}, nil
}

func newDetail(name EventName) (Detail, error) {
	switch name {
	case EventScannerAvoidance:
		return &ScannerAvoidance{}, nil
	case EventBarcodeSwitching:
		return &BarcodeSwitching{}, nil
	case EventWeightDiscrepancy:
		return &WeightDiscrepancy{}, nil
	case EventSystemError:
		return &SystemError{}, nil
	case EventRecurringFailures:
		return &RecurringFailures{}, nil
	case EventLongQueue:
		return &LongQueue{}, nil
	case EventLongWait:
		return &LongWait{}, nil
	case EventInventory:
		return &InventoryDiscrepancy{}, nil
	default:
		return nil, fmt.Errorf("unknown event name %q", name)
	}
}
