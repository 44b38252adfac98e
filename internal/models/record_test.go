// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	t.Run("pos with string numbers and defaults", func(t *testing.T) {
		t.Parallel()
		raw := `{"timestamp":"2025-08-13T16:00:01","status":"Active",
			"data":{"sku":"PRD_F_01","barcode":"4792024011348","price":"280.00","weight_g":410}}`
		rec, err := DecodeRecord(SourcePOS, []byte(raw))
		if err != nil {
			t.Fatalf("DecodeRecord: %v", err)
		}
		pos, ok := rec.(*POSRecord)
		if !ok {
			t.Fatalf("got %T, want *POSRecord", rec)
		}
		if pos.StationID != UnknownID {
			t.Errorf("StationID = %q, want %q", pos.StationID, UnknownID)
		}
		if pos.Data.CustomerID != UnknownID {
			t.Errorf("CustomerID = %q, want %q", pos.Data.CustomerID, UnknownID)
		}
		if pos.Data.Price != 280 || pos.Data.WeightG != 410 {
			t.Errorf("Price/WeightG = %v/%v", pos.Data.Price, pos.Data.WeightG)
		}
	})

	t.Run("queue", func(t *testing.T) {
		t.Parallel()
		raw := `{"timestamp":"2025-08-13T16:00:00","station_id":"SCC1","status":"Read Error",
			"duration_seconds":12,"data":{"customer_count":7,"average_dwell_time":310.5}}`
		rec, err := DecodeRecord(SourceQueue, []byte(raw))
		if err != nil {
			t.Fatalf("DecodeRecord: %v", err)
		}
		q := rec.(*QueueRecord)
		if q.Data.CustomerCount != 7 || q.Data.AverageDwellTime != 310.5 {
			t.Errorf("data = %+v", q.Data)
		}
		if !q.IsSystemError() {
			t.Error("Read Error status should mark a system error")
		}
		if q.DurationSeconds == nil || *q.DurationSeconds != 12 {
			t.Errorf("DurationSeconds = %v", q.DurationSeconds)
		}
	})

	t.Run("inventory", func(t *testing.T) {
		t.Parallel()
		raw := `{"timestamp":"2025-08-13T16:05:00","data":{"PRD_F_01":10,"PRD_F_02":"4"}}`
		rec, err := DecodeRecord(SourceInventory, []byte(raw))
		if err != nil {
			t.Fatalf("DecodeRecord: %v", err)
		}
		inv := rec.(*InventoryRecord)
		if inv.Data["PRD_F_01"] != 10 || inv.Data["PRD_F_02"] != 4 {
			t.Errorf("data = %v", inv.Data)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeRecord(SourceType("camera"), []byte(`{}`))
		if !errors.Is(err, ErrUnknownSource) {
			t.Errorf("err = %v, want ErrUnknownSource", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		if _, err := DecodeRecord(SourceRFID, []byte(`{"timestamp":`)); err == nil {
			t.Error("expected error for truncated json")
		}
	})
}

func TestSourceForDataset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dataset string
		want    SourceType
		ok      bool
	}{
		{"POS_Transactions", SourcePOS, true},
		{"RFID_data", SourceRFID, true},
		{"Queue_monitor", SourceQueue, true},
		{"Product_recognism", SourceRecognition, true},
		{"Current_inventory_data", SourceInventory, true},
		{"customer_data", "", false},
	}
	for _, tt := range tests {
		got, ok := SourceForDataset(tt.dataset)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SourceForDataset(%q) = %q,%v want %q,%v", tt.dataset, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		ok     bool
		minute int
	}{
		{"2025-08-13T16:07:41", true, 7},
		{"2025-08-13T16:07:41.123456", true, 7},
		{"2025-08-13T16:07:41Z", true, 7},
		{"2025-08-13T16:07:41+02:00", true, 7},
		{"2025-08-13 16:07:41", true, 7},
		{"yesterday", false, 0},
		{"", false, 0},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.Minute() != tt.minute {
			t.Errorf("ParseTimestamp(%q) minute = %d, want %d", tt.in, got.Minute(), tt.minute)
		}
	}

	fallback := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if got, ok := ParseTimestampOr("garbage", fallback); ok || !got.Equal(fallback) {
		t.Errorf("ParseTimestampOr fallback = %v,%v", got, ok)
	}
}

func TestFloorToInterval(t *testing.T) {
	t.Parallel()

	in := time.Date(2025, 8, 13, 16, 17, 41, 500, time.Local)
	got := FloorToInterval(in, 10*time.Minute)
	if got.Format(BucketLayout) != "2025-08-13T16:10:00" {
		t.Errorf("FloorToInterval = %s", got.Format(BucketLayout))
	}
}

func TestAnomalyWireShape(t *testing.T) {
	t.Parallel()

	a := NewAnomaly("2025-08-13T16:00:01", &ScannerAvoidance{StationID: "SCC1", ProductSKU: "PRD_F_01"})
	if !strings.HasPrefix(a.EventID, "E") || len(a.EventID) != 9 {
		t.Errorf("EventID = %q, want E + 8 hex", a.EventID)
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"event_name":"Scanner Avoidance"`,
		`"station_id":"SCC1"`,
		`"customer_id":null`,
		`"product_sku":"PRD_F_01"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("%s missing %s", s, want)
		}
	}

	back, err := ParseAnomaly(data)
	if err != nil {
		t.Fatalf("ParseAnomaly: %v", err)
	}
	if back.Name() != EventScannerAvoidance || back.EventData.Station() != "SCC1" {
		t.Errorf("ParseAnomaly round trip = %+v", back.EventData)
	}
}

func TestParseAnomalyUnknownName(t *testing.T) {
	t.Parallel()

	_, err := ParseAnomaly([]byte(`{"timestamp":"x","event_id":"E1","event_data":{"event_name":"Spill"}}`))
	if err == nil {
		t.Error("expected error for unknown event name")
	}
}
