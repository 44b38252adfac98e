// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"testing"

	"github.com/tomtom215/sentinel/internal/models"
)

func TestScannerAvoidance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prior    []models.Record
		rfid     *models.RFIDRecord
		wantHits int
	}{
		{
			name:     "exit without sale",
			rfid:     rfidRecord(ts(0), "SCC1", "PRD_F_01", "OUT_SCAN_AREA"),
			wantHits: 1,
		},
		{
			name:     "exit after sale of same sku",
			prior:    []models.Record{posRecord(ts(0), "SCC1", "PRD_F_01", "4792024011348", 280, 410)},
			rfid:     rfidRecord(ts(5), "SCC1", "PRD_F_01", "OUT_SCAN_AREA"),
			wantHits: 0,
		},
		{
			name:     "exit after sale of other sku",
			prior:    []models.Record{posRecord(ts(0), "SCC1", "A1", "A1", 5, 480)},
			rfid:     rfidRecord(ts(5), "SCC1", "PRD_F_01", "OUT_SCAN_AREA"),
			wantHits: 1,
		},
		{
			name:     "still in scan area",
			rfid:     rfidRecord(ts(0), "SCC1", "PRD_F_01", "IN_SCAN_AREA"),
			wantHits: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, ModeStreaming, nil)
			for _, rec := range tt.prior {
				process(t, e, rec)
			}
			got := process(t, e, tt.rfid)
			if len(got) != tt.wantHits {
				t.Fatalf("got %d anomalies %v, want %d", len(got), names(got), tt.wantHits)
			}
			if tt.wantHits == 0 {
				return
			}
			d := got[0].EventData.(*models.ScannerAvoidance)
			if d.ProductSKU != tt.rfid.Data.SKU || d.StationID != "SCC1" || d.CustomerID != nil {
				t.Errorf("detail = %+v", d)
			}
		})
	}
}

func TestBarcodeSwitchFallbackAndWeight(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)
	got := process(t, e, posRecord(ts(0), "SCC1", "A1", "B1", 2.00, 500))

	if len(got) != 2 {
		t.Fatalf("got %v, want barcode switching and weight discrepancy", names(got))
	}

	bs, ok := got[0].EventData.(*models.BarcodeSwitching)
	if !ok {
		t.Fatalf("first anomaly = %T, want *BarcodeSwitching", got[0].EventData)
	}
	if bs.ActualSKU != "A1" || bs.ScannedBarcode != "B1" || bs.ScannedPrice != 2 ||
		bs.ActualPrice != 5 || bs.PriceDifference != 3 || bs.CustomerID != "C001" {
		t.Errorf("barcode detail = %+v", bs)
	}

	wd, ok := got[1].EventData.(*models.WeightDiscrepancy)
	if !ok {
		t.Fatalf("second anomaly = %T, want *WeightDiscrepancy", got[1].EventData)
	}
	if wd.ExpectedWeight != 480 || wd.ActualWeight != 500 || wd.Difference != 20 {
		t.Errorf("weight detail = %+v", wd)
	}
}

func TestBarcodeSwitchCorrelatedPath(t *testing.T) {
	t.Parallel()

	t.Run("cheap barcode for recognized dear item", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, ModeStreaming, nil)
		process(t, e, recognitionRecord(ts(0), "SCC1", "PRD_F_01"))
		process(t, e, rfidRecord(ts(0), "SCC1", "PRD_F_01", "IN_SCAN_AREA"))

		got := process(t, e, posRecord(ts(0), "SCC1", "PRD_F_01", "222", 1, 410))
		if len(got) != 1 {
			t.Fatalf("got %v, want one barcode switching event", names(got))
		}
		bs := got[0].EventData.(*models.BarcodeSwitching)
		if bs.ActualSKU != "PRD_F_01" || bs.ScannedPrice != 1 || bs.ActualPrice != 280 || bs.PriceDifference != 279 {
			t.Errorf("detail = %+v", bs)
		}
	})

	t.Run("correlation present suppresses fallback", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, ModeStreaming, nil)
		process(t, e, recognitionRecord(ts(0), "SCC1", "CHEAP"))
		process(t, e, rfidRecord(ts(0), "SCC1", "CHEAP", "IN_SCAN_AREA"))

		// sku and barcode disagree, but the correlated prices do not.
		got := process(t, e, posRecord(ts(0), "SCC1", "PRD_F_01", "222", 1, 410))
		if len(got) != 0 {
			t.Errorf("got %v, want none", names(got))
		}
	})

	t.Run("correlation on another station is ignored", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, ModeStreaming, nil)
		process(t, e, recognitionRecord(ts(0), "SCC2", "CHEAP"))
		process(t, e, rfidRecord(ts(0), "SCC2", "CHEAP", "IN_SCAN_AREA"))

		got := process(t, e, posRecord(ts(0), "SCC1", "PRD_F_01", "222", 1, 410))
		if len(got) != 1 || got[0].Name() != models.EventBarcodeSwitching {
			t.Errorf("got %v, want fallback barcode switching", names(got))
		}
	})
}

func TestBarcodeSwitchZeroPriceGuard(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)
	if got := process(t, e, posRecord(ts(0), "SCC1", "UNLISTED", "222", 1, 0)); len(got) != 0 {
		t.Fatalf("got %v, want none for zero-priced sku", names(got))
	}

	if err := e.ConfigureDetector(RuleTypeBarcodeSwitching, []byte(`{"require_positive_sku_price":false}`)); err != nil {
		t.Fatalf("ConfigureDetector: %v", err)
	}
	got := process(t, e, posRecord(ts(1), "SCC1", "UNLISTED", "222", 1, 0))
	if len(got) != 1 {
		t.Fatalf("got %v, want one event once the guard is off", names(got))
	}
	if bs := got[0].EventData.(*models.BarcodeSwitching); bs.PriceDifference != -1 {
		t.Errorf("PriceDifference = %v, want -1", bs.PriceDifference)
	}
}

func TestWeightTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		weight float64
		want   int
	}{
		{480, 0},
		{485, 0},
		{475, 0},
		{485.5, 1},
		{0, 1},
	}
	for _, tt := range tests {
		e := newTestEngine(t, ModeStreaming, nil)
		got := process(t, e, posRecord(ts(0), "SCC1", "A1", "A1", 5, tt.weight))
		if len(got) != tt.want {
			t.Errorf("weight %v: got %v, want %d events", tt.weight, names(got), tt.want)
		}
	}
}

func errorPOS(at, station string) *models.POSRecord {
	p := posRecord(at, station, "PRD_F_01", "4792024011348", 280, 410)
	p.Status = models.StatusReadError
	return p
}

func TestRecurringFailuresFireOnceAtThreshold(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)

	var all []*models.Anomaly
	for i, offset := range []int{0, 60, 120, 130} {
		got := process(t, e, errorPOS(ts(offset), "SCC1"))
		wantLen := 1
		if i == 2 {
			wantLen = 2
		}
		if len(got) != wantLen {
			t.Fatalf("record %d: got %v, want %d anomalies", i, names(got), wantLen)
		}
		all = append(all, got...)
	}

	var recurring []*models.RecurringFailures
	for _, a := range all {
		if d, ok := a.EventData.(*models.RecurringFailures); ok {
			recurring = append(recurring, d)
			if a.Timestamp != "2025-08-13T16:00:00" {
				t.Errorf("recurring timestamp = %q, want bucket start", a.Timestamp)
			}
		}
	}
	if len(recurring) != 1 {
		t.Fatalf("got %d recurring events, want 1", len(recurring))
	}
	if r := recurring[0]; r.ErrorCount != 3 || r.Severity != models.SeverityMedium || r.IntervalMinutes != 10 {
		t.Errorf("recurring detail = %+v", r)
	}

	// A new bucket counts from zero.
	for _, offset := range []int{700, 710} {
		if got := process(t, e, errorPOS(ts(offset), "SCC1")); len(got) != 1 {
			t.Errorf("offset %d: got %v, want only the system error", offset, names(got))
		}
	}
}

func TestRecurringFailuresBatchFlush(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeBatch, nil)
	for i := 0; i < 6; i++ {
		got := process(t, e, errorPOS(ts(i*60), "SCC1"))
		if len(got) != 1 || got[0].Name() != models.EventSystemError {
			t.Fatalf("batch record %d: got %v, want only the system error", i, names(got))
		}
	}
	for i := 0; i < 3; i++ {
		process(t, e, errorPOS(ts(i*60), "SCC2"))
	}
	process(t, e, errorPOS(ts(0), "SCC3"))

	got := e.Flush(context.Background())
	if len(got) != 2 {
		t.Fatalf("Flush = %v, want two recurring summaries", names(got))
	}
	tests := []struct {
		station  string
		count    int
		severity string
	}{
		{"SCC1", 6, models.SeverityHigh},
		{"SCC2", 3, models.SeverityMedium},
	}
	for i, tt := range tests {
		d := got[i].EventData.(*models.RecurringFailures)
		if d.StationID != tt.station || d.ErrorCount != tt.count || d.Severity != tt.severity {
			t.Errorf("summary %d = %+v, want %s/%d/%s", i, d, tt.station, tt.count, tt.severity)
		}
		if got[i].Timestamp != "2025-08-13T16:00:00" {
			t.Errorf("summary %d timestamp = %q", i, got[i].Timestamp)
		}
	}
}

func TestSystemErrorUnparseableTimestamp(t *testing.T) {
	t.Parallel()

	t.Run("streaming falls back to now", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, ModeStreaming, nil)
		var last []*models.Anomaly
		for i := 0; i < 3; i++ {
			last = process(t, e, errorPOS("not-a-time", "SCC9"))
		}
		if len(last) != 2 || last[1].Timestamp != "2025-08-13T16:00:00" {
			t.Errorf("third error = %v, want recurring in the clock's bucket", names(last))
		}
	})

	t.Run("batch skips aggregation", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, ModeBatch, nil)
		for i := 0; i < 3; i++ {
			if got := process(t, e, errorPOS("not-a-time", "SCC9")); len(got) != 1 {
				t.Fatalf("got %v, want the individual system error", names(got))
			}
		}
		if got := e.Flush(context.Background()); len(got) != 0 {
			t.Errorf("Flush = %v, want none", names(got))
		}
	})
}

func TestSystemErrorDurationCarried(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)
	rec := queueRecord(ts(0), "SCC1", 1, 10)
	rec.Status = models.StatusSystemCrash
	dur := models.FlexFloat(42)
	rec.DurationSeconds = &dur

	got := process(t, e, rec)
	if len(got) != 1 {
		t.Fatalf("got %v, want one system error", names(got))
	}
	d := got[0].EventData.(*models.SystemError)
	if d.ErrorType != models.StatusSystemCrash || d.DurationSeconds == nil || *d.DurationSeconds != 42 {
		t.Errorf("detail = %+v", d)
	}
}

func TestLongQueueRuns(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)
	count := func(offsets []int, customers int) int {
		n := 0
		for _, off := range offsets {
			for _, a := range process(t, e, queueRecord(ts(off), "SCC1", customers, 100)) {
				if a.Name() == models.EventLongQueue {
					n++
				}
			}
		}
		return n
	}

	// 150 seconds above threshold: one event.
	if got := count([]int{0, 30, 60, 90, 120, 150}, 7); got != 1 {
		t.Fatalf("first run produced %d events, want 1", got)
	}

	// Dropping to the threshold resets; the next run is reported again.
	if got := count([]int{180}, 5); got != 0 {
		t.Fatalf("reset sample produced %d events", got)
	}
	if got := count([]int{210, 240, 270, 300, 330, 360}, 8); got != 1 {
		t.Fatalf("second run produced %d events, want 1", got)
	}
}

func TestLongQueueResetIgnoresTimestamp(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeBatch, nil)
	samples := []*models.QueueRecord{
		queueRecord(ts(0), "SCC1", 8, 100),
		queueRecord("garbage", "SCC1", 2, 100),
		queueRecord(ts(200), "SCC1", 8, 100),
	}
	for _, rec := range samples {
		for _, a := range process(t, e, rec) {
			if a.Name() == models.EventLongQueue {
				t.Errorf("long queue at %s, want the below-threshold sample to end the run", a.Timestamp)
			}
		}
	}
}

func TestLongQueueDetail(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)
	process(t, e, queueRecord(ts(0), "SCC1", 6, 200))
	if got := process(t, e, queueRecord(ts(119), "SCC1", 6, 200)); len(got) != 0 {
		t.Fatalf("got %v before the duration threshold", names(got))
	}
	got := process(t, e, queueRecord(ts(125), "SCC1", 9, 240))
	if len(got) != 1 {
		t.Fatalf("got %v, want one long queue event", names(got))
	}
	d := got[0].EventData.(*models.LongQueue)
	if d.NumOfCustomers != 9 || d.QueueDurationSeconds != 125 || d.AverageDwellTime != 240 {
		t.Errorf("detail = %+v", d)
	}
	if got[0].Timestamp != ts(125) {
		t.Errorf("timestamp = %q, want %q", got[0].Timestamp, ts(125))
	}
}

func TestExtendedWaitPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		dwell     float64
		customers int
		want      string
	}{
		{"well over but short queue", 500, 3, models.SeverityMedium},
		{"well over and long queue", 500, 6, models.SeverityHigh},
		{"exactly 1.5x is not high", 450, 6, models.SeverityMedium},
		{"just over threshold", 301, 10, models.SeverityMedium},
		{"at threshold", 300, 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, ModeStreaming, nil)
			var waits []*models.LongWait
			for _, a := range process(t, e, queueRecord(ts(0), "SCC1", tt.customers, tt.dwell)) {
				if d, ok := a.EventData.(*models.LongWait); ok {
					waits = append(waits, d)
				}
			}
			if tt.want == "" {
				if len(waits) != 0 {
					t.Errorf("got %d long wait events, want none", len(waits))
				}
				return
			}
			if len(waits) != 1 {
				t.Fatalf("got %d long wait events, want 1", len(waits))
			}
			if waits[0].Priority != tt.want || waits[0].WaitTimeSeconds != tt.dwell || waits[0].CustomerCount != tt.customers {
				t.Errorf("detail = %+v, want priority %s", waits[0], tt.want)
			}
		})
	}
}

func TestInventoryDiscrepancy(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)
	for i := 0; i < 3; i++ {
		process(t, e, posRecord(ts(i), "SCC1", "PRD_F_01", "4792024011348", 280, 410))
	}

	got := process(t, e, inventoryRecord(ts(600), map[string]int{
		"PRD_F_01": 5,  // expected 7
		"A1":       9,  // expected 10, within tolerance
		"CHEAP":    13, // expected 10
	}))
	if len(got) != 2 {
		t.Fatalf("got %v, want two inventory events", names(got))
	}

	tests := []struct {
		sku         string
		expected    int
		actual      int
		discrepancy int
		kind        string
		sold        int
	}{
		{"CHEAP", 10, 13, 3, models.InventoryOverage, 0},
		{"PRD_F_01", 7, 5, 2, models.InventoryShrinkage, 3},
	}
	for i, tt := range tests {
		d := got[i].EventData.(*models.InventoryDiscrepancy)
		if d.SKU != tt.sku || d.ExpectedInventory != tt.expected || d.ActualInventory != tt.actual ||
			d.Discrepancy != tt.discrepancy || d.Type != tt.kind || d.UnitsSold != tt.sold {
			t.Errorf("event %d = %+v", i, d)
		}
	}
}

func TestInventoryMissingTimestamp(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, ModeStreaming, nil)
	got := process(t, e, inventoryRecord("", map[string]int{"A1": 0}))
	if len(got) != 1 || got[0].Timestamp != models.UnknownID {
		t.Fatalf("got %+v, want one event stamped %q", got, models.UnknownID)
	}
}

func TestDetectorConfigure(t *testing.T) {
	t.Parallel()

	d := NewSystemErrorDetector(DefaultSystemErrorConfig())
	if err := d.Configure([]byte(`{"recurring_threshold":5}`)); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if c := d.Config(); c.RecurringThreshold != 5 || c.IntervalMinutes != 10 {
		t.Errorf("config = %+v, want threshold 5 and interval kept", c)
	}

	if err := d.Configure([]byte(`{"interval_minutes":0}`)); err == nil {
		t.Error("expected error for zero interval")
	}
	if c := d.Config(); c.IntervalMinutes != 10 {
		t.Errorf("rejected config was applied: %+v", c)
	}

	if err := d.Configure([]byte(`{`)); err == nil {
		t.Error("expected error for malformed json")
	}
}
