// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/catalog"
	"github.com/tomtom215/sentinel/internal/models"
)

var testBase = time.Date(2025, 8, 13, 16, 0, 0, 0, time.Local)

// ts formats testBase plus offset seconds the way sensors stamp records.
func ts(offset int) string {
	return testBase.Add(time.Duration(offset) * time.Second).Format(models.BucketLayout)
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Product{
		{SKU: "A1", Price: 5.00, Weight: 480, Quantity: 10},
		{SKU: "PRD_F_01", Barcode: "4792024011348", Price: 280, Weight: 410, Quantity: 10},
		{SKU: "CHEAP", Barcode: "222", Price: 1, Weight: 20, Quantity: 10},
	})
}

func newTestEngine(t *testing.T, mode Mode, sink Sink) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.Mode = mode
	e := NewEngine(cfg, testCatalog(), sink)
	e.SetClock(func() time.Time { return testBase })
	return e
}

func process(t *testing.T, e *Engine, rec models.Record) []*models.Anomaly {
	t.Helper()
	out, err := e.Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("Process(%T): %v", rec, err)
	}
	return out
}

func names(anomalies []*models.Anomaly) []models.EventName {
	out := make([]models.EventName, len(anomalies))
	for i, a := range anomalies {
		out[i] = a.Name()
	}
	return out
}

func posRecord(at, station, sku, barcode string, price, weight float64) *models.POSRecord {
	return &models.POSRecord{
		Header: models.Header{Timestamp: at, StationID: station},
		Data: models.POSData{
			CustomerID: "C001",
			SKU:        sku,
			Barcode:    barcode,
			Price:      models.FlexFloat(price),
			WeightG:    models.FlexFloat(weight),
		},
	}
}

func rfidRecord(at, station, sku, location string) *models.RFIDRecord {
	return &models.RFIDRecord{
		Header: models.Header{Timestamp: at, StationID: station},
		Data:   models.RFIDData{SKU: sku, Location: location},
	}
}

func recognitionRecord(at, station, predicted string) *models.RecognitionRecord {
	return &models.RecognitionRecord{
		Header: models.Header{Timestamp: at, StationID: station},
		Data:   models.RecognitionData{PredictedProduct: predicted},
	}
}

func queueRecord(at, station string, customers int, dwell float64) *models.QueueRecord {
	return &models.QueueRecord{
		Header: models.Header{Timestamp: at, StationID: station},
		Data: models.QueueData{
			CustomerCount:    models.FlexInt(customers),
			AverageDwellTime: models.FlexFloat(dwell),
		},
	}
}

func inventoryRecord(at string, stock map[string]int) *models.InventoryRecord {
	data := make(map[string]models.FlexInt, len(stock))
	for k, v := range stock {
		data[k] = models.FlexInt(v)
	}
	return &models.InventoryRecord{Header: models.Header{Timestamp: at}, Data: data}
}

// keySink drops anomalies whose name and timestamp were already seen.
type keySink struct {
	mu   sync.Mutex
	seen map[string]bool
	all  []*models.Anomaly
}

func newKeySink() *keySink { return &keySink{seen: make(map[string]bool)} }

func (s *keySink) Emit(_ context.Context, a *models.Anomaly) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(a.Name()) + "|" + a.EventData.Station() + "|" + a.Timestamp
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	s.all = append(s.all, a)
	return true, nil
}

func (s *keySink) Sweep(time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.seen)
	s.seen = make(map[string]bool)
	return n
}

// failingDetector always errors; used to prove rule failures stay local.
type failingDetector struct {
	ruleType RuleType
}

func (f *failingDetector) Type() RuleType { return f.ruleType }
func (f *failingDetector) Check(context.Context, models.Record, *State) ([]*models.Anomaly, error) {
	return nil, ErrUnexpectedRecord
}
func (f *failingDetector) Configure(json.RawMessage) error { return nil }
func (f *failingDetector) Enabled() bool                   { return true }
func (f *failingDetector) SetEnabled(bool)                 {}
