// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"time"

	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/catalog"
	"github.com/tomtom215/sentinel/internal/models"
)

// State is the correlation context every rule reads. It is owned by one
// Engine and only mutated while the engine lock is held.
type State struct {
	Mode    Mode
	Catalog *catalog.Catalog

	// POSBySKU maps a scanned SKU to the customer who bought it.
	POSBySKU *cache.Window[string]

	// RFIDByKey maps "<timestamp>_<station>" to the SKU the reader saw.
	RFIDByKey *cache.Window[string]

	// RecognitionByKey maps "<timestamp>_<station>" to the predicted SKU.
	RecognitionByKey *cache.Window[string]

	// Sales counts POS transactions per SKU since start. Never reset.
	Sales map[string]int

	// Queues holds the long-queue run per station.
	Queues map[string]*QueueState

	// Errors counts system errors per station and interval bucket.
	Errors *cache.BucketCounter

	// Now is the processing clock. Tests replace it.
	Now func() time.Time
}

// QueueState tracks one station's continuous above-threshold run.
type QueueState struct {
	Running bool
	Start   time.Time

	// Flagged holds run starts already reported, keyed by startKey.
	Flagged map[string]struct{}
}

// NewState builds an empty context. Batch mode ignores policy and keeps
// every entry.
func NewState(mode Mode, cat *catalog.Catalog, policy cache.Policy) *State {
	if mode == ModeBatch {
		policy = cache.Unbounded
	}
	if cat == nil {
		cat = catalog.New(nil)
	}
	return &State{
		Mode:             mode,
		Catalog:          cat,
		POSBySKU:         cache.NewWindow[string](policy),
		RFIDByKey:        cache.NewWindow[string](policy),
		RecognitionByKey: cache.NewWindow[string](policy),
		Sales:            make(map[string]int),
		Queues:           make(map[string]*QueueState),
		Errors:           cache.NewBucketCounter(policy.MaxAge),
		Now:              time.Now,
	}
}

// arrival is the cache timestamp for a record: its own time, or now when
// the timestamp does not parse.
func (s *State) arrival(ts string) time.Time {
	t, _ := models.ParseTimestampOr(ts, s.Now())
	return t
}

// eventTime resolves a record time for time-dependent aggregation.
// Streaming substitutes now for unparseable timestamps; batch reports
// ok=false so the caller skips the aggregation.
func (s *State) eventTime(ts string) (time.Time, bool) {
	if t, ok := models.ParseTimestamp(ts); ok {
		return t, true
	}
	if s.Mode == ModeBatch {
		return time.Time{}, false
	}
	return s.Now(), true
}

// Queue returns the run state for station, creating it on first use.
func (s *State) Queue(station string) *QueueState {
	q, ok := s.Queues[station]
	if !ok {
		q = &QueueState{Flagged: make(map[string]struct{})}
		s.Queues[station] = q
	}
	return q
}

// UnitsSold returns the cumulative POS count for sku.
func (s *State) UnitsSold(sku string) int {
	return s.Sales[sku]
}

// CacheSizes reports the live entry count of each correlation structure.
func (s *State) CacheSizes() map[string]int {
	flagged := 0
	for _, q := range s.Queues {
		flagged += len(q.Flagged)
	}
	return map[string]int{
		"pos":          s.POSBySKU.Len(),
		"rfid":         s.RFIDByKey.Len(),
		"recognition":  s.RecognitionByKey.Len(),
		"error_bucket": s.Errors.Len(),
		"queue_flag":   flagged,
	}
}

func startKey(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
