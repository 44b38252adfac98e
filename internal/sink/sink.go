// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package sink writes detected anomalies to the append-only anomaly log and
// suppresses duplicates before they reach it.
package sink

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

// Publisher forwards accepted anomalies to downstream consumers such as the
// event bus. Publish failures are logged; they never reject an anomaly that
// is already in the log.
type Publisher interface {
	Publish(ctx context.Context, a *models.Anomaly) error
	Name() string
}

// Sink is the streaming anomaly sink: dedup, append to the log, then fan
// out to publishers.
type Sink struct {
	writer     *Writer
	dedup      *Deduplicator
	publishers []Publisher
	now        func() time.Time
}

// New creates a sink. dedup may be nil to disable duplicate suppression.
func New(w *Writer, dedup *Deduplicator, publishers ...Publisher) *Sink {
	return &Sink{
		writer:     w,
		dedup:      dedup,
		publishers: publishers,
		now:        time.Now,
	}
}

// Emit writes a if its key is new. It returns false for duplicates.
func (s *Sink) Emit(ctx context.Context, a *models.Anomaly) (bool, error) {
	if s.dedup != nil && !s.dedup.Admit(a, s.now()) {
		logging.Debug().Str("event_name", string(a.Name())).Str("timestamp", a.Timestamp).
			Msg("duplicate anomaly suppressed")
		return false, nil
	}

	if err := s.writer.Write(a); err != nil {
		metrics.SinkWriteErrors.Inc()
		return false, err
	}

	logging.Info().
		Str("event_id", a.EventID).
		Str("event_name", string(a.Name())).
		Str("station_id", a.EventData.Station()).
		Str("timestamp", a.Timestamp).
		Msg("anomaly detected")

	for _, p := range s.publishers {
		if err := p.Publish(ctx, a); err != nil {
			logging.Warn().Err(err).Str("publisher", p.Name()).Str("event_id", a.EventID).
				Msg("failed to publish anomaly")
		}
	}
	return true, nil
}

// Sweep expires remembered dedup keys.
func (s *Sink) Sweep(now time.Time) int {
	if s.dedup == nil {
		return 0
	}
	return s.dedup.Sweep(now)
}

// Written returns the number of lines in the anomaly log.
func (s *Sink) Written() int64 { return s.writer.Lines() }

// Close closes the anomaly log.
func (s *Sink) Close() error { return s.writer.Close() }

// Collector gathers anomalies in memory for batch runs, dropping
// duplicates. The result is written once at the end of the run.
type Collector struct {
	mu    sync.Mutex
	dedup *Deduplicator
	items []*models.Anomaly
	total int
}

// NewCollector creates a collector with an unbounded dedup set.
func NewCollector() *Collector {
	return &Collector{dedup: NewDeduplicator(cache.Unbounded)}
}

// Emit keeps a unless an anomaly with the same key was already kept.
func (c *Collector) Emit(_ context.Context, a *models.Anomaly) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if !c.dedup.Admit(a, time.Time{}) {
		return false, nil
	}
	c.items = append(c.items, a)
	return true, nil
}

// Received returns how many anomalies were offered, duplicates included.
func (c *Collector) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Sorted returns the kept anomalies ordered by timestamp. Ties keep
// emission order.
func (c *Collector) Sorted() []*models.Anomaly {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Anomaly, len(c.items))
	copy(out, c.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// CountByName tallies anomalies per event name.
func CountByName(anomalies []*models.Anomaly) map[models.EventName]int {
	counts := make(map[models.EventName]int)
	for _, a := range anomalies {
		counts[a.Name()]++
	}
	return counts
}
