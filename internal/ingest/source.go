// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package ingest feeds sensor readings into the detection engine.

Two live sources speak the same frame format:

  - TCPSource reads newline-delimited JSON from the store's stream server
    and reconnects with exponential backoff.
  - KafkaSource consumes the same frames from a Kafka topic and commits
    offsets after each frame is handled.

ReadRecords loads a dataset file for offline runs.

Frames are either a one-time banner or an envelope wrapping one reading.
Envelopes naming an unknown dataset are dropped silently; malformed lines
are logged and skipped. A Handler error never stops a source.
*/
package ingest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

// Handler consumes one decoded record and reports how many anomalies it
// produced.
type Handler interface {
	Handle(ctx context.Context, rec models.Record) (int, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec models.Record) (int, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, rec models.Record) (int, error) {
	return f(ctx, rec)
}

// Source is a live record feed. Run blocks until ctx is canceled, the
// event limit is reached, or the source gives up.
type Source interface {
	Run(ctx context.Context, h Handler) error
	Stats() Stats
}

// Stats is a snapshot of source counters.
type Stats struct {
	// Events counts envelopes received, including skipped ones.
	Events int64 `json:"events"`
	// Records counts envelopes decoded and handed to the Handler.
	Records    int64 `json:"records"`
	Anomalies  int64 `json:"anomalies"`
	Banners    int64 `json:"banners"`
	Skipped    int64 `json:"skipped"`
	Malformed  int64 `json:"malformed"`
	Failed     int64 `json:"failed"`
	Reconnects int64 `json:"reconnects"`
}

// DetectionRate is anomalies per hundred events.
func (s Stats) DetectionRate() float64 {
	if s.Events == 0 {
		return 0
	}
	return float64(s.Anomalies) / float64(s.Events) * 100
}

// counters is the live form of Stats.
type counters struct {
	events, records, anomalies, banners   atomic.Int64
	skipped, malformed, failed, reconnect atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Events:     c.events.Load(),
		Records:    c.records.Load(),
		Anomalies:  c.anomalies.Load(),
		Banners:    c.banners.Load(),
		Skipped:    c.skipped.Load(),
		Malformed:  c.malformed.Load(),
		Failed:     c.failed.Load(),
		Reconnects: c.reconnect.Load(),
	}
}

// dispatcher turns raw frames into Handler calls. Both live sources share
// it so counting, progress logging and the event limit behave the same.
type dispatcher struct {
	name          string
	handler       Handler
	maxEvents     int64
	progressEvery int64
	stats         *counters
}

func newDispatcher(name string, h Handler, maxEvents, progressEvery int, stats *counters) *dispatcher {
	if progressEvery <= 0 {
		progressEvery = 100
	}
	return &dispatcher{
		name:          name,
		handler:       h,
		maxEvents:     int64(maxEvents),
		progressEvery: int64(progressEvery),
		stats:         stats,
	}
}

// done reports whether the event limit has been reached.
func (d *dispatcher) done() bool {
	return d.maxEvents > 0 && d.stats.events.Load() >= d.maxEvents
}

// dispatch handles one line. It never returns an error; failures are
// counted and logged.
func (d *dispatcher) dispatch(ctx context.Context, line []byte) {
	frame, err := DecodeFrame(line)
	if err != nil {
		d.stats.malformed.Add(1)
		metrics.RecordFrame("malformed")
		logging.Warn().Err(err).Str("source", d.name).Msg("skipping malformed frame")
		return
	}

	if b := frame.Banner; b != nil {
		d.stats.banners.Add(1)
		metrics.RecordFrame("banner")
		logging.Info().
			Str("source", d.name).
			Strs("datasets", b.Datasets).
			Int("events", b.Events).
			Bool("loop", b.Loop).
			Float64("speed_factor", b.SpeedFactor).
			Float64("cycle_seconds", b.CycleSeconds).
			Msg("stream server banner")
		return
	}

	n := d.stats.events.Add(1)
	defer d.progress(n)

	rec, err := frame.Envelope.Record()
	switch {
	case errors.Is(err, ErrUnknownDataset), errors.Is(err, ErrEmptyEvent):
		d.stats.skipped.Add(1)
		metrics.RecordFrame("skipped")
		return
	case err != nil:
		d.stats.malformed.Add(1)
		metrics.RecordFrame("malformed")
		logging.Warn().Err(err).Str("dataset", frame.Envelope.Dataset).
			Int64("sequence", frame.Envelope.Sequence).Msg("skipping undecodable event")
		return
	}

	metrics.RecordFrame("event")
	d.stats.records.Add(1)
	found, err := d.handler.Handle(ctx, rec)
	d.stats.anomalies.Add(int64(found))
	if err != nil {
		d.stats.failed.Add(1)
		logging.Warn().Err(err).Str("dataset", frame.Envelope.Dataset).
			Int64("sequence", frame.Envelope.Sequence).Msg("record handled with errors")
	}
}

func (d *dispatcher) progress(n int64) {
	if n%d.progressEvery != 0 {
		return
	}
	logging.Info().
		Str("source", d.name).
		Int64("events", n).
		Int64("anomalies", d.stats.anomalies.Load()).
		Msg("progress")
}
