// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

var (
	// ErrUnknownDataset is returned for envelopes whose dataset name is not
	// in the dataset table. Callers drop these frames without logging.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrEmptyEvent is returned for envelopes without an event payload.
	ErrEmptyEvent = errors.New("envelope has no event")
)

// Banner is the one-time greeting the stream server sends on connect.
type Banner struct {
	Service      string   `json:"service,omitempty"`
	Datasets     []string `json:"datasets"`
	Events       int      `json:"events"`
	Loop         bool     `json:"loop"`
	SpeedFactor  float64  `json:"speed_factor"`
	CycleSeconds float64  `json:"cycle_seconds"`
}

// Envelope wraps one sensor reading on the wire.
type Envelope struct {
	Dataset   string          `json:"dataset"`
	Sequence  int64           `json:"sequence"`
	Timestamp string          `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

// Frame is one decoded line: exactly one of Banner or Envelope is set.
type Frame struct {
	Banner   *Banner
	Envelope *Envelope
}

// DecodeFrame parses one line of the stream protocol. A line carrying a
// "service" or "datasets" key is a banner; anything else is an envelope.
func DecodeFrame(line []byte) (Frame, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Frame{}, fmt.Errorf("decode frame: empty line")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(line, &keys); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	_, hasService := keys["service"]
	_, hasDatasets := keys["datasets"]
	if hasService || hasDatasets {
		var b Banner
		if err := json.Unmarshal(line, &b); err != nil {
			return Frame{}, fmt.Errorf("decode banner: %w", err)
		}
		return Frame{Banner: &b}, nil
	}

	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Frame{}, fmt.Errorf("decode envelope: %w", err)
	}
	return Frame{Envelope: &env}, nil
}

// Record resolves the dataset and decodes the event into a typed record.
func (e *Envelope) Record() (models.Record, error) {
	src, ok := models.SourceForDataset(e.Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, e.Dataset)
	}
	ev := bytes.TrimSpace(e.Event)
	if len(ev) == 0 || bytes.Equal(ev, []byte("null")) || bytes.Equal(ev, []byte("{}")) {
		return nil, ErrEmptyEvent
	}
	return models.DecodeRecord(src, ev)
}
