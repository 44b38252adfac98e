// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

// LongQueueConfig configures the long queue detector.
type LongQueueConfig struct {
	// CustomerThreshold is the count a queue must exceed to be long.
	CustomerThreshold int `json:"customer_threshold"`

	// DurationSeconds is how long a run must last before it is flagged.
	DurationSeconds float64 `json:"duration_seconds"`
}

// DefaultLongQueueConfig returns sensible defaults.
func DefaultLongQueueConfig() LongQueueConfig {
	return LongQueueConfig{
		CustomerThreshold: 5,
		DurationSeconds:   120,
	}
}

// LongQueueDetector tracks continuous runs of long queue samples per
// station. A run is reported once when it reaches the duration threshold;
// any sample at or below the customer threshold ends the run.
type LongQueueDetector struct {
	ruleBase[LongQueueConfig]
}

// NewLongQueueDetector creates an enabled detector.
func NewLongQueueDetector(cfg LongQueueConfig) *LongQueueDetector {
	d := &LongQueueDetector{}
	d.config = cfg
	d.enabled = true
	return d
}

// Type returns the rule type.
func (d *LongQueueDetector) Type() RuleType { return RuleTypeLongQueue }

// Check evaluates one queue sample.
func (d *LongQueueDetector) Check(_ context.Context, rec models.Record, st *State) ([]*models.Anomaly, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return nil, nil
	}

	q, ok := rec.(*models.QueueRecord)
	if !ok {
		return nil, unexpected(d.Type(), rec)
	}

	state := st.Queue(q.StationID)
	customers := int(q.Data.CustomerCount)
	if customers <= cfg.CustomerThreshold {
		state.Running = false
		return nil, nil
	}

	now, ok := st.eventTime(q.Timestamp)
	if !ok {
		return nil, nil
	}

	if !state.Running {
		state.Running = true
		state.Start = now
		return nil, nil
	}

	duration := now.Sub(state.Start).Seconds()
	key := startKey(state.Start)
	if _, flagged := state.Flagged[key]; flagged || duration < cfg.DurationSeconds {
		return nil, nil
	}
	state.Flagged[key] = struct{}{}

	return []*models.Anomaly{models.NewAnomaly(q.Timestamp, &models.LongQueue{
		StationID:            q.StationID,
		NumOfCustomers:       customers,
		QueueDurationSeconds: duration,
		AverageDwellTime:     float64(q.Data.AverageDwellTime),
	})}, nil
}

// Configure updates the detector configuration.
func (d *LongQueueDetector) Configure(config json.RawMessage) error {
	return d.configure(config, func(c LongQueueConfig) error {
		if c.CustomerThreshold < 0 {
			return errors.New("customer_threshold must be non-negative")
		}
		if c.DurationSeconds <= 0 {
			return errors.New("duration_seconds must be positive")
		}
		return nil
	})
}
