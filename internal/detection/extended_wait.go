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

// ExtendedWaitConfig configures the extended wait detector.
type ExtendedWaitConfig struct {
	// DwellThresholdSeconds is the average dwell time that triggers an event.
	DwellThresholdSeconds float64 `json:"dwell_threshold_seconds"`

	// HighMultiplier scales the threshold for HIGH priority.
	HighMultiplier float64 `json:"high_multiplier"`

	// HighCustomers is the queue length HIGH priority must exceed.
	HighCustomers int `json:"high_customers"`
}

// DefaultExtendedWaitConfig returns sensible defaults.
func DefaultExtendedWaitConfig() ExtendedWaitConfig {
	return ExtendedWaitConfig{
		DwellThresholdSeconds: 300,
		HighMultiplier:        1.5,
		HighCustomers:         5,
	}
}

// ExtendedWaitDetector flags queue samples whose average dwell time is too
// high. Priority is HIGH only when the wait is well over the threshold and
// the queue is also long.
type ExtendedWaitDetector struct {
	ruleBase[ExtendedWaitConfig]
}

// NewExtendedWaitDetector creates an enabled detector.
func NewExtendedWaitDetector(cfg ExtendedWaitConfig) *ExtendedWaitDetector {
	d := &ExtendedWaitDetector{}
	d.config = cfg
	d.enabled = true
	return d
}

// Type returns the rule type.
func (d *ExtendedWaitDetector) Type() RuleType { return RuleTypeExtendedWait }

// Check evaluates one queue sample.
func (d *ExtendedWaitDetector) Check(_ context.Context, rec models.Record, _ *State) ([]*models.Anomaly, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return nil, nil
	}

	q, ok := rec.(*models.QueueRecord)
	if !ok {
		return nil, unexpected(d.Type(), rec)
	}

	dwell := float64(q.Data.AverageDwellTime)
	if dwell <= cfg.DwellThresholdSeconds {
		return nil, nil
	}

	customers := int(q.Data.CustomerCount)
	priority := models.SeverityMedium
	if dwell > cfg.DwellThresholdSeconds*cfg.HighMultiplier && customers > cfg.HighCustomers {
		priority = models.SeverityHigh
	}

	return []*models.Anomaly{models.NewAnomaly(q.Timestamp, &models.LongWait{
		StationID:       q.StationID,
		WaitTimeSeconds: dwell,
		CustomerCount:   customers,
		Priority:        priority,
	})}, nil
}

// Configure updates the detector configuration.
func (d *ExtendedWaitDetector) Configure(config json.RawMessage) error {
	return d.configure(config, func(c ExtendedWaitConfig) error {
		if c.DwellThresholdSeconds <= 0 {
			return errors.New("dwell_threshold_seconds must be positive")
		}
		if c.HighMultiplier < 1 {
			return errors.New("high_multiplier must be at least 1")
		}
		return nil
	})
}
