// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

// SystemErrorConfig configures the system error detector.
type SystemErrorConfig struct {
	// IntervalMinutes is the width of the recurring-failure bucket.
	IntervalMinutes int `json:"interval_minutes"`

	// RecurringThreshold is the error count per bucket that marks a
	// recurring failure.
	RecurringThreshold int `json:"recurring_threshold"`
}

// DefaultSystemErrorConfig returns sensible defaults.
func DefaultSystemErrorConfig() SystemErrorConfig {
	return SystemErrorConfig{
		IntervalMinutes:    10,
		RecurringThreshold: 3,
	}
}

// SystemErrorDetector reports every faulted record and counts faults per
// station and interval bucket.
//
// In streaming mode a Recurring System Failures event fires the moment a
// bucket reaches the threshold, once per bucket. In batch mode the buckets
// are summarized at Flush with severity scaled by the final count.
type SystemErrorDetector struct {
	ruleBase[SystemErrorConfig]
}

// NewSystemErrorDetector creates an enabled detector.
func NewSystemErrorDetector(cfg SystemErrorConfig) *SystemErrorDetector {
	d := &SystemErrorDetector{}
	d.config = cfg
	d.enabled = true
	return d
}

// Type returns the rule type.
func (d *SystemErrorDetector) Type() RuleType { return RuleTypeSystemError }

// Check evaluates a POS, queue or recognition record.
func (d *SystemErrorDetector) Check(_ context.Context, rec models.Record, st *State) ([]*models.Anomaly, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return nil, nil
	}

	switch rec.Source() {
	case models.SourcePOS, models.SourceQueue, models.SourceRecognition:
	default:
		return nil, unexpected(d.Type(), rec)
	}

	h := rec.Meta()
	if !h.IsSystemError() {
		return nil, nil
	}

	var duration *float64
	if h.DurationSeconds != nil {
		v := float64(*h.DurationSeconds)
		duration = &v
	}
	out := []*models.Anomaly{models.NewAnomaly(h.Timestamp, &models.SystemError{
		StationID:       h.StationID,
		ErrorType:       h.Status,
		DurationSeconds: duration,
	})}

	t, ok := st.eventTime(h.Timestamp)
	if !ok {
		return out, nil
	}
	bucket := models.FloorToInterval(t, cfg.interval())
	count := st.Errors.Increment(h.StationID, bucket)

	if st.Mode == ModeStreaming && count == cfg.RecurringThreshold {
		out = append(out, models.NewAnomaly(bucket.Format(models.BucketLayout), &models.RecurringFailures{
			StationID:       h.StationID,
			ErrorCount:      cfg.RecurringThreshold,
			IntervalMinutes: cfg.IntervalMinutes,
			Severity:        models.SeverityMedium,
		}))
	}
	return out, nil
}

// Flush summarizes recurring failures for batch runs. Buckets at or above
// twice the threshold are HIGH severity.
func (d *SystemErrorDetector) Flush(_ context.Context, st *State) []*models.Anomaly {
	cfg, enabled := d.snapshot()
	if !enabled || st.Mode != ModeBatch {
		return nil
	}

	var out []*models.Anomaly
	for _, bc := range st.Errors.Snapshot() {
		if bc.Count < cfg.RecurringThreshold {
			continue
		}
		severity := models.SeverityMedium
		if bc.Count >= cfg.RecurringThreshold*2 {
			severity = models.SeverityHigh
		}
		out = append(out, models.NewAnomaly(bc.Start.Format(models.BucketLayout), &models.RecurringFailures{
			StationID:       bc.Station,
			ErrorCount:      bc.Count,
			IntervalMinutes: cfg.IntervalMinutes,
			Severity:        severity,
		}))
	}
	return out
}

// Configure updates the detector configuration.
func (d *SystemErrorDetector) Configure(config json.RawMessage) error {
	return d.configure(config, func(c SystemErrorConfig) error {
		if c.IntervalMinutes < 1 || c.IntervalMinutes > 60 {
			return errors.New("interval_minutes must be between 1 and 60")
		}
		if c.RecurringThreshold < 1 {
			return errors.New("recurring_threshold must be at least 1")
		}
		return nil
	})
}

func (c SystemErrorConfig) interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
