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

// ScannerAvoidanceConfig configures the scanner avoidance detector.
type ScannerAvoidanceConfig struct {
	// ExitLocation is the RFID location reported when a tag leaves the
	// monitored zone.
	ExitLocation string `json:"exit_location"`
}

// DefaultScannerAvoidanceConfig returns sensible defaults.
func DefaultScannerAvoidanceConfig() ScannerAvoidanceConfig {
	return ScannerAvoidanceConfig{ExitLocation: "OUT_SCAN_AREA"}
}

// ScannerAvoidanceDetector flags RFID exits for SKUs no POS transaction in
// the window has rung up.
type ScannerAvoidanceDetector struct {
	ruleBase[ScannerAvoidanceConfig]
}

// NewScannerAvoidanceDetector creates an enabled detector.
func NewScannerAvoidanceDetector(cfg ScannerAvoidanceConfig) *ScannerAvoidanceDetector {
	d := &ScannerAvoidanceDetector{}
	d.config = cfg
	d.enabled = true
	return d
}

// Type returns the rule type.
func (d *ScannerAvoidanceDetector) Type() RuleType { return RuleTypeScannerAvoidance }

// Check evaluates one RFID read.
func (d *ScannerAvoidanceDetector) Check(_ context.Context, rec models.Record, st *State) ([]*models.Anomaly, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return nil, nil
	}

	r, ok := rec.(*models.RFIDRecord)
	if !ok {
		return nil, unexpected(d.Type(), rec)
	}

	if r.Data.Location != cfg.ExitLocation || st.POSBySKU.Contains(r.Data.SKU) {
		return nil, nil
	}

	return []*models.Anomaly{models.NewAnomaly(r.Timestamp, &models.ScannerAvoidance{
		StationID:  r.StationID,
		ProductSKU: r.Data.SKU,
	})}, nil
}

// Configure updates the detector configuration.
func (d *ScannerAvoidanceDetector) Configure(config json.RawMessage) error {
	return d.configure(config, func(c ScannerAvoidanceConfig) error {
		if c.ExitLocation == "" {
			return errors.New("exit_location is required")
		}
		return nil
	})
}
