// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"math"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

// WeightConfig configures the weight discrepancy detector.
type WeightConfig struct {
	// ToleranceGrams is the largest accepted difference from the catalog
	// weight.
	ToleranceGrams float64 `json:"tolerance_grams"`
}

// DefaultWeightConfig returns sensible defaults.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{ToleranceGrams: 5}
}

// WeightDetector flags bagging-scale readings that differ from the catalog
// weight of the scanned SKU. Unknown SKUs weigh zero.
type WeightDetector struct {
	ruleBase[WeightConfig]
}

// NewWeightDetector creates an enabled detector.
func NewWeightDetector(cfg WeightConfig) *WeightDetector {
	d := &WeightDetector{}
	d.config = cfg
	d.enabled = true
	return d
}

// Type returns the rule type.
func (d *WeightDetector) Type() RuleType { return RuleTypeWeightDiscrepancy }

// Check evaluates one POS transaction.
func (d *WeightDetector) Check(_ context.Context, rec models.Record, st *State) ([]*models.Anomaly, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return nil, nil
	}

	p, ok := rec.(*models.POSRecord)
	if !ok {
		return nil, unexpected(d.Type(), rec)
	}

	expected := st.Catalog.Weight(p.Data.SKU)
	actual := float64(p.Data.WeightG)
	diff := math.Abs(actual - expected)
	if diff <= cfg.ToleranceGrams {
		return nil, nil
	}

	return []*models.Anomaly{models.NewAnomaly(p.Timestamp, &models.WeightDiscrepancy{
		StationID:      p.StationID,
		CustomerID:     p.Data.CustomerID,
		ProductSKU:     p.Data.SKU,
		ExpectedWeight: expected,
		ActualWeight:   actual,
		Difference:     diff,
	})}, nil
}

// Configure updates the detector configuration.
func (d *WeightDetector) Configure(config json.RawMessage) error {
	return d.configure(config, func(c WeightConfig) error {
		if c.ToleranceGrams < 0 {
			return errors.New("tolerance_grams must be non-negative")
		}
		return nil
	})
}
