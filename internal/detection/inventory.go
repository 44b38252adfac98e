// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

// InventoryConfig configures the inventory discrepancy detector.
type InventoryConfig struct {
	// Tolerance is the largest accepted unit difference.
	Tolerance int `json:"tolerance"`
}

// DefaultInventoryConfig returns sensible defaults.
func DefaultInventoryConfig() InventoryConfig {
	return InventoryConfig{Tolerance: 1}
}

// InventoryDetector compares each snapshot SKU against the catalog quantity
// less cumulative sales.
type InventoryDetector struct {
	ruleBase[InventoryConfig]
}

// NewInventoryDetector creates an enabled detector.
func NewInventoryDetector(cfg InventoryConfig) *InventoryDetector {
	d := &InventoryDetector{}
	d.config = cfg
	d.enabled = true
	return d
}

// Type returns the rule type.
func (d *InventoryDetector) Type() RuleType { return RuleTypeInventory }

// Check evaluates one inventory snapshot. One event is produced per SKU
// outside tolerance, in SKU order.
func (d *InventoryDetector) Check(_ context.Context, rec models.Record, st *State) ([]*models.Anomaly, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return nil, nil
	}

	inv, ok := rec.(*models.InventoryRecord)
	if !ok {
		return nil, unexpected(d.Type(), rec)
	}

	ts := inv.Timestamp
	if ts == "" {
		ts = models.UnknownID
	}

	skus := make([]string, 0, len(inv.Data))
	for sku := range inv.Data {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	var out []*models.Anomaly
	for _, sku := range skus {
		actual := int(inv.Data[sku])
		sold := st.UnitsSold(sku)
		expected := st.Catalog.Quantity(sku) - sold

		discrepancy := expected - actual
		if discrepancy < 0 {
			discrepancy = -discrepancy
		}
		if discrepancy <= cfg.Tolerance {
			continue
		}

		kind := models.InventoryOverage
		if actual < expected {
			kind = models.InventoryShrinkage
		}
		out = append(out, models.NewAnomaly(ts, &models.InventoryDiscrepancy{
			SKU:               sku,
			ExpectedInventory: expected,
			ActualInventory:   actual,
			Discrepancy:       discrepancy,
			Type:              kind,
			UnitsSold:         sold,
		}))
	}
	return out, nil
}

// Configure updates the detector configuration.
func (d *InventoryDetector) Configure(config json.RawMessage) error {
	return d.configure(config, func(c InventoryConfig) error {
		if c.Tolerance < 0 {
			return errors.New("tolerance must be non-negative")
		}
		return nil
	})
}
