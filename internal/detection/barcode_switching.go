// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

// BarcodeSwitchConfig configures the barcode switching detector.
type BarcodeSwitchConfig struct {
	// RequirePositiveSKUPrice suppresses the mismatch fallback when the
	// transaction SKU has no catalog price. Zero-priced entries otherwise
	// flag every scan whose barcode carries a price.
	RequirePositiveSKUPrice bool `json:"require_positive_sku_price"`
}

// DefaultBarcodeSwitchConfig returns sensible defaults.
func DefaultBarcodeSwitchConfig() BarcodeSwitchConfig {
	return BarcodeSwitchConfig{RequirePositiveSKUPrice: true}
}

// BarcodeSwitchDetector flags a scanned barcode cheaper than the item
// actually at the scanner.
//
// When both a recognition prediction and an RFID read share the
// transaction's "<timestamp>_<station>" key, the barcode price is compared
// with the predicted product's price. Otherwise the transaction's own SKU is
// compared with the scanned barcode.
type BarcodeSwitchDetector struct {
	ruleBase[BarcodeSwitchConfig]
}

// NewBarcodeSwitchDetector creates an enabled detector.
func NewBarcodeSwitchDetector(cfg BarcodeSwitchConfig) *BarcodeSwitchDetector {
	d := &BarcodeSwitchDetector{}
	d.config = cfg
	d.enabled = true
	return d
}

// Type returns the rule type.
func (d *BarcodeSwitchDetector) Type() RuleType { return RuleTypeBarcodeSwitching }

// Check evaluates one POS transaction.
func (d *BarcodeSwitchDetector) Check(_ context.Context, rec models.Record, st *State) ([]*models.Anomaly, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return nil, nil
	}

	p, ok := rec.(*models.POSRecord)
	if !ok {
		return nil, unexpected(d.Type(), rec)
	}

	sku := p.Data.SKU
	barcode := p.Data.Barcode
	skuPrice := st.Catalog.Price(sku)
	barcodePrice := st.Catalog.PriceOr(barcode, float64(p.Data.Price))

	key := p.CorrelationKey()
	predicted, havePrediction := st.RecognitionByKey.Get(key)
	actual, haveRFID := st.RFIDByKey.Get(key)

	var detail *models.BarcodeSwitching
	if havePrediction && predicted != "" && haveRFID && actual != "" {
		predictedPrice := st.Catalog.Price(predicted)
		if barcodePrice < predictedPrice && actual != barcode {
			actualPrice := st.Catalog.Price(actual)
			detail = &models.BarcodeSwitching{
				ActualSKU:       actual,
				ActualPrice:     actualPrice,
				PriceDifference: actualPrice - barcodePrice,
			}
		}
	} else if sku != barcode && skuPrice != barcodePrice && (skuPrice > 0 || !cfg.RequirePositiveSKUPrice) {
		detail = &models.BarcodeSwitching{
			ActualSKU:       sku,
			ActualPrice:     skuPrice,
			PriceDifference: skuPrice - barcodePrice,
		}
	}

	if detail == nil {
		return nil, nil
	}
	detail.StationID = p.StationID
	detail.CustomerID = p.Data.CustomerID
	detail.ScannedBarcode = barcode
	detail.ScannedPrice = barcodePrice

	return []*models.Anomaly{models.NewAnomaly(p.Timestamp, detail)}, nil
}

// Configure updates the detector configuration.
func (d *BarcodeSwitchDetector) Configure(config json.RawMessage) error {
	return d.configure(config, nil)
}
