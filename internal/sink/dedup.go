// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/models"
)

// DedupKey builds the identity of an anomaly for duplicate suppression.
// The identity depends on the event kind:
//
//	Inventory Discrepancy: name | SKU | timestamp
//	Barcode Switching:     name | station | customer | actual SKU | timestamp
//	everything else:       name | station | timestamp
//
// Each part is quoted, so a separator inside a station id or SKU cannot make
// two different tuples collide. The event id is never part of the key; a
// re-delivered record produces a fresh id for the same logical event.
func DedupKey(a *models.Anomaly) string {
	parts := []string{string(a.Name())}
	switch d := a.EventData.(type) {
	case *models.InventoryDiscrepancy:
		parts = append(parts, d.SKU)
	case *models.BarcodeSwitching:
		parts = append(parts, d.StationID, d.CustomerID, d.ActualSKU)
	default:
		parts = append(parts, a.EventData.Station())
	}
	parts = append(parts, a.Timestamp)
	for i, p := range parts {
		parts[i] = strconv.Quote(p)
	}
	return strings.Join(parts, "|")
}

// Deduplicator remembers emitted keys. Streaming sinks bound it with the
// correlation cache policy; batch sinks keep every key.
type Deduplicator struct {
	seen *cache.Set
}

// NewDeduplicator creates a deduplicator governed by p.
func NewDeduplicator(p cache.Policy) *Deduplicator {
	return &Deduplicator{seen: cache.NewSet(p)}
}

// Admit records a's key and reports whether it was new.
func (d *Deduplicator) Admit(a *models.Anomaly, now time.Time) bool {
	return d.seen.Add(DedupKey(a), now)
}

// Len returns the number of remembered keys.
func (d *Deduplicator) Len() int { return d.seen.Len() }

// Sweep applies the retention policy.
func (d *Deduplicator) Sweep(now time.Time) int { return d.seen.Sweep(now) }
