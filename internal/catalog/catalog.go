// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package catalog holds the read-only product catalog: price, unit weight
// and expected stock per SKU, also reachable by barcode.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmpty is returned when a catalog source yields no products.
var ErrEmpty = errors.New("catalog has no products")

// Product is one catalog row.
type Product struct {
	SKU      string  `json:"SKU"`
	Barcode  string  `json:"barcode,omitempty"`
	Price    float64 `json:"price"`
	Weight   float64 `json:"weight"`
	Quantity int     `json:"quantity"`
}

// Entry is the value looked up by SKU or barcode.
type Entry struct {
	Price    float64
	Weight   float64
	Quantity int
}

// Catalog maps SKUs and barcodes to entries. It is immutable after New.
type Catalog struct {
	entries  map[string]Entry
	products int
}

// New indexes products by SKU, then by barcode. A barcode gets its own
// copy of the SKU entry. SKU keys are never replaced by a barcode alias,
// and the first product claiming a shared barcode keeps it.
func New(products []Product) *Catalog {
	c := &Catalog{entries: make(map[string]Entry, len(products)*2)}
	for _, p := range products {
		if p.SKU == "" {
			continue
		}
		c.entries[p.SKU] = Entry{Price: p.Price, Weight: p.Weight, Quantity: p.Quantity}
		c.products++
	}
	for _, p := range products {
		if p.SKU == "" || p.Barcode == "" {
			continue
		}
		if _, clash := c.entries[p.Barcode]; clash && p.Barcode != p.SKU {
			continue
		}
		c.entries[p.Barcode] = c.entries[p.SKU]
	}
	return c
}

// Load reads a catalog file, choosing the parser by extension
// (.csv, or .jsonl/.json for one product object per line).
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	var products []Product
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".json", ".ndjson":
		products, err = ReadJSONL(f)
	default:
		products, err = ReadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return New(products), nil
}

// Lookup returns the entry for a SKU or barcode.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	e, ok := c.entries[code]
	return e, ok
}

// Price is the catalog price, zero when unknown.
func (c *Catalog) Price(code string) float64 {
	return c.entries[code].Price
}

// PriceOr is the catalog price, or fallback when code is not cataloged.
func (c *Catalog) PriceOr(code string, fallback float64) float64 {
	if e, ok := c.entries[code]; ok {
		return e.Price
	}
	return fallback
}

// Weight is the catalog unit weight in grams, zero when unknown.
func (c *Catalog) Weight(code string) float64 {
	return c.entries[code].Weight
}

// Quantity is the expected stock level, zero when unknown.
func (c *Catalog) Quantity(code string) int {
	return c.entries[code].Quantity
}

// Products is the number of distinct SKUs loaded.
func (c *Catalog) Products() int { return c.products }

// Len counts SKU and barcode keys.
func (c *Catalog) Len() int { return len(c.entries) }
