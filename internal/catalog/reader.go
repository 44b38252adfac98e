// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package catalog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/logging"
)

// ReadCSV parses a header-first CSV. Column names are matched case
// insensitively; SKU is required, price, weight, quantity and barcode are
// optional, unknown columns are ignored. Unparseable numbers read as zero.
func ReadCSV(r io.Reader) ([]Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["sku"]; !ok {
		return nil, fmt.Errorf("missing SKU column in header %v", header)
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var products []Product
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		p := Product{
			SKU:      field(row, "sku"),
			Barcode:  field(row, "barcode"),
			Price:    parseFloat(field(row, "price")),
			Weight:   parseFloat(field(row, "weight")),
			Quantity: int(parseFloat(field(row, "quantity"))),
		}
		if p.SKU == "" {
			logging.Warn().Int("line", line).Msg("catalog row without SKU skipped")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// ReadJSONL parses one product object per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Product, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var products []Product
	for line := 1; sc.Scan(); line++ {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var raw struct {
			SKU      string          `json:"SKU"`
			Barcode  json.RawMessage `json:"barcode"`
			Price    json.RawMessage `json:"price"`
			Weight   json.RawMessage `json:"weight"`
			Quantity json.RawMessage `json:"quantity"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if raw.SKU == "" {
			continue
		}
		products = append(products, Product{
			SKU:      raw.SKU,
			Barcode:  rawString(raw.Barcode),
			Price:    parseFloat(rawString(raw.Price)),
			Weight:   parseFloat(rawString(raw.Weight)),
			Quantity: int(parseFloat(rawString(raw.Quantity))),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return products, nil
}

// rawString unquotes a JSON string or returns a bare literal as text.
func rawString(m json.RawMessage) string {
	if len(m) == 0 || string(m) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	return string(m)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
