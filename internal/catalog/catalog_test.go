// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `SKU,product_name,quantity,EPC_range,barcode,weight,price
PRD_F_01,Munchee Chocolate Cream,120,E280116060000206EE09C88A-E280116060000206EE09C8A0,4792024011348,410,280.00
PRD_F_02,Anchor Milk Powder,80,,4792024011355,400,1150.50
PRD_F_03,Bad Row,,,,,
`

func TestReadCSV(t *testing.T) {
	t.Parallel()

	products, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("got %d products, want 3", len(products))
	}

	p := products[1]
	if p.SKU != "PRD_F_02" || p.Barcode != "4792024011355" || p.Price != 1150.5 || p.Weight != 400 || p.Quantity != 80 {
		t.Errorf("product = %+v", p)
	}
	if products[2].Price != 0 || products[2].Quantity != 0 {
		t.Errorf("empty numerics should read as zero: %+v", products[2])
	}
}

func TestReadCSVMissingSKUColumn(t *testing.T) {
	t.Parallel()

	if _, err := ReadCSV(strings.NewReader("name,price\nx,1\n")); err == nil {
		t.Error("expected error for header without SKU")
	}
}

func TestCatalogLookup(t *testing.T) {
	t.Parallel()

	products, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	c := New(products)

	tests := []struct {
		code     string
		price    float64
		weight   float64
		quantity int
	}{
		{"PRD_F_01", 280, 410, 120},
		{"4792024011348", 280, 410, 120},
		{"PRD_F_02", 1150.5, 400, 80},
		{"UNKNOWN", 0, 0, 0},
	}
	for _, tt := range tests {
		if got := c.Price(tt.code); got != tt.price {
			t.Errorf("Price(%q) = %v, want %v", tt.code, got, tt.price)
		}
		if got := c.Weight(tt.code); got != tt.weight {
			t.Errorf("Weight(%q) = %v, want %v", tt.code, got, tt.weight)
		}
		if got := c.Quantity(tt.code); got != tt.quantity {
			t.Errorf("Quantity(%q) = %v, want %v", tt.code, got, tt.quantity)
		}
	}

	if got := c.PriceOr("UNKNOWN", 9.5); got != 9.5 {
		t.Errorf("PriceOr fallback = %v, want 9.5", got)
	}
	if got := c.PriceOr("PRD_F_01", 9.5); got != 280 {
		t.Errorf("PriceOr known = %v, want 280", got)
	}
	if c.Products() != 3 {
		t.Errorf("Products() = %d, want 3", c.Products())
	}
}

func TestBarcodeAliasIsCopy(t *testing.T) {
	t.Parallel()

	products := []Product{{SKU: "A1", Barcode: "B1", Price: 5}}
	c := New(products)
	products[0].Price = 99

	if c.Price("B1") != 5 || c.Price("A1") != 5 {
		t.Errorf("catalog should not observe later changes to the input")
	}
}

func TestBarcodeAliasPrecedence(t *testing.T) {
	t.Parallel()

	c := New([]Product{
		{SKU: "A1", Barcode: "SHARED", Price: 5},
		{SKU: "B2", Barcode: "A1", Price: 7},
		{SKU: "C3", Barcode: "SHARED", Price: 9},
	})

	tests := []struct {
		code string
		want float64
	}{
		{"A1", 5},     // SKU key wins over another product's barcode
		{"SHARED", 5}, // first product claiming a barcode keeps it
		{"B2", 7},
		{"C3", 9},
	}
	for _, tt := range tests {
		if got := c.Price(tt.code); got != tt.want {
			t.Errorf("Price(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	csvPath := filepath.Join(dir, "products_list.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(csvPath)
	if err != nil {
		t.Fatalf("Load csv: %v", err)
	}
	if c.Products() != 3 {
		t.Errorf("csv products = %d", c.Products())
	}

	jsonlPath := filepath.Join(dir, "products.jsonl")
	jsonl := `{"SKU":"A1","price":"5.00","weight":480,"quantity":10,"barcode":"B1"}` + "\n\n" +
		`{"SKU":"A2","price":2,"weight":100,"quantity":"3"}` + "\n"
	if err := os.WriteFile(jsonlPath, []byte(jsonl), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err = Load(jsonlPath)
	if err != nil {
		t.Fatalf("Load jsonl: %v", err)
	}
	if c.Price("B1") != 5 || c.Quantity("A2") != 3 {
		t.Errorf("jsonl lookups wrong: B1=%v A2=%v", c.Price("B1"), c.Quantity("A2"))
	}

	emptyPath := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(emptyPath, []byte("SKU,price\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(emptyPath); !errors.Is(err, ErrEmpty) {
		t.Errorf("Load empty = %v, want ErrEmpty", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
