// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/ingest"
)

func TestEngineConfigMapping(t *testing.T) {
	t.Parallel()

	d := config.DetectionConfig{
		Window:                 5 * time.Minute,
		MaxEntries:             50,
		CleanupEvery:           7,
		WeightToleranceGrams:   12.5,
		RecurringThreshold:     4,
		RecurringInterval:      15 * time.Minute,
		QueueCustomerThreshold: 6,
		QueueDurationThreshold: 90 * time.Second,
		DwellThresholdSeconds:  240,
		HighDwellMultiplier:    2,
		HighPriorityCustomers:  8,
		InventoryTolerance:     3,
	}
	cfg := engineConfig(d)

	tests := []struct {
		name      string
		got, want any
	}{
		{"window", cfg.Window, 5 * time.Minute},
		{"max entries", cfg.MaxEntries, 50},
		{"cleanup every", cfg.CleanupEvery, 7},
		{"weight tolerance", cfg.Weight.ToleranceGrams, 12.5},
		{"recurring interval", cfg.SystemError.IntervalMinutes, 15},
		{"recurring threshold", cfg.SystemError.RecurringThreshold, 4},
		{"queue customers", cfg.LongQueue.CustomerThreshold, 6},
		{"queue duration", cfg.LongQueue.DurationSeconds, 90.0},
		{"dwell threshold", cfg.ExtendedWait.DwellThresholdSeconds, 240.0},
		{"high multiplier", cfg.ExtendedWait.HighMultiplier, 2.0},
		{"high customers", cfg.ExtendedWait.HighCustomers, 8},
		{"inventory tolerance", cfg.Inventory.Tolerance, 3},
		{"exit location kept", cfg.ScannerAvoidance.ExitLocation, "OUT_SCAN_AREA"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSourceSelection(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Stream: config.StreamConfig{Source: "tcp", Host: "10.0.0.5", Port: 9000, MaxEvents: 10, ProgressEvery: 5},
		Kafka:  config.KafkaConfig{Brokers: []string{"k:9092"}, Topic: "t", GroupID: "g"},
	}
	if _, ok := newSource(cfg).(*ingest.TCPSource); !ok {
		t.Error("tcp source not selected")
	}
	if got := tcpConfig(cfg.Stream); got.Addr != "10.0.0.5:9000" || got.MaxEvents != 10 || got.ReconnectDelay != time.Second {
		t.Errorf("tcpConfig = %+v", got)
	}

	k := kafkaConfig(cfg.Stream, cfg.Kafka)
	if k.Topic != "t" || k.GroupID != "g" || k.MaxEvents != 10 || k.ProgressEvery != 5 || len(k.Brokers) != 1 {
		t.Errorf("kafkaConfig = %+v", k)
	}
}

func TestMiddlewareConfigKeepsDefaultWindow(t *testing.T) {
	t.Parallel()

	got := middlewareConfig(config.ServerConfig{CORSOrigins: []string{"http://a"}, RateLimitRequests: 5})
	if got.RateLimitWindow != time.Minute || got.RateLimitRequests != 5 || got.CORSAllowedOrigins[0] != "http://a" {
		t.Errorf("middlewareConfig = %+v", got)
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"products_list.csv": "SKU,product_name,quantity,EPC_range,barcode,weight,price\n" +
			"PRD_F_02,Bread,20,E290-E299,4792024011355,250,150\n",
		"rfid_readings.jsonl": `{"timestamp":"2025-08-13T16:00:05","station_id":"SCC1","status":"Active","data":{"sku":"PRD_F_02","location":"OUT_SCAN_AREA"}}` + "\n",
		"config.yaml":         "logging:\n  level: disabled\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	outDir := filepath.Join(dir, "out")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"batch", "--config", filepath.Join(dir, "config.yaml"), "--data-dir", dir, "--output-dir", outDir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, want := range []string{"Unique anomalies:  1", "Scanner Avoidance", outDir} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, out.String())
		}
	}
	matches, _ := filepath.Glob(filepath.Join(outDir, "detection_events_*.jsonl"))
	if len(matches) != 1 {
		t.Errorf("result files = %v", matches)
	}
}

func TestBatchCommandBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("stream:\n  source: carrier-pigeon\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"batch", "--config", path})
	if err := cmd.Execute(); err == nil {
		t.Error("invalid config accepted")
	}
}
