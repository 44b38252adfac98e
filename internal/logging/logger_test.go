// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("station_id", "SCC1").Msg("station online")

	out := buf.String()
	if !strings.Contains(out, `"station_id":"SCC1"`) {
		t.Errorf("missing field in %s", out)
	}
	if !strings.Contains(out, `"message":"station online"`) {
		t.Errorf("missing message in %s", out)
	}
}

func TestInitMirrorsToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "sentinel.log")
	Init(Config{Level: "info", Output: &buf, File: path, MaxSizeMB: 1})
	defer Init(DefaultConfig())

	Warn().Msg("rotated output")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "rotated output") {
		t.Errorf("file log missing event: %s", data)
	}
}

func TestSlogHandlerBridgesAttrs(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	slogger := NewSlogLogger().WithGroup("svc").With("name", "engine")
	slogger.Info("service started", "restarts", 2)

	out := buf.String()
	if !strings.Contains(out, `"svc.name":"engine"`) {
		t.Errorf("group attr not flattened: %s", out)
	}
	if !strings.Contains(out, `"svc.restarts":2`) {
		t.Errorf("record attr missing: %s", out)
	}
}
