// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"sentinel.yaml",
	"sentinel.yml",
	"/etc/sentinel/sentinel.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPath is loaded into the environment before env vars are read.
// Variables already set in the environment win.
var DotEnvPath = ".env"

func defaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			Window:                 30 * time.Minute,
			MaxEntries:             10000,
			CleanupEvery:           100,
			WeightToleranceGrams:   5,
			RecurringThreshold:     3,
			RecurringInterval:      10 * time.Minute,
			QueueCustomerThreshold: 5,
			QueueDurationThreshold: 120 * time.Second,
			DwellThresholdSeconds:  300,
			HighDwellMultiplier:    1.5,
			HighPriorityCustomers:  5,
			InventoryTolerance:     1,
		},
		Catalog: CatalogConfig{
			Path: "data/input/products_list.csv",
		},
		Stream: StreamConfig{
			Source:         "tcp",
			Host:           "127.0.0.1",
			Port:           8765,
			ReconnectDelay: 2 * time.Second,
			MaxReconnects:  5,
			ProgressEvery:  100,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"127.0.0.1:9092"},
			Topic:   "store-events",
			GroupID: "sentinel",
		},
		Output: OutputConfig{
			AnomalyLog: "evidence/output/events.jsonl",
			BatchDir:   "evidence/output",
		},
		Store: StoreConfig{
			Path:      "data/anomalies",
			Retention: 7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
			ShutdownTimeout:   10 * time.Second,
		},
		Notify: NotifyConfig{
			WebhookRatePerMinute: 60,
			NATSSubject:          "sentinel.anomalies",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file, then the
// environment (including anything found in .env), then validation.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := godotenv.Load(DotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvPath, err)
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"kafka.brokers",
	"server.cors_origins",
}

// splitSliceFields turns comma-separated env values into slices.
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"detection_window":         "detection.window",
	"detection_max_entries":    "detection.max_entries",
	"detection_cleanup_every":  "detection.cleanup_every",
	"weight_tolerance_grams":   "detection.weight_tolerance_grams",
	"recurring_threshold":      "detection.recurring_threshold",
	"recurring_interval":       "detection.recurring_interval",
	"queue_customer_threshold": "detection.queue_customer_threshold",
	"queue_duration_threshold": "detection.queue_duration_threshold",
	"dwell_threshold_seconds":  "detection.dwell_threshold_seconds",
	"inventory_tolerance":      "detection.inventory_tolerance",
	"catalog_path":             "catalog.path",
	"stream_source":            "stream.source",
	"stream_host":              "stream.host",
	"stream_port":              "stream.port",
	"stream_max_events":        "stream.max_events",
	"stream_reconnect_delay":   "stream.reconnect_delay",
	"stream_max_reconnects":    "stream.max_reconnects",
	"kafka_brokers":            "kafka.brokers",
	"kafka_topic":              "kafka.topic",
	"kafka_group_id":           "kafka.group_id",
	"anomaly_log":              "output.anomaly_log",
	"batch_output_dir":         "output.batch_dir",
	"store_enabled":            "store.enabled",
	"store_path":               "store.path",
	"store_retention":          "store.retention",
	"http_enabled":             "server.enabled",
	"http_host":                "server.host",
	"http_port":                "server.port",
	"rate_limit_requests":      "server.rate_limit_requests",
	"rate_limit_window":        "server.rate_limit_window",
	"cors_origins":             "server.cors_origins",
	"webhook_url":              "notify.webhook_url",
	"webhook_rate_per_minute":  "notify.webhook_rate_per_minute",
	"nats_url":                 "notify.nats_url",
	"nats_subject":             "notify.nats_subject",
	"log_level":                "logging.level",
	"log_format":               "logging.format",
	"log_caller":               "logging.caller",
	"log_file":                 "logging.file",
}

// envTransformFunc maps known environment names to config paths. Unknown
// names map to "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
