// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package config loads Sentinel configuration from defaults, an optional
// YAML file, an optional .env file and the process environment, in that
// order of increasing precedence.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Detection DetectionConfig `koanf:"detection"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Stream    StreamConfig    `koanf:"stream"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Output    OutputConfig    `koanf:"output"`
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Notify    NotifyConfig    `koanf:"notify"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DetectionConfig holds cache limits and rule thresholds.
type DetectionConfig struct {
	// Window is the maximum age of a cache entry, measured against wall clock.
	Window time.Duration `koanf:"window" validate:"gt=0"`

	// MaxEntries caps every correlation cache.
	MaxEntries int `koanf:"max_entries" validate:"min=1"`

	// CleanupEvery runs the janitor after this many processed records.
	CleanupEvery int `koanf:"cleanup_every" validate:"min=1"`

	WeightToleranceGrams float64 `koanf:"weight_tolerance_grams" validate:"gte=0"`

	RecurringThreshold int           `koanf:"recurring_threshold" validate:"min=1"`
	RecurringInterval  time.Duration `koanf:"recurring_interval" validate:"gte=1m"`

	QueueCustomerThreshold int           `koanf:"queue_customer_threshold" validate:"min=0"`
	QueueDurationThreshold time.Duration `koanf:"queue_duration_threshold" validate:"gt=0"`

	DwellThresholdSeconds float64 `koanf:"dwell_threshold_seconds" validate:"gt=0"`
	HighDwellMultiplier   float64 `koanf:"high_dwell_multiplier" validate:"gte=1"`
	HighPriorityCustomers int     `koanf:"high_priority_customers" validate:"min=0"`

	InventoryTolerance int `koanf:"inventory_tolerance" validate:"min=0"`
}

// CatalogConfig locates the product catalog.
type CatalogConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// StreamConfig configures the TCP line-protocol source.
type StreamConfig struct {
	Source         string        `koanf:"source" validate:"oneof=tcp kafka"`
	Host           string        `koanf:"host" validate:"required"`
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	MaxEvents      int           `koanf:"max_events" validate:"min=0"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
	MaxReconnects  int           `koanf:"max_reconnects" validate:"min=0"`
	ProgressEvery  int           `koanf:"progress_every" validate:"min=1"`
}

// KafkaConfig configures the Kafka source.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

// OutputConfig locates the anomaly log.
type OutputConfig struct {
	AnomalyLog string `koanf:"anomaly_log" validate:"required"`
	BatchDir   string `koanf:"batch_dir" validate:"required"`
}

// StoreConfig enables the queryable badger anomaly store.
type StoreConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Path      string        `koanf:"path"`
	Retention time.Duration `koanf:"retention"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// NotifyConfig configures outbound anomaly forwarding.
type NotifyConfig struct {
	WebhookURL           string `koanf:"webhook_url" validate:"omitempty,url"`
	WebhookRatePerMinute int    `koanf:"webhook_rate_per_minute" validate:"min=0"`
	NATSURL              string `koanf:"nats_url"`
	NATSSubject          string `koanf:"nats_subject"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
	File   string `koanf:"file"`
}
