// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"net"
	"strconv"

	"github.com/tomtom215/sentinel/internal/api"
	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/notify"
)

// engineConfig maps detection settings onto the engine. Rule settings the
// configuration does not expose keep their defaults.
func engineConfig(d config.DetectionConfig) detection.EngineConfig {
	cfg := detection.DefaultEngineConfig()
	cfg.Window = d.Window
	cfg.MaxEntries = d.MaxEntries
	cfg.CleanupEvery = d.CleanupEvery

	cfg.Weight.ToleranceGrams = d.WeightToleranceGrams
	cfg.SystemError.IntervalMinutes = int(d.RecurringInterval.Minutes())
	cfg.SystemError.RecurringThreshold = d.RecurringThreshold
	cfg.LongQueue.CustomerThreshold = d.QueueCustomerThreshold
	cfg.LongQueue.DurationSeconds = d.QueueDurationThreshold.Seconds()
	cfg.ExtendedWait.DwellThresholdSeconds = d.DwellThresholdSeconds
	cfg.ExtendedWait.HighMultiplier = d.HighDwellMultiplier
	cfg.ExtendedWait.HighCustomers = d.HighPriorityCustomers
	cfg.Inventory.Tolerance = d.InventoryTolerance
	return cfg
}

func loggingConfig(l config.LoggingConfig) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	cfg.File = l.File
	return cfg
}

func tcpConfig(s config.StreamConfig) ingest.TCPConfig {
	cfg := ingest.DefaultTCPConfig()
	cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	cfg.MaxEvents = s.MaxEvents
	cfg.MaxReconnects = s.MaxReconnects
	cfg.ProgressEvery = s.ProgressEvery
	if s.ReconnectDelay > 0 {
		cfg.ReconnectDelay = s.ReconnectDelay
	}
	return cfg
}

func kafkaConfig(s config.StreamConfig, k config.KafkaConfig) ingest.KafkaConfig {
	return ingest.KafkaConfig{
		Brokers:       k.Brokers,
		Topic:         k.Topic,
		GroupID:       k.GroupID,
		MaxEvents:     s.MaxEvents,
		ProgressEvery: s.ProgressEvery,
	}
}

// newSource builds the configured stream source.
func newSource(cfg *config.Config) ingest.Source {
	if cfg.Stream.Source == "kafka" {
		return ingest.NewKafkaSource(kafkaConfig(cfg.Stream, cfg.Kafka))
	}
	return ingest.NewTCPSource(tcpConfig(cfg.Stream))
}

func middlewareConfig(s config.ServerConfig) *api.ChiMiddlewareConfig {
	cfg := api.DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = s.CORSOrigins
	cfg.RateLimitRequests = s.RateLimitRequests
	if s.RateLimitWindow > 0 {
		cfg.RateLimitWindow = s.RateLimitWindow
	}
	return cfg
}

func webhookConfig(n config.NotifyConfig) notify.WebhookConfig {
	cfg := notify.DefaultWebhookConfig(n.WebhookURL)
	cfg.RatePerMinute = n.WebhookRatePerMinute
	return cfg
}

func serverAddr(s config.ServerConfig) string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
