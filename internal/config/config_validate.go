// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"fmt"

	"github.com/tomtom215/sentinel/internal/validation"
)

// Validate checks struct tags first, then cross-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	validators := []func() error{
		c.validateKafka,
		c.validateStore,
		c.validateServer,
		c.validateNotify,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateKafka() error {
	if c.Stream.Source != "kafka" {
		return nil
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when stream.source is kafka")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when stream.source is kafka")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when store.enabled is true")
	}
	if c.Store.Retention < 0 {
		return fmt.Errorf("store.retention must not be negative, got %v", c.Store.Retention)
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is on")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.NATSURL != "" && c.Notify.NATSSubject == "" {
		return fmt.Errorf("notify.nats_subject is required when notify.nats_url is set")
	}
	return nil
}
