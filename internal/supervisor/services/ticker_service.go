// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package services

import (
	"context"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
)

// TickerService calls fn every interval until the context is canceled.
// An error from fn is logged and the next tick runs as usual.
type TickerService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
}

// NewTickerService creates a periodic task. interval must be positive.
func NewTickerService(name string, interval time.Duration, fn func(ctx context.Context) error) *TickerService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TickerService{name: name, interval: interval, fn: fn}
}

// Serve implements suture.Service.
func (t *TickerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.fn(ctx); err != nil {
				logging.Warn().Err(err).Str("service", t.name).Msg("periodic task failed")
			}
		}
	}
}

// String implements fmt.Stringer.
func (t *TickerService) String() string { return t.name }
