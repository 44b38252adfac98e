// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package notify forwards anomalies to systems outside the store: a generic
// JSON webhook and a NATS subject. Both implement eventbus.Consumer.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL     string
	Headers map[string]string

	// RatePerMinute caps deliveries; 0 disables the limit.
	RatePerMinute int
	Timeout       time.Duration

	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultWebhookConfig returns production defaults for url.
func DefaultWebhookConfig(url string) WebhookConfig {
	return WebhookConfig{
		URL:              url,
		RatePerMinute:    60,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      time.Minute,
	}
}

// WebhookPayload is the JSON body posted for each anomaly.
type WebhookPayload struct {
	Alert     *models.Anomaly `json:"alert"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// WebhookNotifier posts anomalies to an HTTP endpoint behind a rate limiter
// and a circuit breaker.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier creates a notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		cb:      newBreaker("webhook", cfg.FailureThreshold, cfg.OpenTimeout),
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Consume implements eventbus.Consumer.
func (n *WebhookNotifier) Consume(ctx context.Context, a *models.Anomaly) error {
	return n.Send(ctx, a)
}

// Send delivers one anomaly. It waits for the rate limiter and fails fast
// with gobreaker.ErrOpenState while the breaker is open.
func (n *WebhookNotifier) Send(ctx context.Context, a *models.Anomaly) (err error) {
	defer func() { metrics.RecordNotification(n.Name(), err) }()

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Alert:     a,
		EventType: "anomaly_detected",
		Timestamp: time.Now().UTC(),
		Source:    "sentinel",
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	_, err = n.cb.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues("webhook", "rejected").Inc()
		logging.Warn().Err(err).Str("event_id", a.EventID).Msg("webhook delivery rejected by circuit breaker")
		return err
	}
	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues("webhook", "failure").Inc()
		return err
	}
	metrics.CircuitBreakerRequests.WithLabelValues("webhook", "success").Inc()
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// State reports the breaker state.
func (n *WebhookNotifier) State() gobreaker.State { return n.cb.State() }

func newBreaker(name string, threshold uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[struct{}] {
	if threshold == 0 {
		threshold = 5
	}
	if openTimeout <= 0 {
		openTimeout = time.Minute
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), int(to))
		},
	})
}
