// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package eventbus fans accepted anomalies out to in-process consumers.

The anomaly sink publishes every anomaly it writes to TopicAnomalies on a
Watermill GoChannel. Consumers (the anomaly store, the live WebSocket feed,
outbound notifiers) each get their own router handler, so a slow or failing
consumer never blocks detection or the others.

	sink.Sink ──Publish──▶ GoChannel[sentinel.anomalies]
	                          │
	                          ├──▶ handler "store"      ──▶ store.Store
	                          ├──▶ handler "live-feed"  ──▶ websocket.Hub
	                          └──▶ handler "webhook"    ──▶ notify.WebhookNotifier

Router middleware, outer to inner: Recoverer, then Retry with exponential
backoff. A payload that cannot be decoded is acknowledged and dropped.
*/
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

// TopicAnomalies carries every anomaly accepted by the sink.
const TopicAnomalies = "sentinel.anomalies"

// Metadata keys set on published messages.
const (
	MetadataEventName = "event_name"
	MetadataStationID = "station_id"
)

// Config holds bus and router settings.
type Config struct {
	// OutputBuffer is the per-subscriber channel buffer.
	OutputBuffer int64

	// CloseTimeout is how long Close waits for in-flight handlers.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		OutputBuffer:         1024,
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		RetryMultiplier:      2.0,
	}
}

// Consumer receives anomalies from the bus. A returned error triggers a
// retry with backoff.
type Consumer interface {
	Consume(ctx context.Context, a *models.Anomaly) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, a *models.Anomaly) error

// Consume implements Consumer.
func (f ConsumerFunc) Consume(ctx context.Context, a *models.Anomaly) error { return f(ctx, a) }

// Bus is the in-process anomaly bus.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter

	mu        sync.Mutex
	consumers []string
}

// New creates a bus. Consumers must be added with Subscribe before Run.
func New(cfg Config) (*Bus, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.OutputBuffer,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	return &Bus{pubsub: pubsub, router: router, logger: logger}, nil
}

// Name implements sink.Publisher.
func (b *Bus) Name() string { return "eventbus" }

// Publish sends a to every consumer. The message UUID is the event id.
func (b *Bus) Publish(ctx context.Context, a *models.Anomaly) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode anomaly %s: %w", a.EventID, err)
	}

	msg := message.NewMessage(a.EventID, payload)
	msg.Metadata.Set(MetadataEventName, string(a.Name()))
	msg.Metadata.Set(MetadataStationID, a.EventData.Station())
	msg.SetContext(ctx)

	err = b.pubsub.Publish(TopicAnomalies, msg)
	metrics.RecordBusPublish(TopicAnomalies, err)
	if err != nil {
		return fmt.Errorf("publish anomaly %s: %w", a.EventID, err)
	}
	return nil
}

// Subscribe registers a named consumer of TopicAnomalies.
func (b *Bus) Subscribe(name string, c Consumer) {
	b.mu.Lock()
	b.consumers = append(b.consumers, name)
	b.mu.Unlock()

	b.router.AddConsumerHandler(name, TopicAnomalies, b.pubsub, func(msg *message.Message) error {
		a, err := models.ParseAnomaly(msg.Payload)
		if err != nil {
			logging.Warn().Err(err).Str("consumer", name).Str("message_uuid", msg.UUID).
				Msg("dropping undecodable anomaly message")
			return nil
		}
		return c.Consume(msg.Context(), a)
	})
	logging.Debug().Str("consumer", name).Str("topic", TopicAnomalies).Msg("registered bus consumer")
}

// Consumers lists registered consumer names.
func (b *Bus) Consumers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.consumers...)
}

// Run starts the router and blocks until ctx is canceled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}

// Close stops the router, waiting for in-flight handlers, then closes the
// channel.
func (b *Bus) Close() error {
	rerr := b.router.Close()
	perr := b.pubsub.Close()
	if rerr != nil {
		return fmt.Errorf("close router: %w", rerr)
	}
	if perr != nil {
		return fmt.Errorf("close pubsub: %w", perr)
	}
	return nil
}
