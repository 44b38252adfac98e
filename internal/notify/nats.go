// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

// DefaultNATSSubject is used when no subject is configured. The event name
// is appended as a token, e.g. "sentinel.anomalies.scanner_avoidance".
const DefaultNATSSubject = "sentinel.anomalies"

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSPublisher publishes anomalies as JSON on a NATS subject. The
// Nats-Msg-Id header carries the event id so JetStream consumers can
// deduplicate.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to cfg.URL.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultNATSSubject
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("sentinel"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logging.Info().Str("url", cfg.URL).Str("subject", cfg.Subject).Msg("NATS publisher connected")
	return &NATSPublisher{conn: conn, subject: cfg.Subject}, nil
}

// Name returns the notifier name.
func (p *NATSPublisher) Name() string { return "nats" }

// Subject returns the subject a is published on.
func (p *NATSPublisher) Subject(a *models.Anomaly) string {
	return p.subject + "." + subjectToken(a.Name())
}

// Consume implements eventbus.Consumer.
func (p *NATSPublisher) Consume(ctx context.Context, a *models.Anomaly) error {
	return p.Publish(ctx, a)
}

// Publish sends a. Delivery is fire-and-forget; the client buffers while
// reconnecting.
func (p *NATSPublisher) Publish(_ context.Context, a *models.Anomaly) (err error) {
	defer func() { metrics.RecordNotification(p.Name(), err) }()

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode anomaly %s: %w", a.EventID, err)
	}

	msg := nats.NewMsg(p.Subject(a))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, a.EventID)
	msg.Header.Set("Sentinel-Event-Name", string(a.Name()))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish anomaly %s: %w", a.EventID, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// subjectToken turns an event name into a subject token:
// "Long Queue Length" becomes "long_queue_length".
func subjectToken(name models.EventName) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case c == ' ', c == '.', c == '*', c == '>':
			b[i] = '_'
		}
	}
	return string(b)
}
