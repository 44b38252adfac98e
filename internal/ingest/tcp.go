// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// maxFrameBytes bounds one line of the stream protocol.
const maxFrameBytes = 1 << 20

// TCPConfig configures the stream server client.
type TCPConfig struct {
	Addr string

	// MaxEvents stops the source after this many envelopes; 0 means no limit.
	MaxEvents int

	// ReconnectDelay is the first backoff step; it doubles up to
	// MaxReconnectDelay and resets once a connection delivers a frame.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	// MaxReconnects is how many consecutive failed or empty sessions are
	// retried before Run gives up. 0 disables reconnecting.
	MaxReconnects int

	ProgressEvery int
	DialTimeout   time.Duration
}

// DefaultTCPConfig matches the stream server's defaults.
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		Addr:              "127.0.0.1:8765",
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 32 * time.Second,
		MaxReconnects:     5,
		ProgressEvery:     100,
		DialTimeout:       10 * time.Second,
	}
}

// TCPSource reads the stream server's line protocol.
type TCPSource struct {
	cfg   TCPConfig
	stats counters
}

// NewTCPSource creates a source. Zero durations take their defaults.
func NewTCPSource(cfg TCPConfig) *TCPSource {
	def := DefaultTCPConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = max(def.MaxReconnectDelay, cfg.ReconnectDelay)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	return &TCPSource{cfg: cfg}
}

// Stats implements Source.
func (s *TCPSource) Stats() Stats { return s.stats.snapshot() }

// Run connects and feeds every frame to h. It returns nil when ctx is
// canceled, the event limit is reached, or the server closes the stream
// with reconnects exhausted; it returns the last error when every attempt
// failed.
func (s *TCPSource) Run(ctx context.Context, h Handler) error {
	d := newDispatcher("tcp", h, s.cfg.MaxEvents, s.cfg.ProgressEvery, &s.stats)
	delay := s.cfg.ReconnectDelay
	attempts := 0

	for {
		frames, err := s.session(ctx, d)
		if ctx.Err() != nil || d.done() {
			return nil
		}
		if frames > 0 {
			attempts = 0
			delay = s.cfg.ReconnectDelay
		}
		if attempts >= s.cfg.MaxReconnects {
			if err != nil {
				return err
			}
			logging.Info().Str("addr", s.cfg.Addr).Msg("stream closed by server")
			return nil
		}

		attempts++
		s.stats.reconnect.Add(1)
		metrics.StreamReconnects.Inc()
		logging.Warn().Err(err).
			Str("addr", s.cfg.Addr).
			Dur("delay", delay).
			Int("attempt", attempts).
			Msg("stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, s.cfg.MaxReconnectDelay)
	}
}

// session runs one connection to completion and returns how many frames it
// delivered. A clean EOF returns a nil error.
func (s *TCPSource) session(ctx context.Context, d *dispatcher) (int, error) {
	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return 0, fmt.Errorf("dial stream %s: %w", s.cfg.Addr, err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock the scanner on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	metrics.SetStreamConnected(true)
	defer metrics.SetStreamConnected(false)
	logging.Info().Str("addr", s.cfg.Addr).Msg("connected to stream server")

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	frames := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		frames++
		d.dispatch(ctx, append([]byte(nil), line...))
		if d.done() {
			return frames, nil
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return frames, fmt.Errorf("read stream %s: %w", s.cfg.Addr, err)
	}
	return frames, nil
}
