// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// KafkaConfig configures the Kafka consumer. Each message value is one
// frame in the stream line format.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	GroupID       string
	MaxEvents     int
	ProgressEvery int
}

// messageReader is the part of *kafka.Reader the source uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes frames from a topic with at-least-once delivery:
// offsets are committed after the frame is handled. Redelivered frames are
// absorbed by the anomaly sink's dedup.
type KafkaSource struct {
	cfg    KafkaConfig
	reader messageReader
	stats  counters
}

// NewKafkaSource creates a consumer-group reader for cfg.Topic.
func NewKafkaSource(cfg KafkaConfig) *KafkaSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaSource{cfg: cfg, reader: r}
}

// Stats implements Source.
func (s *KafkaSource) Stats() Stats { return s.stats.snapshot() }

// Run consumes until ctx is canceled or the event limit is reached.
func (s *KafkaSource) Run(ctx context.Context, h Handler) error {
	d := newDispatcher("kafka", h, s.cfg.MaxEvents, s.cfg.ProgressEvery, &s.stats)
	logging.Info().
		Strs("brokers", s.cfg.Brokers).
		Str("topic", s.cfg.Topic).
		Str("group_id", s.cfg.GroupID).
		Msg("consuming stream from kafka")
	metrics.SetStreamConnected(true)
	defer metrics.SetStreamConnected(false)

	for !d.done() {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		d.dispatch(ctx, msg.Value)

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Warn().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("failed to commit kafka offset")
		}
	}
	return nil
}

// Close closes the reader and leaves the consumer group.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
