// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package services

import (
	"context"
	"sync"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/logging"
)

// IngestService drives a stream source. The source already retries its own
// connection, so when Run returns the run is over: the service records the
// outcome, closes Done and asks its supervisor not to restart it. The caller
// watches Done to drain and stop the rest of the tree.
type IngestService struct {
	source  ingest.Source
	handler ingest.Handler
	name    string

	ready <-chan struct{}

	mu   sync.Mutex
	err  error
	done chan struct{}
	once sync.Once
}

// NewIngestService wraps source, delivering records to h.
func NewIngestService(name string, source ingest.Source, h ingest.Handler) *IngestService {
	return &IngestService{
		source:  source,
		handler: h,
		name:    name,
		done:    make(chan struct{}),
	}
}

// After delays reading until ready is closed, so records are not accepted
// before their consumers are subscribed.
func (s *IngestService) After(ready <-chan struct{}) *IngestService {
	s.ready = ready
	return s
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	if s.ready != nil {
		select {
		case <-s.ready:
		case <-ctx.Done():
			s.finish(nil)
			return ctx.Err()
		}
	}

	err := s.source.Run(ctx, s.handler)
	if ctx.Err() != nil {
		// Shutdown from outside; nothing to report.
		s.finish(nil)
		return ctx.Err()
	}

	s.finish(err)
	if err != nil {
		logging.Error().Err(err).Str("service", s.name).Msg("stream ingest stopped")
	} else {
		logging.Info().Str("service", s.name).Msg("stream ingest finished")
	}
	return suture.ErrDoNotRestart
}

func (s *IngestService) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}

// Done is closed once the source has stopped.
func (s *IngestService) Done() <-chan struct{} { return s.done }

// Err returns the error the source stopped with, if any.
func (s *IngestService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns the source counters.
func (s *IngestService) Stats() ingest.Stats { return s.source.Stats() }

// String implements fmt.Stringer.
func (s *IngestService) String() string { return s.name }
