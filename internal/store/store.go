// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package store keeps recent anomalies in BadgerDB for the query API.
//
// Keys are ordered by anomaly timestamp so listings iterate newest first
// without a secondary sort:
//
//	anomaly:<timestamp>:<event_id> -> anomaly JSON
//	id:<event_id>                  -> primary key
//
// Both keys carry the retention TTL; BadgerDB expires them natively.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

const (
	prefixAnomaly = "anomaly:"
	prefixID      = "id:"
)

var (
	// ErrNotFound is returned by Get for unknown or expired ids.
	ErrNotFound = errors.New("anomaly not found")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store closed")
)

// Config configures the store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool

	// Retention is the TTL of every entry; 0 keeps entries forever.
	Retention  time.Duration
	SyncWrites bool
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	EventName models.EventName
	StationID string
	// Since and Until bound the anomaly timestamp, inclusive, compared as
	// strings in the sensor timestamp layout.
	Since string
	Until string
	Limit int
}

func (f Filter) match(a *models.Anomaly) bool {
	if f.EventName != "" && a.Name() != f.EventName {
		return false
	}
	if f.StationID != "" && a.EventData.Station() != f.StationID {
		return false
	}
	if f.Since != "" && a.Timestamp < f.Since {
		return false
	}
	if f.Until != "" && a.Timestamp > f.Until {
		return false
	}
	return true
}

// Store is a BadgerDB-backed anomaly index.
type Store struct {
	db        *badger.DB
	retention time.Duration

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("retention", cfg.Retention).
		Msg("anomaly store opened")
	return &Store{db: db, retention: cfg.Retention}, nil
}

func anomalyKey(a *models.Anomaly) []byte {
	return []byte(prefixAnomaly + a.Timestamp + ":" + a.EventID)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *Store) entry(key, value []byte) *badger.Entry {
	e := badger.NewEntry(key, value)
	if s.retention > 0 {
		e = e.WithTTL(s.retention)
	}
	return e
}

// Put stores a. Storing the same event id twice overwrites it.
func (s *Store) Put(_ context.Context, a *models.Anomaly) (err error) {
	defer func() { metrics.RecordStoreOperation("put", err) }()

	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode anomaly %s: %w", a.EventID, err)
	}

	key := anomalyKey(a)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(s.entry(key, data)); err != nil {
			return err
		}
		return txn.SetEntry(s.entry([]byte(prefixID+a.EventID), key))
	})
	if err != nil {
		return fmt.Errorf("store anomaly %s: %w", a.EventID, err)
	}
	return nil
}

// Consume implements eventbus.Consumer.
func (s *Store) Consume(ctx context.Context, a *models.Anomaly) error {
	return s.Put(ctx, a)
}

// Get returns one anomaly by event id.
func (s *Store) Get(_ context.Context, eventID string) (a *models.Anomaly, err error) {
	defer func() {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordStoreOperation("get", err)
		}
	}()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get([]byte(prefixID + eventID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			a, err = models.ParseAnomaly(val)
			return err
		})
	})
	return a, err
}

// List returns matching anomalies, newest first.
func (s *Store) List(ctx context.Context, f Filter) (out []*models.Anomaly, err error) {
	defer func() { metrics.RecordStoreOperation("list", err) }()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixAnomaly)
		for it.Seek(append([]byte(prefixAnomaly), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var a *models.Anomaly
			err := it.Item().Value(func(val []byte) error {
				var perr error
				a, perr = models.ParseAnomaly(val)
				return perr
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("skipping undecodable stored anomaly")
				continue
			}
			if !f.match(a) {
				continue
			}
			out = append(out, a)
			if f.Limit > 0 && len(out) >= f.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	return out, nil
}

// CountByName tallies stored anomalies per event name.
func (s *Store) CountByName(ctx context.Context) (map[models.EventName]int, error) {
	all, err := s.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[models.EventName]int)
	for _, a := range all {
		counts[a.Name()]++
	}
	return counts, nil
}

// RunGC reclaims value log space until BadgerDB reports nothing to rewrite.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("anomaly store closed")
	return nil
}
