// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package cache provides the bounded, time-expiring structures the
// detection engine correlates against: keyed windows, membership sets and
// per-station interval counters.
//
// Entries carry the arrival time supplied by the caller (usually the
// record's own timestamp). Nothing expires on read; limits are applied by
// Sweep, which the engine's janitor calls periodically:
//
//	w := cache.NewWindow[string](cache.Policy{MaxAge: 30 * time.Minute, MaxEntries: 10000})
//	w.Put("2025-08-13T16:00:01_SCC1", "PRD_F_01", arrival)
//	removed := w.Sweep(time.Now())
package cache

import (
	"container/heap"
	"sync"
	"time"
)

// Policy bounds a cache. A zero field disables that limit.
type Policy struct {
	// MaxAge removes entries whose arrival is more than MaxAge before now.
	MaxAge time.Duration

	// MaxEntries evicts the oldest arrivals until at most MaxEntries remain.
	MaxEntries int
}

// Unbounded keeps everything; used for offline runs over a finite data set.
var Unbounded = Policy{}

// Window is a last-write-wins map with arrival-ordered eviction.
// Safe for concurrent use.
type Window[V any] struct {
	mu     sync.RWMutex
	policy Policy
	byKey  map[string]*slot[V]
	order  arrivals[V]
}

type slot[V any] struct {
	key     string
	value   V
	arrival time.Time
	index   int
}

// NewWindow creates an empty window governed by p.
func NewWindow[V any](p Policy) *Window[V] {
	return &Window[V]{
		policy: p,
		byKey:  make(map[string]*slot[V]),
	}
}

// Put stores value under key, replacing any previous entry and its arrival.
func (w *Window[V]) Put(key string, value V, arrival time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.byKey[key]; ok {
		s.value = value
		s.arrival = arrival
		heap.Fix(&w.order, s.index)
		return
	}
	s := &slot[V]{key: key, value: value, arrival: arrival}
	w.byKey[key] = s
	heap.Push(&w.order, s)
}

// Get returns the live value for key.
func (w *Window[V]) Get(key string) (V, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if s, ok := w.byKey[key]; ok {
		return s.value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key has an entry.
func (w *Window[V]) Contains(key string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.byKey[key]
	return ok
}

// Len returns the number of entries.
func (w *Window[V]) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byKey)
}

// Sweep applies the age limit against now, then the size limit, and
// returns how many entries were removed.
func (w *Window[V]) Sweep(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	if w.policy.MaxAge > 0 {
		for w.order.Len() > 0 && now.Sub(w.order[0].arrival) > w.policy.MaxAge {
			w.popOldest()
			removed++
		}
	}
	if w.policy.MaxEntries > 0 {
		for w.order.Len() > w.policy.MaxEntries {
			w.popOldest()
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (w *Window[V]) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byKey = make(map[string]*slot[V])
	w.order = nil
}

// must hold mu
func (w *Window[V]) popOldest() {
	s, _ := heap.Pop(&w.order).(*slot[V])
	delete(w.byKey, s.key)
}

// arrivals is a min-heap on arrival time.
type arrivals[V any] []*slot[V]

func (a arrivals[V]) Len() int           { return len(a) }
func (a arrivals[V]) Less(i, j int) bool { return a[i].arrival.Before(a[j].arrival) }
func (a arrivals[V]) Swap(i, j int) {
	a[i], a[j] = a[j], a[i]
	a[i].index = i
	a[j].index = j
}

func (a *arrivals[V]) Push(x any) {
	s, _ := x.(*slot[V])
	s.index = len(*a)
	*a = append(*a, s)
}

func (a *arrivals[V]) Pop() any {
	old := *a
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.index = -1
	*a = old[:n-1]
	return s
}
