// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package cache

import (
	"container/heap"
	"time"
)

// Set is a bounded membership set, used for anomaly de-duplication.
type Set struct {
	w *Window[struct{}]
}

// NewSet creates an empty set governed by p.
func NewSet(p Policy) *Set {
	return &Set{w: NewWindow[struct{}](p)}
}

// Add records key and reports whether it was new. An existing key keeps
// its original arrival so that a flood of repeats cannot pin it forever.
func (s *Set) Add(key string, arrival time.Time) bool {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()

	if _, ok := s.w.byKey[key]; ok {
		return false
	}
	sl := &slot[struct{}]{key: key, arrival: arrival}
	s.w.byKey[key] = sl
	heap.Push(&s.w.order, sl)
	return true
}

// Contains reports membership.
func (s *Set) Contains(key string) bool { return s.w.Contains(key) }

// Len returns the number of members.
func (s *Set) Len() int { return s.w.Len() }

// Sweep applies the set's policy.
func (s *Set) Sweep(now time.Time) int { return s.w.Sweep(now) }
