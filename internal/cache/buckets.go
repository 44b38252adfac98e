// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package cache

import (
	"sort"
	"sync"
	"time"
)

// BucketCount is one (station, interval start) counter.
type BucketCount struct {
	Station string
	Start   time.Time
	Count   int
}

// BucketCounter counts events per station per interval bucket. Buckets are
// keyed by their start instant; callers floor timestamps before counting.
type BucketCounter struct {
	mu      sync.Mutex
	maxAge  time.Duration
	buckets map[string]map[int64]*BucketCount
}

// NewBucketCounter creates a counter whose buckets expire once their start
// is more than maxAge before the sweep time. maxAge 0 keeps all buckets.
func NewBucketCounter(maxAge time.Duration) *BucketCounter {
	return &BucketCounter{
		maxAge:  maxAge,
		buckets: make(map[string]map[int64]*BucketCount),
	}
}

// Increment adds one to the bucket and returns the new count.
func (b *BucketCounter) Increment(station string, start time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	perStation, ok := b.buckets[station]
	if !ok {
		perStation = make(map[int64]*BucketCount)
		b.buckets[station] = perStation
	}
	key := start.Unix()
	bc, ok := perStation[key]
	if !ok {
		bc = &BucketCount{Station: station, Start: start}
		perStation[key] = bc
	}
	bc.Count++
	return bc.Count
}

// Count returns the current count for a bucket.
func (b *BucketCounter) Count(station string, start time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bc, ok := b.buckets[station][start.Unix()]; ok {
		return bc.Count
	}
	return 0
}

// Len returns the number of live buckets across stations.
func (b *BucketCounter) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, perStation := range b.buckets {
		n += len(perStation)
	}
	return n
}

// Sweep drops expired buckets and returns how many were removed.
func (b *BucketCounter) Sweep(now time.Time) int {
	if b.maxAge <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for station, perStation := range b.buckets {
		for key, bc := range perStation {
			if now.Sub(bc.Start) > b.maxAge {
				delete(perStation, key)
				removed++
			}
		}
		if len(perStation) == 0 {
			delete(b.buckets, station)
		}
	}
	return removed
}

// Snapshot returns every bucket ordered by station, then start.
func (b *BucketCounter) Snapshot() []BucketCount {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []BucketCount
	for _, perStation := range b.buckets {
		for _, bc := range perStation {
			out = append(out, *bc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Station != out[j].Station {
			return out[i].Station < out[j].Station
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
