// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package models

import (
	"strings"
	"time"
)

// BucketLayout formats error bucket starts. Zone-less, matching how
// sensors usually stamp local store time.
const BucketLayout = "2006-01-02T15:04:05"

// zoned layouts carry an explicit offset; local layouts are read in
// time.Local.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999-0700",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

// ParseTimestamp parses the ISO-8601 shapes seen from store sensors.
// ok is false when no layout matches.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimestampOr parses s or returns fallback.
func ParseTimestampOr(s string, fallback time.Time) (time.Time, bool) {
	if t, ok := ParseTimestamp(s); ok {
		return t, true
	}
	return fallback, false
}

// FloorToInterval zeroes seconds and rounds the minute down to a multiple
// of interval minutes, keeping the wall clock of t's location.
func FloorToInterval(t time.Time, interval time.Duration) time.Time {
	minutes := int(interval / time.Minute)
	if minutes <= 0 {
		minutes = 1
	}
	minute := t.Minute() - t.Minute()%minutes
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}
