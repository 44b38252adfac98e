// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package cache

import (
	"errors"
	"testing"
	"time"
)

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)
	c := NewTTL[int](5 * time.Second)
	c.now = func() time.Time { return now }

	c.Set("counts", 7)
	if v, ok := c.Get("counts"); !ok || v != 7 {
		t.Fatalf("Get = %d, %v", v, ok)
	}

	now = now.Add(5 * time.Second)
	if _, ok := c.Get("counts"); ok {
		t.Error("entry served at its expiry instant")
	}
	if got := c.HitRate(); got != 50 {
		t.Errorf("HitRate = %v, want 50", got)
	}
}

func TestTTLGetOrLoad(t *testing.T) {
	t.Parallel()

	c := NewTTL[string](time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "v", nil
	}
	for i := 0; i < 3; i++ {
		if v, err := c.GetOrLoad("k", load); err != nil || v != "v" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("bad", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("failed load was cached")
	}
}
