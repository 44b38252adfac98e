// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// Sweep expires correlation state against now and returns the number of
// entries removed. Streaming engines also sweep on their own every
// CleanupEvery records.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sweepLocked(now)
}

func (e *Engine) sweepLocked(now time.Time) int {
	removed := map[string]int{
		"pos":          e.state.POSBySKU.Sweep(now),
		"rfid":         e.state.RFIDByKey.Sweep(now),
		"recognition":  e.state.RecognitionByKey.Sweep(now),
		"error_bucket": e.state.Errors.Sweep(now),
		"queue_flag":   e.sweepQueueFlags(),
	}
	if sw, ok := e.sink.(Sweeper); ok {
		removed["dedup"] = sw.Sweep(now)
	}

	total := 0
	for name, n := range removed {
		total += n
		metrics.RecordEvictions(name, n)
	}
	e.metricsStore.JanitorRuns++
	e.metricsStore.LastJanitorRemove = total
	metrics.UpdateCacheSizes(e.state.CacheSizes())

	if total > 0 {
		logging.Debug().Int("removed", total).Int("pos", removed["pos"]).
			Int("rfid", removed["rfid"]).Int("recognition", removed["recognition"]).
			Msg("cleaned expired cache entries")
	}
	return total
}

// sweepQueueFlags forgets flagged run starts except the one belonging to a
// station's current run, which must stay to suppress re-flagging.
func (e *Engine) sweepQueueFlags() int {
	removed := 0
	for _, q := range e.state.Queues {
		current := ""
		if q.Running {
			current = startKey(q.Start)
		}
		for key := range q.Flagged {
			if key != current {
				delete(q.Flagged, key)
				removed++
			}
		}
	}
	return removed
}
