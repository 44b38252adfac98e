// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

// RuleType identifies a detection rule.
type RuleType string

const (
	// RuleTypeScannerAvoidance flags items leaving the scan area unrung.
	RuleTypeScannerAvoidance RuleType = "scanner_avoidance"

	// RuleTypeBarcodeSwitching flags cheaper barcodes scanned for dearer items.
	RuleTypeBarcodeSwitching RuleType = "barcode_switching"

	// RuleTypeWeightDiscrepancy flags scale readings off the catalog weight.
	RuleTypeWeightDiscrepancy RuleType = "weight_discrepancy"

	// RuleTypeSystemError flags faulted records and recurring faults.
	RuleTypeSystemError RuleType = "system_error"

	// RuleTypeLongQueue flags queues that stay long for too long.
	RuleTypeLongQueue RuleType = "long_queue"

	// RuleTypeExtendedWait flags high average dwell times.
	RuleTypeExtendedWait RuleType = "extended_wait"

	// RuleTypeInventory compares shelf snapshots to catalog minus sales.
	RuleTypeInventory RuleType = "inventory_discrepancy"
)

// RuleTypes lists every rule in registration order.
var RuleTypes = []RuleType{
	RuleTypeScannerAvoidance,
	RuleTypeBarcodeSwitching,
	RuleTypeWeightDiscrepancy,
	RuleTypeSystemError,
	RuleTypeLongQueue,
	RuleTypeExtendedWait,
	RuleTypeInventory,
}

// Mode selects how correlation state is retained.
type Mode int

const (
	// ModeStreaming bounds caches and sweeps them periodically.
	ModeStreaming Mode = iota

	// ModeBatch retains everything and defers recurring summaries to Flush.
	ModeBatch
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeStreaming:
		return "streaming"
	case ModeBatch:
		return "batch"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrUnexpectedRecord is returned when a rule receives a record of a
// source it does not handle.
var ErrUnexpectedRecord = errors.New("unexpected record type")

// Detector is the interface for detection rules.
type Detector interface {
	// Type returns the rule type this detector handles.
	Type() RuleType

	// Check evaluates one record against the rule. Rules read the shared
	// state; only the queue and error-bucket rules write their own entries.
	Check(ctx context.Context, rec models.Record, st *State) ([]*models.Anomaly, error)

	// Configure updates the detector configuration. Fields absent from
	// config keep their current values.
	Configure(config json.RawMessage) error

	// Enabled returns whether this detector is currently enabled.
	Enabled() bool

	// SetEnabled enables or disables the detector.
	SetEnabled(enabled bool)
}

// Flusher is implemented by detectors that hold end-of-run summaries.
type Flusher interface {
	Flush(ctx context.Context, st *State) []*models.Anomaly
}

// Sink receives anomalies produced by the engine. Emit reports false when
// the anomaly was a duplicate and was dropped.
type Sink interface {
	Emit(ctx context.Context, a *models.Anomaly) (bool, error)
}

// Sweeper is implemented by sinks that hold bounded state the janitor
// should expire alongside the correlation caches.
type Sweeper interface {
	Sweep(now time.Time) int
}

// ruleBase holds the config and enabled flag shared by every detector.
type ruleBase[C any] struct {
	mu      sync.RWMutex
	config  C
	enabled bool
}

// snapshot returns the config and enabled flag under one read lock.
func (b *ruleBase[C]) snapshot() (C, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config, b.enabled
}

// Enabled returns whether the detector is enabled.
func (b *ruleBase[C]) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled enables or disables the detector.
func (b *ruleBase[C]) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// Config returns the current configuration.
func (b *ruleBase[C]) Config() C {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// configure overlays raw onto the current config and installs the result
// if validate accepts it.
func (b *ruleBase[C]) configure(raw json.RawMessage, validate func(C) error) error {
	b.mu.RLock()
	next := b.config
	b.mu.RUnlock()

	if err := json.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if validate != nil {
		if err := validate(next); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.config = next
	b.mu.Unlock()
	return nil
}

func unexpected(rt RuleType, rec models.Record) error {
	return fmt.Errorf("%s: %w %T", rt, ErrUnexpectedRecord, rec)
}
