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

	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/catalog"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

// dispatchTable lists the rules each source runs, in evaluation order.
// Cache updates happen before the first rule; see updateCaches.
var dispatchTable = map[models.SourceType][]RuleType{
	models.SourceRFID:        {RuleTypeScannerAvoidance},
	models.SourcePOS:         {RuleTypeBarcodeSwitching, RuleTypeWeightDiscrepancy, RuleTypeSystemError},
	models.SourceQueue:       {RuleTypeLongQueue, RuleTypeExtendedWait, RuleTypeSystemError},
	models.SourceRecognition: {RuleTypeSystemError},
	models.SourceInventory:   {RuleTypeInventory},
}

// Engine evaluates store records against the detection rules. It owns the
// correlation state and serializes all mutation of it.
type Engine struct {
	mu        sync.Mutex
	cfg       EngineConfig
	state     *State
	detectors map[RuleType]Detector
	sink      Sink

	processed    int64
	metricsStore *EngineMetrics
}

// EngineConfig configures the detection engine.
type EngineConfig struct {
	// Mode selects streaming or batch retention.
	Mode Mode `json:"mode"`

	// Window is the correlation cache age limit in streaming mode.
	Window time.Duration `json:"window"`

	// MaxEntries caps each correlation cache in streaming mode.
	MaxEntries int `json:"max_entries"`

	// CleanupEvery runs the janitor after this many records. 0 disables it.
	CleanupEvery int `json:"cleanup_every"`

	ScannerAvoidance ScannerAvoidanceConfig `json:"scanner_avoidance"`
	BarcodeSwitch    BarcodeSwitchConfig    `json:"barcode_switch"`
	Weight           WeightConfig           `json:"weight"`
	SystemError      SystemErrorConfig      `json:"system_error"`
	LongQueue        LongQueueConfig        `json:"long_queue"`
	ExtendedWait     ExtendedWaitConfig     `json:"extended_wait"`
	Inventory        InventoryConfig        `json:"inventory"`
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Mode:             ModeStreaming,
		Window:           30 * time.Minute,
		MaxEntries:       10000,
		CleanupEvery:     100,
		ScannerAvoidance: DefaultScannerAvoidanceConfig(),
		BarcodeSwitch:    DefaultBarcodeSwitchConfig(),
		Weight:           DefaultWeightConfig(),
		SystemError:      DefaultSystemErrorConfig(),
		LongQueue:        DefaultLongQueueConfig(),
		ExtendedWait:     DefaultExtendedWaitConfig(),
		Inventory:        DefaultInventoryConfig(),
	}
}

// Policy returns the cache retention for cfg's mode.
func (cfg EngineConfig) Policy() cache.Policy {
	if cfg.Mode == ModeBatch {
		return cache.Unbounded
	}
	return cache.Policy{MaxAge: cfg.Window, MaxEntries: cfg.MaxEntries}
}

// EngineMetrics tracks detection engine activity.
type EngineMetrics struct {
	RecordsProcessed  int64
	AnomaliesEmitted  int64
	AnomaliesDropped  int64
	DetectionErrors   int64
	SinkErrors        int64
	JanitorRuns       int64
	ProcessingTimeNs  int64
	LastProcessedAt   time.Time
	RecordsBySource   map[models.SourceType]int64
	AnomaliesByName   map[models.EventName]int64
	DetectorMetrics   map[RuleType]*DetectorMetrics
	CacheSizes        map[string]int
	LastJanitorRemove int
}

// DetectorMetrics tracks individual detector performance.
type DetectorMetrics struct {
	RecordsChecked  int64
	AnomaliesRaised int64
	Errors          int64
	LastTriggeredAt *time.Time
}

// NewEngine creates an engine with all seven rules registered. sink may be
// nil, in which case Process returns anomalies without writing them.
func NewEngine(cfg EngineConfig, cat *catalog.Catalog, sink Sink) *Engine {
	e := &Engine{
		cfg:       cfg,
		state:     NewState(cfg.Mode, cat, cfg.Policy()),
		detectors: make(map[RuleType]Detector),
		sink:      sink,
		metricsStore: &EngineMetrics{
			RecordsBySource: make(map[models.SourceType]int64),
			AnomaliesByName: make(map[models.EventName]int64),
			DetectorMetrics: make(map[RuleType]*DetectorMetrics),
		},
	}

	e.RegisterDetector(NewScannerAvoidanceDetector(cfg.ScannerAvoidance))
	e.RegisterDetector(NewBarcodeSwitchDetector(cfg.BarcodeSwitch))
	e.RegisterDetector(NewWeightDetector(cfg.Weight))
	e.RegisterDetector(NewSystemErrorDetector(cfg.SystemError))
	e.RegisterDetector(NewLongQueueDetector(cfg.LongQueue))
	e.RegisterDetector(NewExtendedWaitDetector(cfg.ExtendedWait))
	e.RegisterDetector(NewInventoryDetector(cfg.Inventory))
	return e
}

// RegisterDetector adds or replaces the detector for its rule type.
func (e *Engine) RegisterDetector(detector Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ruleType := detector.Type()
	e.detectors[ruleType] = detector
	e.metricsStore.DetectorMetrics[ruleType] = &DetectorMetrics{}

	logging.Debug().Str("detector", string(ruleType)).Msg("registered detector")
}

// Mode returns the engine's processing mode.
func (e *Engine) Mode() Mode { return e.cfg.Mode }

// SetClock replaces the processing clock used for timestamp fallback and
// janitor sweeps.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Now = now
}

// Prime loads a record into the correlation caches without evaluating any
// rule. Batch runs prime every record so correlations see the whole data
// set. POS records prime the POS cache but not the sales count.
func (e *Engine) Prime(rec models.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := rec.Meta()
	switch r := rec.(type) {
	case *models.RFIDRecord:
		e.state.RFIDByKey.Put(h.CorrelationKey(), r.Data.SKU, e.state.arrival(h.Timestamp))
	case *models.RecognitionRecord:
		e.state.RecognitionByKey.Put(h.CorrelationKey(), r.Data.PredictedProduct, e.state.arrival(h.Timestamp))
	case *models.POSRecord:
		e.state.POSBySKU.Put(r.Data.SKU, r.Data.CustomerID, e.state.arrival(h.Timestamp))
	}
}

// Process evaluates one record and returns the anomalies the sink accepted.
// Rule failures do not stop evaluation; they are returned joined after every
// applicable rule has run.
func (e *Engine) Process(ctx context.Context, rec models.Record) ([]*models.Anomaly, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	src := rec.Source()
	rules, ok := dispatchTable[src]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownSource, src)
	}

	e.updateCaches(rec)

	var errs []error
	var emitted []*models.Anomaly
	for _, ruleType := range rules {
		detector, ok := e.detectors[ruleType]
		if !ok || !detector.Enabled() {
			continue
		}
		anomalies, err := e.runSingleDetector(ctx, detector, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		emitted = append(emitted, e.emit(ctx, anomalies)...)
	}

	e.processed++
	if e.cfg.Mode == ModeStreaming && e.cfg.CleanupEvery > 0 && e.processed%int64(e.cfg.CleanupEvery) == 0 {
		e.sweepLocked(e.state.Now())
	}

	e.updateProcessingMetrics(src, start)

	if len(errs) > 0 {
		return emitted, fmt.Errorf("detection errors: %w", errors.Join(errs...))
	}
	return emitted, nil
}

// Flush emits end-of-run summaries held by detectors. Batch runs call it
// once after the last record.
func (e *Engine) Flush(ctx context.Context) []*models.Anomaly {
	e.mu.Lock()
	defer e.mu.Unlock()

	var emitted []*models.Anomaly
	for _, ruleType := range RuleTypes {
		detector, ok := e.detectors[ruleType]
		if !ok || !detector.Enabled() {
			continue
		}
		if f, ok := detector.(Flusher); ok {
			emitted = append(emitted, e.emit(ctx, f.Flush(ctx, e.state))...)
		}
	}
	return emitted
}

// updateCaches applies the per-source state updates that precede rules.
func (e *Engine) updateCaches(rec models.Record) {
	h := rec.Meta()
	switch r := rec.(type) {
	case *models.RFIDRecord:
		e.state.RFIDByKey.Put(h.CorrelationKey(), r.Data.SKU, e.state.arrival(h.Timestamp))
	case *models.POSRecord:
		e.state.Sales[r.Data.SKU]++
		e.state.POSBySKU.Put(r.Data.SKU, r.Data.CustomerID, e.state.arrival(h.Timestamp))
	case *models.RecognitionRecord:
		e.state.RecognitionByKey.Put(h.CorrelationKey(), r.Data.PredictedProduct, e.state.arrival(h.Timestamp))
	}
}

// runSingleDetector executes one detector and updates its metrics.
func (e *Engine) runSingleDetector(ctx context.Context, detector Detector, rec models.Record) ([]*models.Anomaly, error) {
	ruleType := detector.Type()
	dm := e.metricsStore.DetectorMetrics[ruleType]
	if dm != nil {
		dm.RecordsChecked++
	}

	anomalies, err := detector.Check(ctx, rec, e.state)
	if err != nil {
		if dm != nil {
			dm.Errors++
		}
		e.metricsStore.DetectionErrors++
		metrics.RecordRuleError(string(ruleType))
		logging.Warn().Err(err).Str("rule", string(ruleType)).
			Str("timestamp", rec.Meta().Timestamp).Msg("rule evaluation failed")
		return nil, fmt.Errorf("%s: %w", ruleType, err)
	}

	if len(anomalies) > 0 && dm != nil {
		dm.AnomaliesRaised += int64(len(anomalies))
		now := time.Now()
		dm.LastTriggeredAt = &now
	}
	return anomalies, nil
}

// emit hands anomalies to the sink and keeps the ones it accepted.
func (e *Engine) emit(ctx context.Context, anomalies []*models.Anomaly) []*models.Anomaly {
	if len(anomalies) == 0 {
		return nil
	}
	out := anomalies[:0]
	for _, a := range anomalies {
		name := string(a.Name())
		if e.sink != nil {
			ok, err := e.sink.Emit(ctx, a)
			if err != nil {
				e.metricsStore.SinkErrors++
				logging.Error().Err(err).Str("event_name", name).Str("event_id", a.EventID).
					Msg("failed to emit anomaly")
				continue
			}
			if !ok {
				e.metricsStore.AnomaliesDropped++
				metrics.RecordAnomaly(name, false)
				continue
			}
		}
		e.metricsStore.AnomaliesEmitted++
		e.metricsStore.AnomaliesByName[a.Name()]++
		metrics.RecordAnomaly(name, true)
		out = append(out, a)
	}
	return out
}

// updateProcessingMetrics records processing time and record count.
func (e *Engine) updateProcessingMetrics(src models.SourceType, start time.Time) {
	elapsed := time.Since(start)
	e.metricsStore.RecordsProcessed++
	e.metricsStore.RecordsBySource[src]++
	e.metricsStore.ProcessingTimeNs = elapsed.Nanoseconds()
	e.metricsStore.LastProcessedAt = time.Now()
	metrics.RecordRecord(string(src), elapsed)
}

// GetDetector returns a detector by rule type.
func (e *Engine) GetDetector(ruleType RuleType) (Detector, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.detectors[ruleType]
	return d, ok
}

// ConfigureDetector updates a detector's configuration.
func (e *Engine) ConfigureDetector(ruleType RuleType, config json.RawMessage) error {
	detector, ok := e.GetDetector(ruleType)
	if !ok {
		return fmt.Errorf("detector not found: %s", ruleType)
	}
	return detector.Configure(config)
}

// SetDetectorEnabled enables or disables a specific detector.
func (e *Engine) SetDetectorEnabled(ruleType RuleType, enabled bool) error {
	detector, ok := e.GetDetector(ruleType)
	if !ok {
		return fmt.Errorf("detector not found: %s", ruleType)
	}
	detector.SetEnabled(enabled)
	return nil
}

// Metrics returns a copy of the engine metrics.
func (e *Engine) Metrics() EngineMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := *e.metricsStore
	m.RecordsBySource = make(map[models.SourceType]int64, len(e.metricsStore.RecordsBySource))
	for k, v := range e.metricsStore.RecordsBySource {
		m.RecordsBySource[k] = v
	}
	m.AnomaliesByName = make(map[models.EventName]int64, len(e.metricsStore.AnomaliesByName))
	for k, v := range e.metricsStore.AnomaliesByName {
		m.AnomaliesByName[k] = v
	}
	m.DetectorMetrics = make(map[RuleType]*DetectorMetrics, len(e.metricsStore.DetectorMetrics))
	for k, v := range e.metricsStore.DetectorMetrics {
		dm := *v
		m.DetectorMetrics[k] = &dm
	}
	m.CacheSizes = e.state.CacheSizes()
	return m
}
