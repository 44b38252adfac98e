// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/models"
	"github.com/tomtom215/sentinel/internal/store"
	"github.com/tomtom215/sentinel/internal/validation"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// AnomalyStore is satisfied by *store.Store.
type AnomalyStore interface {
	List(ctx context.Context, f store.Filter) ([]*models.Anomaly, error)
	Get(ctx context.Context, eventID string) (*models.Anomaly, error)
	CountByName(ctx context.Context) (map[models.EventName]int, error)
}

// DetectionEngine is satisfied by *detection.Engine.
type DetectionEngine interface {
	Metrics() detection.EngineMetrics
	Mode() detection.Mode
	GetDetector(ruleType detection.RuleType) (detection.Detector, bool)
	SetDetectorEnabled(ruleType detection.RuleType, enabled bool) error
	ConfigureDetector(ruleType detection.RuleType, config json.RawMessage) error
}

// Deps are the components the handlers read. Store, Stats and Hub are
// optional.
type Deps struct {
	Engine  DetectionEngine
	Store   AnomalyStore
	Stats   func() ingest.Stats
	Hub     http.Handler
	Version string
}

// storedCountsTTL bounds how stale /api/v1/stats store counts may be.
// Counting walks every stored key.
const storedCountsTTL = 5 * time.Second

// Handler implements the HTTP endpoints.
type Handler struct {
	deps      Deps
	startTime time.Time
	counts    *cache.TTL[map[models.EventName]int]
}

// NewHandler creates a handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:      deps,
		startTime: time.Now(),
		counts:    cache.NewTTL[map[models.EventName]int](storedCountsTTL),
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	Mode          string  `json:"mode"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	StoreEnabled  bool    `json:"store_enabled"`
	LiveFeed      bool    `json:"live_feed"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondData(w, HealthResponse{
		Status:        "healthy",
		Version:       h.deps.Version,
		Mode:          h.deps.Engine.Mode().String(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		StoreEnabled:  h.deps.Store != nil,
		LiveFeed:      h.deps.Hub != nil,
	}, nil)
}

// ListAnomaliesRequest holds the /api/v1/anomalies query.
type ListAnomaliesRequest struct {
	EventName string `validate:"omitempty,event_name"`
	StationID string `validate:"omitempty,max=64"`
	Since     string `validate:"omitempty,datetime=2006-01-02T15:04:05"`
	Until     string `validate:"omitempty,datetime=2006-01-02T15:04:05"`
	Limit     int    `validate:"min=1,max=1000"`
}

func parseListRequest(r *http.Request) (ListAnomaliesRequest, error) {
	q := r.URL.Query()
	req := ListAnomaliesRequest{
		EventName: q.Get("event_name"),
		StationID: q.Get("station_id"),
		Since:     q.Get("since"),
		Until:     q.Get("until"),
		Limit:     defaultListLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, &validation.Error{Fields: []validation.FieldError{{Field: "ListAnomaliesRequest.Limit", Tag: "integer"}}}
		}
		req.Limit = n
	}
	return req, validation.ValidateStruct(&req)
}

func validationDetails(err error) []string {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	out := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = f.String()
	}
	return out
}

// ListAnomalies returns stored anomalies, newest first.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "anomaly store is not enabled", nil)
		return
	}
	req, err := parseListRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid query parameters", nil, validationDetails(err)...)
		return
	}

	items, err := h.deps.Store.List(r.Context(), store.Filter{
		EventName: models.EventName(req.EventName),
		StationID: req.StationID,
		Since:     req.Since,
		Until:     req.Until,
		Limit:     req.Limit,
	})
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "failed to list anomalies", err)
		return
	}
	if items == nil {
		items = []*models.Anomaly{}
	}
	n := len(items)
	respondData(w, items, &n)
}

// GetAnomaly returns one stored anomaly by event id.
func (h *Handler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "anomaly store is not enabled", nil)
		return
	}
	id := chi.URLParam(r, "id")
	a, err := h.deps.Store.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "anomaly "+id+" not found", nil)
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "failed to load anomaly", err)
	default:
		respondData(w, a, nil)
	}
}

// IngestStats is the stream section of /api/v1/stats.
type IngestStats struct {
	ingest.Stats
	DetectionRate float64 `json:"detection_rate"`
}

// EngineStats is the engine section of /api/v1/stats.
type EngineStats struct {
	RecordsProcessed int64                       `json:"records_processed"`
	AnomaliesEmitted int64                       `json:"anomalies_emitted"`
	AnomaliesDropped int64                       `json:"anomalies_dropped"`
	DetectionErrors  int64                       `json:"detection_errors"`
	SinkErrors       int64                       `json:"sink_errors"`
	JanitorRuns      int64                       `json:"janitor_runs"`
	LastProcessedAt  *time.Time                  `json:"last_processed_at,omitempty"`
	RecordsBySource  map[models.SourceType]int64 `json:"records_by_source"`
	AnomaliesByName  map[models.EventName]int64  `json:"anomalies_by_name"`
	CacheSizes       map[string]int              `json:"cache_sizes"`
}

// StatsResponse is returned by /api/v1/stats.
type StatsResponse struct {
	Ingest *IngestStats             `json:"ingest,omitempty"`
	Engine EngineStats              `json:"engine"`
	Stored map[models.EventName]int `json:"stored,omitempty"`

	// StoredCacheHitRate is the percentage of stats requests served
	// stored counts from cache instead of the store.
	StoredCacheHitRate *float64 `json:"stored_cache_hit_rate,omitempty"`
}

func engineStats(m detection.EngineMetrics) EngineStats {
	s := EngineStats{
		RecordsProcessed: m.RecordsProcessed,
		AnomaliesEmitted: m.AnomaliesEmitted,
		AnomaliesDropped: m.AnomaliesDropped,
		DetectionErrors:  m.DetectionErrors,
		SinkErrors:       m.SinkErrors,
		JanitorRuns:      m.JanitorRuns,
		RecordsBySource:  m.RecordsBySource,
		AnomaliesByName:  m.AnomaliesByName,
		CacheSizes:       m.CacheSizes,
	}
	if !m.LastProcessedAt.IsZero() {
		t := m.LastProcessedAt.UTC()
		s.LastProcessedAt = &t
	}
	return s
}

// Stats returns counters from ingestion, the engine and the store.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Engine: engineStats(h.deps.Engine.Metrics())}
	if h.deps.Stats != nil {
		st := h.deps.Stats()
		resp.Ingest = &IngestStats{Stats: st, DetectionRate: st.DetectionRate()}
	}
	if h.deps.Store != nil {
		counts, err := h.counts.GetOrLoad("stored", func() (map[models.EventName]int, error) {
			return h.deps.Store.CountByName(r.Context())
		})
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, CodeInternal, "failed to count stored anomalies", err)
			return
		}
		resp.Stored = counts
		rate := h.counts.HitRate()
		resp.StoredCacheHitRate = &rate
	}
	respondData(w, resp, nil)
}

// DetectorInfo describes one rule.
type DetectorInfo struct {
	Rule            detection.RuleType `json:"rule"`
	Enabled         bool               `json:"enabled"`
	RecordsChecked  int64              `json:"records_checked"`
	AnomaliesRaised int64              `json:"anomalies_raised"`
	Errors          int64              `json:"errors"`
	LastTriggeredAt *time.Time         `json:"last_triggered_at,omitempty"`
}

func (h *Handler) detectorInfo(rule detection.RuleType, m detection.EngineMetrics) (DetectorInfo, bool) {
	d, ok := h.deps.Engine.GetDetector(rule)
	if !ok {
		return DetectorInfo{}, false
	}
	info := DetectorInfo{Rule: rule, Enabled: d.Enabled()}
	if dm := m.DetectorMetrics[rule]; dm != nil {
		info.RecordsChecked = dm.RecordsChecked
		info.AnomaliesRaised = dm.AnomaliesRaised
		info.Errors = dm.Errors
		info.LastTriggeredAt = dm.LastTriggeredAt
	}
	return info, true
}

// Detectors lists every registered rule in registration order.
func (h *Handler) Detectors(w http.ResponseWriter, _ *http.Request) {
	m := h.deps.Engine.Metrics()
	out := make([]DetectorInfo, 0, len(detection.RuleTypes))
	for _, rule := range detection.RuleTypes {
		if info, ok := h.detectorInfo(rule, m); ok {
			out = append(out, info)
		}
	}
	n := len(out)
	respondData(w, out, &n)
}

// UpdateDetectorRequest is the PATCH /api/v1/detectors/{rule} body. Config
// fields absent from the object keep their values.
type UpdateDetectorRequest struct {
	Enabled *bool           `json:"enabled"`
	Config  json.RawMessage `json:"config"`
}

// UpdateDetector toggles or retunes a rule at runtime.
func (h *Handler) UpdateDetector(w http.ResponseWriter, r *http.Request) {
	rule := detection.RuleType(chi.URLParam(r, "rule"))
	if _, ok := h.deps.Engine.GetDetector(rule); !ok {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "unknown rule "+string(rule), nil)
		return
	}

	var req UpdateDetectorRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body", nil, err.Error())
		return
	}
	if req.Enabled == nil && len(req.Config) == 0 {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "nothing to update", nil, "set enabled or config")
		return
	}

	if len(req.Config) > 0 {
		if err := h.deps.Engine.ConfigureDetector(rule, req.Config); err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid rule configuration", nil, err.Error())
			return
		}
	}
	if req.Enabled != nil {
		if err := h.deps.Engine.SetDetectorEnabled(rule, *req.Enabled); err != nil {
			respondError(w, r, http.StatusInternalServerError, CodeInternal, "failed to update rule", err)
			return
		}
	}

	info, _ := h.detectorInfo(rule, h.deps.Engine.Metrics())
	respondData(w, info, nil)
}

// WebSocket hands the request to the live feed hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "live feed is not enabled", nil)
		return
	}
	h.deps.Hub.ServeHTTP(w, r)
}
