// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/tomtom215/sentinel/internal/catalog"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/models"
	"github.com/tomtom215/sentinel/internal/sink"
)

// OutputLayout names result files: detection_events_<YYYYMMDD_HHMMSS>.jsonl.
const OutputLayout = "20060102_150405"

// CatalogFile is the catalog file name looked up in the data directory when
// Config.CatalogPath is empty.
const CatalogFile = "products_list.csv"

// Config configures one batch run.
type Config struct {
	DataDir     string
	CatalogPath string
	OutputDir   string
	Engine      detection.EngineConfig
}

// Result summarizes a finished run.
type Result struct {
	OutputPath string
	Loaded     map[models.SourceType]int
	// Detected counts anomalies raised before duplicate suppression.
	Detected  int
	Anomalies []*models.Anomaly
	Counts    map[models.EventName]int
	Errors    int
	StartTime time.Time
	EndTime   time.Time
}

// Runner evaluates a directory of recorded datasets with a batch engine.
type Runner struct {
	cfg Config
	now func() time.Time
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = filepath.Join(cfg.DataDir, CatalogFile)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.DataDir
	}
	cfg.Engine.Mode = detection.ModeBatch
	return &Runner{cfg: cfg, now: time.Now}
}

// Run loads the datasets, evaluates them and writes the result file. A
// catalog failure aborts before any record is read; a missing dataset file
// counts as empty.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{StartTime: r.now(), Loaded: make(map[models.SourceType]int)}

	cat, err := catalog.Load(r.cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logging.Info().Str("path", r.cfg.CatalogPath).Int("products", cat.Products()).Msg("loaded product catalog")

	data := make(map[models.SourceType][]models.Record, len(models.Sources))
	for _, src := range models.Sources {
		path := filepath.Join(r.cfg.DataDir, models.DatasetFiles[src])
		recs, err := ingest.ReadRecords(path, src)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logging.Warn().Str("file", path).Msg("dataset file not found, treating as empty")
		case err != nil:
			return nil, err
		}
		data[src] = recs
		res.Loaded[src] = len(recs)
		logging.Info().Str("source", string(src)).Int("records", len(recs)).Msg("loaded dataset")
	}

	collector := sink.NewCollector()
	engine := detection.NewEngine(r.cfg.Engine, cat, collector)

	for _, src := range []models.SourceType{models.SourceRFID, models.SourceRecognition, models.SourcePOS} {
		for _, rec := range data[src] {
			engine.Prime(rec)
		}
	}

	for _, rec := range evaluationOrder(data) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := engine.Process(ctx, rec); err != nil {
			res.Errors++
		}
	}
	engine.Flush(ctx)

	res.Anomalies = collector.Sorted()
	res.Detected = collector.Received()
	res.Counts = sink.CountByName(res.Anomalies)

	res.OutputPath = filepath.Join(r.cfg.OutputDir, fmt.Sprintf("detection_events_%s.jsonl", r.now().Format(OutputLayout)))
	if err := sink.WriteJSONL(res.OutputPath, res.Anomalies); err != nil {
		return nil, fmt.Errorf("write detection events: %w", err)
	}
	res.EndTime = r.now()

	logSummary(res)
	return res, nil
}

// evaluationOrder flattens the datasets into the order records are
// evaluated: RFID, POS, queue samples by timestamp, recognition, then the
// latest inventory snapshot alone.
func evaluationOrder(data map[models.SourceType][]models.Record) []models.Record {
	var out []models.Record
	out = append(out, data[models.SourceRFID]...)
	out = append(out, data[models.SourcePOS]...)

	queue := append([]models.Record(nil), data[models.SourceQueue]...)
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Meta().Timestamp < queue[j].Meta().Timestamp
	})
	out = append(out, queue...)

	out = append(out, data[models.SourceRecognition]...)
	if inv := data[models.SourceInventory]; len(inv) > 0 {
		out = append(out, inv[len(inv)-1])
	}
	return out
}

func logSummary(res *Result) {
	names := make([]string, 0, len(res.Counts))
	for name := range res.Counts {
		names = append(names, string(name))
	}
	sort.Strings(names)

	for _, name := range names {
		logging.Info().Str("event_name", name).Int("count", res.Counts[models.EventName(name)]).Msg("event summary")
	}
	logging.Info().
		Int("detected", res.Detected).
		Int("unique", len(res.Anomalies)).
		Int("rule_errors", res.Errors).
		Str("output", res.OutputPath).
		Dur("duration", res.EndTime.Sub(res.StartTime)).
		Msg("batch detection complete")
}
