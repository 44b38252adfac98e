// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/models"
)

// ReadRecords loads a JSON-Lines dataset file of one source. Blank lines are
// ignored and undecodable lines are logged and skipped. A missing file
// returns an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadRecords(path string, src models.SourceType) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s dataset: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	var (
		out     []models.Record
		skipped int
		lineNo  int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := models.DecodeRecord(src, append([]byte(nil), line...))
		if err != nil {
			skipped++
			logging.Warn().Err(err).Str("file", path).Int("line", lineNo).Msg("skipping invalid record")
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	logging.Debug().Str("file", path).Int("records", len(out)).Int("skipped", skipped).Msg("loaded dataset")
	return out, nil
}
