// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/models"
)

// ErrSinkClosed is returned by writes after Close.
var ErrSinkClosed = errors.New("sink closed")

// Writer appends anomalies to a JSON-Lines file. The file is truncated when
// opened and only appended to afterwards. Every line is flushed before
// Write returns.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	lines  int64
	closed bool
}

// OpenWriter creates path (and its parent directories), truncating any
// previous contents.
func OpenWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create anomaly log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open anomaly log: %w", err)
	}
	return &Writer{path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

// Path returns the file path.
func (w *Writer) Path() string { return w.path }

// Lines returns how many anomalies have been written.
func (w *Writer) Lines() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Write appends one anomaly as a single line.
func (w *Writer) Write(a *models.Anomaly) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode anomaly %s: %w", a.EventID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrSinkClosed
	}
	if _, err := w.buf.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write anomaly log: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush anomaly log: %w", err)
	}
	w.lines++
	return nil
}

// Close flushes and closes the file. Further writes fail with ErrSinkClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("flush anomaly log: %w", err)
	}
	return w.file.Close()
}

// WriteJSONL writes anomalies to a new file at path, one per line.
func WriteJSONL(path string, anomalies []*models.Anomaly) error {
	w, err := OpenWriter(path)
	if err != nil {
		return err
	}
	for _, a := range anomalies {
		if err := w.Write(a); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// ReadJSONL parses an anomaly log back into typed anomalies. Blank lines
// are skipped; a malformed line is an error.
func ReadJSONL(path string) ([]*models.Anomaly, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open anomaly log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []*models.Anomaly
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		a, err := models.ParseAnomaly(append([]byte(nil), raw...))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read anomaly log: %w", err)
	}
	return out, nil
}
