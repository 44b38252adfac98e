// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ingest

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tomtom215/sentinel/internal/models"
)

const (
	bannerLine  = `{"service":"project-sentinel-stream","datasets":["POS_Transactions","RFID_data"],"events":3,"loop":false,"speed_factor":10,"cycle_seconds":12.5}`
	posLine     = `{"dataset":"POS_Transactions","sequence":1,"timestamp":"2025-08-13T16:00:01","event":{"timestamp":"2025-08-13T16:00:01","station_id":"SCC1","status":"Active","data":{"customer_id":"C001","sku":"PRD_F_01","barcode":"4792024011348","price":280,"weight_g":410}}}`
	rfidLine    = `{"dataset":"RFID_data","sequence":2,"timestamp":"2025-08-13T16:00:02","event":{"timestamp":"2025-08-13T16:00:02","station_id":"SCC1","status":"Active","data":{"sku":"PRD_F_01","location":"OUT_SCAN_AREA"}}}`
	unknownLine = `{"dataset":"Weather","sequence":3,"timestamp":"2025-08-13T16:00:03","event":{"temp":21}}`
)

type collector struct {
	mu   sync.Mutex
	recs []models.Record
	per  int
	err  error
}

func (c *collector) Handle(_ context.Context, rec models.Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return c.per, c.err
}

func (c *collector) sources() []models.SourceType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.SourceType, len(c.recs))
	for i, r := range c.recs {
		out[i] = r.Source()
	}
	return out
}

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		line       string
		wantBanner bool
		wantErr    bool
	}{
		{"banner with service", bannerLine, true, false},
		{"banner without service", `{"datasets":["RFID_data"],"events":1}`, true, false},
		{"envelope", posLine, false, false},
		{"malformed", `{"dataset":`, false, true},
		{"blank", "   ", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := DecodeFrame([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (f.Banner != nil) != tt.wantBanner || (f.Envelope != nil) == tt.wantBanner {
				t.Errorf("frame = %+v, wantBanner %v", f, tt.wantBanner)
			}
		})
	}
}

func TestBannerFields(t *testing.T) {
	t.Parallel()

	f, err := DecodeFrame([]byte(bannerLine))
	if err != nil {
		t.Fatal(err)
	}
	b := f.Banner
	if b.Events != 3 || b.Loop || b.SpeedFactor != 10 || b.CycleSeconds != 12.5 || len(b.Datasets) != 2 {
		t.Errorf("banner = %+v", b)
	}
}

func TestEnvelopeRecord(t *testing.T) {
	t.Parallel()

	f, err := DecodeFrame([]byte(posLine))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := f.Envelope.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	pos, ok := rec.(*models.POSRecord)
	if !ok {
		t.Fatalf("got %T, want *models.POSRecord", rec)
	}
	if pos.StationID != "SCC1" || pos.Data.SKU != "PRD_F_01" || float64(pos.Data.Price) != 280 {
		t.Errorf("pos = %+v", pos)
	}
	if f.Envelope.Sequence != 1 {
		t.Errorf("Sequence = %d", f.Envelope.Sequence)
	}

	f, _ = DecodeFrame([]byte(unknownLine))
	if _, err := f.Envelope.Record(); !errors.Is(err, ErrUnknownDataset) {
		t.Errorf("err = %v, want ErrUnknownDataset", err)
	}

	empty := Envelope{Dataset: "RFID_data"}
	if _, err := empty.Record(); !errors.Is(err, ErrEmptyEvent) {
		t.Errorf("err = %v, want ErrEmptyEvent", err)
	}
}

// serve accepts one connection per entry in sessions and writes its lines.
func serve(t *testing.T, sessions ...[]string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for _, lines := range sessions {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte(strings.Join(lines, "\n") + "\n"))
			_ = conn.Close()
		}
		// Later dials fail instead of queueing on the backlog.
		_ = ln.Close()
	}()
	return ln.Addr().String()
}

func TestTCPSourceDeliversEnvelopes(t *testing.T) {
	t.Parallel()

	addr := serve(t, []string{bannerLine, posLine, "", "not json", unknownLine, rfidLine})
	src := NewTCPSource(TCPConfig{Addr: addr})
	h := &collector{per: 1}

	if err := src.Run(context.Background(), h); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := h.sources()
	if len(got) != 2 || got[0] != models.SourcePOS || got[1] != models.SourceRFID {
		t.Errorf("handled %v, want [pos rfid]", got)
	}
	st := src.Stats()
	want := Stats{Events: 3, Records: 2, Anomalies: 2, Banners: 1, Skipped: 1, Malformed: 1}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
	if r := st.DetectionRate(); r < 66.6 || r > 66.7 {
		t.Errorf("DetectionRate = %v", r)
	}
}

func TestTCPSourceMaxEvents(t *testing.T) {
	t.Parallel()

	addr := serve(t, []string{bannerLine, posLine, rfidLine, posLine})
	src := NewTCPSource(TCPConfig{Addr: addr, MaxEvents: 2, MaxReconnects: 3})
	h := &collector{}

	if err := src.Run(context.Background(), h); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(h.sources()); n != 2 {
		t.Errorf("handled %d records, want 2", n)
	}
	if st := src.Stats(); st.Reconnects != 0 {
		t.Errorf("Reconnects = %d after reaching the limit", st.Reconnects)
	}
}

func TestTCPSourceReconnects(t *testing.T) {
	t.Parallel()

	addr := serve(t, []string{bannerLine, posLine}, []string{bannerLine, rfidLine})
	src := NewTCPSource(TCPConfig{
		Addr:           addr,
		MaxReconnects:  1,
		ReconnectDelay: 10 * time.Millisecond,
	})
	h := &collector{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = src.Run(ctx, h)

	got := h.sources()
	if len(got) != 2 || got[1] != models.SourceRFID {
		t.Errorf("handled %v across reconnect", got)
	}
	if st := src.Stats(); st.Reconnects < 1 || st.Banners != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestTCPSourceDialFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	src := NewTCPSource(TCPConfig{Addr: addr, MaxReconnects: 1, ReconnectDelay: 5 * time.Millisecond})
	if err := src.Run(context.Background(), &collector{}); err == nil {
		t.Fatal("expected dial error")
	}
	if st := src.Stats(); st.Reconnects != 1 {
		t.Errorf("Reconnects = %d, want 1", st.Reconnects)
	}
}

func TestTCPSourceStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_, _ = conn.Write([]byte(bannerLine + "\n"))
		time.Sleep(5 * time.Second)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	src := NewTCPSource(TCPConfig{Addr: ln.Addr().String(), MaxReconnects: 5})
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, &collector{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run after cancel = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaSourceCommitsEveryFrame(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{}
	for i, line := range []string{bannerLine, posLine, unknownLine, rfidLine} {
		reader.msgs = append(reader.msgs, kafka.Message{Value: []byte(line), Offset: int64(i)})
	}
	src := &KafkaSource{cfg: KafkaConfig{Topic: "store-events", MaxEvents: 2}, reader: reader}
	h := &collector{}

	if err := src.Run(context.Background(), h); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.sources(); len(got) != 1 || got[0] != models.SourcePOS {
		t.Errorf("handled %v, want [pos]", got)
	}
	if len(reader.committed) != 3 {
		t.Errorf("committed %v, want offsets 0..2", reader.committed)
	}
	if st := src.Stats(); st.Events != 2 || st.Skipped != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestKafkaSourceReturnsOnCancel(t *testing.T) {
	t.Parallel()

	src := &KafkaSource{reader: &fakeReader{}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := src.Run(ctx, &collector{}); err != nil {
		t.Errorf("Run = %v, want nil on cancel", err)
	}
}

func TestReadRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "queue_monitoring.jsonl")
	content := strings.Join([]string{
		`{"timestamp":"2025-08-13T16:00:00","station_id":"SCC1","status":"Active","data":{"customer_count":6,"average_dwell_time":"310.5"}}`,
		``,
		`{broken`,
		`{"timestamp":"2025-08-13T16:01:00","data":{"customer_count":2,"average_dwell_time":40}}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	recs, err := ReadRecords(path, models.SourceQueue)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	q := recs[0].(*models.QueueRecord)
	if int(q.Data.CustomerCount) != 6 || float64(q.Data.AverageDwellTime) != 310.5 {
		t.Errorf("queue = %+v", q.Data)
	}
	if recs[1].Meta().StationID != models.UnknownID {
		t.Errorf("missing station = %q, want %q", recs[1].Meta().StationID, models.UnknownID)
	}

	if _, err := ReadRecords(filepath.Join(dir, "missing.jsonl"), models.SourcePOS); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}
