// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sentinel/internal/api"
	"github.com/tomtom215/sentinel/internal/catalog"
	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/eventbus"
	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/models"
	"github.com/tomtom215/sentinel/internal/notify"
	"github.com/tomtom215/sentinel/internal/sink"
	"github.com/tomtom215/sentinel/internal/store"
	"github.com/tomtom215/sentinel/internal/supervisor"
	"github.com/tomtom215/sentinel/internal/supervisor/services"
	"github.com/tomtom215/sentinel/internal/websocket"
)

const (
	janitorInterval = 30 * time.Second
	storeGCInterval = 10 * time.Minute
	statsInterval   = 5 * time.Second
)

func streamCmd(a *app) *cobra.Command {
	var (
		source    string
		host      string
		port      int
		maxEvents int
		serve     bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Detect anomalies in a live event stream",
		Long: `Connects to the stream server (or Kafka topic), evaluates every
record as it arrives and appends anomalies to the anomaly log. With the
server enabled, anomalies are also served over HTTP and pushed to
websocket clients.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.Stream.Source = source
			}
			if flags.Changed("host") {
				cfg.Stream.Host = host
			}
			if flags.Changed("port") {
				cfg.Stream.Port = port
			}
			if flags.Changed("max-events") {
				cfg.Stream.MaxEvents = maxEvents
			}
			if flags.Changed("serve") {
				cfg.Server.Enabled = serve
			}
			if flags.Changed("output") {
				cfg.Output.AnomalyLog = output
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runStream(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVar(&source, "source", "tcp", "Stream source: tcp or kafka")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Stream server host")
	cmd.Flags().IntVar(&port, "port", 8765, "Stream server port")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "Stop after this many events (0 = unlimited)")
	cmd.Flags().BoolVar(&serve, "serve", false, "Serve the HTTP API and live websocket feed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Anomaly log path")

	return cmd
}

// liveStats is pushed to websocket clients every statsInterval.
type liveStats struct {
	Ingest           ingest.Stats `json:"ingest"`
	AnomaliesEmitted int64        `json:"anomalies_emitted"`
	Clients          int          `json:"clients"`
}

// runStream wires the engine, its consumers and the supervisor tree, then
// blocks until the source finishes or the process is signaled.
func runStream(ctx context.Context, out io.Writer, cfg *config.Config) error {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logging.Info().Str("path", cfg.Catalog.Path).Int("products", cat.Products()).Msg("loaded product catalog")

	engCfg := engineConfig(cfg.Detection)
	engCfg.Mode = detection.ModeStreaming

	bus, err := eventbus.New(eventbus.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("event bus close failed")
		}
	}()

	writer, err := sink.OpenWriter(cfg.Output.AnomalyLog)
	if err != nil {
		return err
	}
	snk := sink.New(writer, sink.NewDeduplicator(engCfg.Policy()), bus)
	defer func() {
		if err := snk.Close(); err != nil {
			logging.Error().Err(err).Msg("anomaly log close failed")
		}
	}()

	engine := detection.NewEngine(engCfg, cat, snk)

	var anomalies api.AnomalyStore
	var st *store.Store
	if cfg.Store.Enabled {
		st, err = store.Open(store.Config{Path: cfg.Store.Path, Retention: cfg.Store.Retention})
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logging.Warn().Err(err).Msg("anomaly store close failed")
			}
		}()
		bus.Subscribe("store", st)
		anomalies = st
	}

	var hub *websocket.Hub
	if cfg.Server.Enabled {
		hub = websocket.NewHub(websocket.Config{AllowedOrigins: cfg.Server.CORSOrigins})
		bus.Subscribe(hub.Name(), hub)
	}

	if cfg.Notify.WebhookURL != "" {
		n := notify.NewWebhookNotifier(webhookConfig(cfg.Notify))
		bus.Subscribe(n.Name(), n)
	}

	if cfg.Notify.NATSURL != "" {
		p, err := notify.NewNATSPublisher(notify.NATSConfig{URL: cfg.Notify.NATSURL, Subject: cfg.Notify.NATSSubject})
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()
		bus.Subscribe(p.Name(), p)
	}

	src := newSource(cfg)
	if c, ok := src.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	handler := ingest.HandlerFunc(func(ctx context.Context, rec models.Record) (int, error) {
		raised, err := engine.Process(ctx, rec)
		return len(raised), err
	})

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}

	ingestSvc := services.NewIngestService("stream-ingest", src, handler).After(bus.Running())
	tree.AddIngestService(ingestSvc)
	tree.AddMessagingService(services.NewRunnerService(bus))

	tree.AddDataService(services.NewTickerService("janitor", janitorInterval, func(context.Context) error {
		now := time.Now()
		removed := engine.Sweep(now) + snk.Sweep(now)
		logging.Debug().Int("removed", removed).Msg("janitor sweep")
		return nil
	}))
	if st != nil {
		tree.AddDataService(services.NewTickerService("store-gc", storeGCInterval, func(context.Context) error {
			return st.RunGC()
		}))
	}

	if hub != nil {
		tree.AddMessagingService(services.NewRunnerService(hub))
		tree.AddMessagingService(services.NewTickerService("stats-push", statsInterval, func(context.Context) error {
			hub.BroadcastStats(liveStats{
				Ingest:           src.Stats(),
				AnomaliesEmitted: engine.Metrics().AnomaliesEmitted,
				Clients:          hub.ClientCount(),
			})
			return nil
		}))

		apiHandler := api.NewHandler(api.Deps{
			Engine:  engine,
			Store:   anomalies,
			Stats:   src.Stats,
			Hub:     hub,
			Version: version,
		})
		router := api.NewRouter(apiHandler, api.NewChiMiddleware(middlewareConfig(cfg.Server)))
		srv := &http.Server{
			Handler:           router.Setup(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(srv, serverAddr(cfg.Server), cfg.Server.ShutdownTimeout))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	treeCtx, cancelTree := context.WithCancel(ctx)
	defer cancelTree()
	errCh := tree.ServeBackground(treeCtx)

	logging.Info().
		Str("source", cfg.Stream.Source).
		Strs("consumers", bus.Consumers()).
		Str("anomaly_log", writer.Path()).
		Msg("stream detection started")

	select {
	case <-ingestSvc.Done():
	case err := <-errCh:
		return fmt.Errorf("supervisor tree stopped early: %w", err)
	}

	engine.Flush(context.WithoutCancel(ctx))
	cancelTree()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn().Err(err).Msg("supervisor tree stopped with error")
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("services", len(report)).Msg("services did not stop within the shutdown timeout")
	}

	printStreamSummary(out, src.Stats(), engine.Metrics(), snk.Written())
	return ingestSvc.Err()
}

func printStreamSummary(w io.Writer, s ingest.Stats, m detection.EngineMetrics, written int64) {
	fmt.Fprintln(w, "Stream detection summary")
	fmt.Fprintf(w, "  Events processed:  %d\n", s.Events)
	fmt.Fprintf(w, "  Records evaluated: %d\n", m.RecordsProcessed)
	fmt.Fprintf(w, "  Anomalies:         %d\n", s.Anomalies)
	fmt.Fprintf(w, "  Lines written:     %d\n", written)
	fmt.Fprintf(w, "  Detection rate:    %.2f%%\n", s.DetectionRate())
	for _, name := range models.EventNames {
		if n := m.AnomaliesByName[name]; n > 0 {
			fmt.Fprintf(w, "    %-40s %d\n", name, n)
		}
	}
}
