// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// sentinel detects loss-prevention events in self-checkout sensor data.
//
// Usage:
//
//	sentinel stream                       # live TCP stream, defaults from config
//	sentinel stream --source kafka        # consume the Kafka topic instead
//	sentinel stream --max-events 500      # stop after 500 envelopes
//	sentinel batch --data-dir data/input  # evaluate recorded datasets
//
// Configuration is read from config.yaml (or --config), .env and the
// environment; see internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/logging"
)

var version = "dev"

// app holds state shared by subcommands once the root pre-run has loaded it.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	_ = logging.Close()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Detect loss-prevention events at self-checkout stations",
		Long: `sentinel correlates RFID, POS, product recognition, queue and
inventory readings from self-checkout stations and reports scanner
avoidance, barcode switching, weight discrepancies, system failures,
long queues, extended waits and inventory discrepancies.

Anomalies are appended as JSON lines to the configured anomaly log.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Override logging.format: json or console")

	rootCmd.AddCommand(streamCmd(a))
	rootCmd.AddCommand(batchCmd(a))

	return rootCmd
}

// load reads configuration and initializes logging.
func (a *app) load() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	logging.Init(loggingConfig(cfg.Logging))

	a.cfg = cfg
	return nil
}
