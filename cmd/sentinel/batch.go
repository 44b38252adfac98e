// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sentinel/internal/batch"
	"github.com/tomtom215/sentinel/internal/models"
)

func batchCmd(a *app) *cobra.Command {
	var (
		dataDir     string
		catalogPath string
		outputDir   string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Evaluate recorded datasets and write one result file",
		Long: `Reads the five recorded JSONL datasets and the product catalog from
--data-dir, evaluates every record with unbounded correlation history and
writes detection_events_<timestamp>.jsonl to --output-dir.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataDir == "" {
				dataDir = filepath.Dir(a.cfg.Catalog.Path)
			}
			if outputDir == "" {
				outputDir = a.cfg.Output.BatchDir
			}

			runner := batch.NewRunner(batch.Config{
				DataDir:     dataDir,
				CatalogPath: catalogPath,
				OutputDir:   outputDir,
				Engine:      engineConfig(a.cfg.Detection),
			})
			res, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			printBatchSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Directory holding the recorded datasets (default: catalog directory)")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Product catalog path (default: <data-dir>/products_list.csv)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Result directory (default: output.batch_dir)")

	return cmd
}

func printBatchSummary(w io.Writer, res *batch.Result) {
	fmt.Fprintln(w, "Batch detection summary")
	for _, src := range models.Sources {
		fmt.Fprintf(w, "  %-20s %d records\n", src, res.Loaded[src])
	}
	fmt.Fprintf(w, "  Anomalies raised:  %d\n", res.Detected)
	fmt.Fprintf(w, "  Unique anomalies:  %d\n", len(res.Anomalies))
	for _, name := range models.EventNames {
		if n := res.Counts[name]; n > 0 {
			fmt.Fprintf(w, "    %-40s %d\n", name, n)
		}
	}
	if res.Errors > 0 {
		fmt.Fprintf(w, "  Rule errors:       %d\n", res.Errors)
	}
	fmt.Fprintf(w, "  Output:            %s\n", res.OutputPath)
	fmt.Fprintf(w, "  Duration:          %s\n", res.EndTime.Sub(res.StartTime).Round(time.Millisecond))
}
