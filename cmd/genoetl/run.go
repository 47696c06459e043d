package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"genoetl/internal/pipeline"
	"genoetl/internal/schema"
)

type runFlags struct {
	inputDir      string
	outputDir     string
	mode          string
	partitionCols string
	quarantineDir string
	history       string
	noHistory     bool
	jsonOut       bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ETL pipeline once",
		Long: `Run ingest, validate, transform and load over the input directory.

In strict mode any validation error aborts the run before anything is
written. In quarantine mode the offending rows go to CSV files under the
quarantine directory and the remaining rows are loaded.`,
		Example: `  genoetl run --input-dir data/raw --output-dir data/processed
  genoetl run --mode quarantine --partition-cols project_id`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fl := cmd.Flags()
			if fl.Changed("input-dir") {
				a.cfg.Input = f.inputDir
			}
			if fl.Changed("output-dir") {
				a.cfg.Output = f.outputDir
			}
			if fl.Changed("mode") {
				a.cfg.Mode = f.mode
			}
			if fl.Changed("partition-cols") {
				a.cfg.PartitionCols = splitList(f.partitionCols)
			}
			if fl.Changed("quarantine-dir") {
				a.cfg.QuarantineDir = f.quarantineDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			flush := a.setupMetrics()
			defer flush()

			var rec pipeline.Recorder
			if !f.noHistory {
				h, err := a.openHistory(ctx, f.history)
				if err != nil {
					a.log.WithError(err).Warn("run history disabled")
				} else {
					defer h.Close()
					rec = pipeline.HistoryRecorder{History: h}
				}
			}

			opts, err := a.pipelineOptions(rec)
			if err != nil {
				return err
			}
			res, err := pipeline.Run(ctx, opts)
			if f.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if jerr := enc.Encode(res); jerr != nil {
					return jerr
				}
			} else {
				printRunSummary(cmd, res)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.inputDir, "input-dir", "", "directory with samples.csv, runs.csv and qc_metrics.tsv")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "directory for the Parquet artifacts")
	cmd.Flags().StringVar(&f.mode, "mode", "", "validation failure policy (strict|quarantine)")
	cmd.Flags().StringVar(&f.partitionCols, "partition-cols", "", "comma-separated hive partition columns for the fact tables")
	cmd.Flags().StringVar(&f.quarantineDir, "quarantine-dir", "", "where quarantined rows are written (default <output-dir>/_quarantine)")
	cmd.Flags().StringVar(&f.history, "history", "", "history store DSN (overrides storage.dsn)")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the run")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the run result as JSON")
	return cmd
}

func printRunSummary(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s (%s mode, %s)\n", res.RunID, res.Status, res.Mode, res.Duration.Round(time.Millisecond))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Table", "Ingested", "Quarantined", "Loaded"})
	for _, c := range schema.Contracts() {
		n := res.Counts[c.Name]
		t.AppendRow(table.Row{c.Name, n.Ingested, n.Quarantined, n.Loaded})
	}
	t.Render()

	for _, a := range res.Written {
		fmt.Fprintf(out, "wrote %s (%d rows)\n", a.Path, a.Rows)
	}
	for _, q := range res.Quarantine {
		fmt.Fprintf(out, "quarantined %s\n", q)
	}
	if n := len(res.Errors); n > 0 {
		fmt.Fprintf(out, "%d validation errors; first:\n", n)
		for _, m := range res.ErrorMessages(10) {
			fmt.Fprintf(out, "  %s\n", m)
		}
	}
}
