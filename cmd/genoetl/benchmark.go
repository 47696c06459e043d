package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"genoetl/internal/benchmark"
)

func newBenchmarkCmd(a *app) *cobra.Command {
	var csvFile, parquetFile, outputFile string
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare query times on the CSV input and the Parquet output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := benchmark.Run(cmd.Context(), csvFile, parquetFile, benchmark.Options{Logger: a.log})
			if err != nil {
				return err
			}
			if outputFile == "" {
				return res.WriteMarkdown(cmd.OutOrStdout())
			}
			if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
				return fmt.Errorf("create report dir: %w", err)
			}
			out, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := res.WriteMarkdown(out); err != nil {
				out.Close()
				return err
			}
			a.log.WithField("file", outputFile).Info("benchmark report written")
			return out.Close()
		},
	}
	cmd.Flags().StringVar(&csvFile, "csv-file", "data/raw/runs.csv", "CSV input to time")
	cmd.Flags().StringVar(&parquetFile, "parquet-file", "data/processed/fact_runs.parquet", "Parquet output to time")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "write the markdown report here instead of stdout")
	return cmd
}
