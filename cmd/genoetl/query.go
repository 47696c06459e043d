package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"genoetl/internal/query"
)

type queryFlags struct {
	parquetDir string
	sql        string
	sqlFile    string
	outputFile string
	format     string
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL over the Parquet outputs",
		Long: `Run one or more semicolon-separated SQL statements over the pipeline's
Parquet outputs with DuckDB. The artifacts are exposed as the views
samples, runs and qc_metrics.`,
		Example: `  genoetl query "SELECT platform, COUNT(*) FROM samples GROUP BY 1"
  genoetl query --sql-file report.sql --format markdown --output-file out.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := f.sql
			if len(args) == 1 {
				script = args[0]
			}
			if f.sqlFile != "" {
				b, err := os.ReadFile(f.sqlFile)
				if err != nil {
					return fmt.Errorf("read sql file: %w", err)
				}
				script = string(b)
			}
			if strings.TrimSpace(script) == "" {
				return fmt.Errorf("no SQL given (use an argument, --sql or --sql-file)")
			}
			dir := f.parquetDir
			if dir == "" {
				dir = a.cfg.Output
			}

			e, err := query.Open(cmd.Context(), dir, a.log)
			if err != nil {
				return err
			}
			defer e.Close()

			results, runErr := e.Run(cmd.Context(), script)

			var w io.Writer = cmd.OutOrStdout()
			if f.outputFile != "" {
				out, err := os.Create(f.outputFile)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer out.Close()
				w = out
			}
			if err := query.Render(w, results, f.format); err != nil {
				return err
			}
			if f.outputFile != "" {
				a.log.WithField("file", f.outputFile).Info("query results written")
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&f.parquetDir, "parquet-dir", "", "directory with the Parquet artifacts (default: configured output)")
	cmd.Flags().StringVar(&f.sql, "sql", "", "SQL to run")
	cmd.Flags().StringVar(&f.sqlFile, "sql-file", "", "file with SQL to run")
	cmd.Flags().StringVar(&f.outputFile, "output-file", "", "write results to a file instead of stdout")
	cmd.Flags().StringVar(&f.format, "format", "table", "output format ("+strings.Join(query.Formats, "|")+")")
	return cmd
}
