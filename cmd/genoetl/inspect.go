package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"genoetl/internal/inspect"
)

func newInspectCmd(a *app) *cobra.Command {
	var compare, exportCSV string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the schema of a Parquet or CSV file",
		Long: `Show the columns, types and null counts of a Parquet artifact, or the
inferred column types of a delimited file. With --compare the schema is
diffed against a second file, for example the CSV a Parquet file came from.`,
		Example: `  genoetl inspect data/processed/fact_runs.parquet
  genoetl inspect data/processed/fact_runs.parquet --compare data/raw/runs.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.describe(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if exportCSV != "" {
				if err := writeSchemaCSV(target, exportCSV); err != nil {
					return err
				}
				a.log.WithField("file", exportCSV).Info("schema exported")
			}
			if compare == "" {
				if jsonOut {
					return writeJSON(cmd, target)
				}
				target.Render(out)
				return nil
			}

			source, err := a.describe(cmd, compare)
			if err != nil {
				return err
			}
			c := inspect.Compare(source, target)
			if jsonOut {
				return writeJSON(cmd, struct {
					inspect.Comparison
					inspect.Compatibility
				}{c, c.Compatibility()})
			}
			renderComparison(cmd, c)
			return nil
		},
	}
	cmd.Flags().StringVar(&compare, "compare", "", "source file to compare the schema against")
	cmd.Flags().StringVar(&exportCSV, "export-csv", "", "also write the column list to this CSV file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func (a *app) describe(cmd *cobra.Command, path string) (*inspect.Schema, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return inspect.Parquet(path)
	}
	return inspect.CSV(cmd.Context(), path, a.ingestOptions())
}

func renderComparison(cmd *cobra.Command, c inspect.Comparison) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source: %s\nTarget: %s\n", c.Source, c.Target)
	fmt.Fprintf(out, "Row difference: %+d\n", c.RowDifference)
	fmt.Fprintf(out, "Common columns: %d\n", len(c.Common))
	if len(c.MissingInTarget) > 0 {
		fmt.Fprintf(out, "Missing in target: %s\n", strings.Join(c.MissingInTarget, ", "))
	}
	if len(c.NewInTarget) > 0 {
		fmt.Fprintf(out, "New in target: %s\n", strings.Join(c.NewInTarget, ", "))
	}
	v := c.Compatibility()
	if v.Compatible {
		fmt.Fprintln(out, "Compatible: yes")
	} else {
		fmt.Fprintln(out, "Compatible: no")
	}
	for _, e := range v.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	if len(c.TypeChanges) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Column", "Source type", "Target type"})
	for _, col := range c.Common {
		if tc, ok := c.TypeChanges[col]; ok {
			t.AppendRow(table.Row{col, tc.From, tc.To})
		}
	}
	t.Render()
}

func writeSchemaCSV(s *inspect.Schema, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("export schema: %w", err)
	}
	return f.Close()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
