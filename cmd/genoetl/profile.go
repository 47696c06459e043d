package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"genoetl/internal/ingest"
	"genoetl/internal/profile"
	"genoetl/internal/report"
	"genoetl/internal/schema"
	"genoetl/internal/storage"
	"genoetl/internal/transformer"
	"genoetl/pkg/records"
)

// tableName maps an input file to its contract's table name, so that known
// inputs are transformed before profiling. Other files keep their stem.
func tableName(path string) string {
	base := filepath.Base(path)
	for _, c := range schema.Contracts() {
		if strings.EqualFold(base, c.File) {
			return c.Name
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadProfiled ingests path and, when it is one of the pipeline inputs,
// applies the contract's transformations.
func loadProfiled(ctx context.Context, path string, opts ingest.Options) (*records.Table, error) {
	t, err := ingest.File(ctx, path, tableName(path), opts)
	if err != nil {
		return nil, err
	}
	t = t.Without(schema.AuditColumns...)
	if _, ok := schema.ByName(t.Name); ok {
		t = transformer.Table(t, opts.Logger)
	}
	return t, nil
}

func newProfileCmd(a *app) *cobra.Command {
	var format, outputFile string
	cmd := &cobra.Command{
		Use:     "profile <file>",
		Short:   "Profile a delimited file and write a quality report",
		Example: `  genoetl profile data/raw/qc_metrics.tsv --format html --output-file docs/report.html`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := loadProfiled(ctx, args[0], a.ingestOptions())
			if err != nil {
				return err
			}
			d := report.Data{Table: t.Name, Quality: profile.Quality(t)}
			if t.Name == schema.TableQCMetrics {
				qc := profile.AnalyzeQC(t)
				d.QC = &qc
			}
			d.Summary = a.latestSummary(ctx)

			if outputFile == "" {
				return report.Render(cmd.OutOrStdout(), format, d)
			}
			if err := report.WriteFile(outputFile, format, d); err != nil {
				return err
			}
			a.log.WithField("file", outputFile).Info("report written")
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", report.FormatMarkdown, "report format (markdown|html)")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "write the report here instead of stdout")
	return cmd
}

// latestSummary returns the counts of the newest recorded run, or nil when
// there is no history to read.
func (a *app) latestSummary(ctx context.Context) *report.Summary {
	h, err := a.openHistory(ctx, "")
	if err != nil {
		a.log.WithError(err).Debug("no history for report summary")
		return nil
	}
	defer h.Close()
	runs, err := h.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil
	}
	r := runs[0]
	return &report.Summary{Samples: r.Samples, Runs: r.Runs, QCMetrics: r.QC, Status: statusLabel(r.Status)}
}

func statusLabel(s string) string {
	if s == storage.StatusSuccess {
		return "SUCCESS"
	}
	return strings.ToUpper(s)
}
