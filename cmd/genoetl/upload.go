package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"genoetl/internal/ingest"
)

func newUploadCmd(a *app) *cobra.Command {
	var targetDir string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Check and copy input files into the raw directory",
		Long: `Check each file (extension, header, encoding), copy it into the target
directory and ingest the copy to report its shape. A bad file is reported
and does not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := targetDir
			if dir == "" {
				dir = a.cfg.Input
			}
			res, err := ingest.Batch(cmd.Context(), args, dir, a.ingestOptions())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, res)
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"File", "Status", "Rows", "Columns", "Size", "Reason"})
			for _, f := range res.Files {
				t.AppendRow(table.Row{f.File, f.Status, f.Rows, f.Columns, f.Size, f.Reason})
			}
			t.AppendFooter(table.Row{fmt.Sprintf("%d files", res.Total), fmt.Sprintf("%d ok, %d failed", res.Succeeded, res.Failed)})
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&targetDir, "target-dir", "", "destination directory (default: configured input)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the batch result as JSON")
	return cmd
}
