package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"genoetl/internal/ingest"
)

func newMergeCmd(a *app) *cobra.Command {
	var outFile string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "merge <file>...",
		Short: "Concatenate delimited files into one",
		Long: `Concatenate the rows of several CSV/TSV files, for example two exports of
runs, into one file. Columns are the union of all inputs; the output is tab
separated when the file name ends in .tsv.`,
		Example: `  genoetl merge runs_a.csv runs_b.tsv --output-file data/raw/runs.csv`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile == "" {
				return errors.New("--output-file is required")
			}
			res, err := ingest.Merge(cmd.Context(), args, outFile, a.ingestOptions())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d files with %d total rows into %s\n", res.Files, res.Rows, res.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "output-file", "", "merged file to write")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the merge result as JSON")
	return cmd
}
