package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"genoetl/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded pipeline runs",
	}
	cmd.PersistentFlags().StringVar(&dsn, "history", "", "history store DSN (overrides storage.dsn)")

	withHistory := func(fn func(cmd *cobra.Command, args []string, h storage.History) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			h, err := a.openHistory(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer h.Close()
			return fn(cmd, args, h)
		}
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: withHistory(func(cmd *cobra.Command, _ []string, h storage.History) error {
			runs, err := h.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Timestamp", "Status", "Mode", "Samples", "Runs", "QC", "Duration", "Errors"})
			for _, r := range runs {
				t.AppendRow(table.Row{
					r.ID, r.Timestamp.Local().Format(time.DateTime), r.Status, r.Mode,
					r.Samples, r.Runs, r.QC, fmt.Sprintf("%.2fs", r.Duration), len(r.Errors),
				})
			}
			t.Render()
			return nil
		}),
	}
	list.Flags().IntVar(&limit, "limit", storage.DefaultListLimit, "maximum number of runs")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate run statistics",
		Args:  cobra.NoArgs,
		RunE: withHistory(func(cmd *cobra.Command, _ []string, h storage.History) error {
			s, err := h.Stats(cmd.Context())
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendRows([]table.Row{
				{"Total runs", s.TotalRuns},
				{"Successful", s.SuccessfulRuns},
				{"Failed", s.FailedRuns},
				{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate)},
				{"Total duration", fmt.Sprintf("%.2fs", s.TotalDuration)},
				{"Average duration", fmt.Sprintf("%.2fs", s.AvgDuration)},
				{"Samples processed", s.TotalSamples},
			})
			t.Render()
			return nil
		}),
	}

	events := &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the events of one run",
		Args:  cobra.ExactArgs(1),
		RunE: withHistory(func(cmd *cobra.Command, args []string, h storage.History) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			evs, err := h.Events(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(evs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no events for run %d\n", id)
				return nil
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Timestamp", "Type", "Message"})
			for _, e := range evs {
				t.AppendRow(table.Row{e.Timestamp.Local().Format(time.DateTime), e.Type, e.Message})
			}
			t.Render()
			return nil
		}),
	}

	var exportFile string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export statistics and runs as JSON",
		Args:  cobra.NoArgs,
		RunE: withHistory(func(cmd *cobra.Command, _ []string, h storage.History) error {
			if exportFile == "" {
				return storage.WriteExport(cmd.Context(), h, cmd.OutOrStdout(), time.Now())
			}
			out, err := os.Create(exportFile)
			if err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			if err := storage.WriteExport(cmd.Context(), h, out, time.Now()); err != nil {
				out.Close()
				return err
			}
			a.log.WithField("file", exportFile).Info("history exported")
			return out.Close()
		}),
	}
	export.Flags().StringVar(&exportFile, "output-file", "", "write the export here instead of stdout")

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded run",
		Args:  cobra.NoArgs,
		RunE: withHistory(func(cmd *cobra.Command, _ []string, h storage.History) error {
			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "Delete all run history? [y/N] ")
				var answer string
				fmt.Fscanln(cmd.InOrStdin(), &answer)
				if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}
			if err := h.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		}),
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(list, stats, events, export, clearCmd)
	return cmd
}
