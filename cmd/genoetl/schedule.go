package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"genoetl/internal/pipeline"
	"genoetl/internal/scheduler"
)

// openRegistry loads the schedule file. rec may be nil for commands that
// never run jobs.
func (a *app) openRegistry(rec pipeline.Recorder, opts ...scheduler.Option) (*scheduler.Registry, error) {
	store := scheduler.FileStore{Path: a.cfg.Schedule.File}
	return scheduler.New(store, a.jobRunner(rec), a.log.WithField("component", "scheduler"), opts...)
}

func newScheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring pipeline runs",
	}
	cmd.AddCommand(newScheduleAddCmd(a), newScheduleRemoveCmd(a), newScheduleListCmd(a), newScheduleStartCmd(a))
	return cmd
}

func newScheduleAddCmd(a *app) *cobra.Command {
	var (
		name, unit, inputDir, outputDir, mode, partitionCols string
		every                                                int
	)
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Schedule the pipeline every N minutes, hours or days",
		Example: `  genoetl schedule add --every 6 --unit hours --mode quarantine`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := scheduler.Unit(unit)
			if _, err := u.Interval(every); err != nil {
				return err
			}
			if mode != "" {
				if _, err := pipeline.ParseMode(mode); err != nil {
					return err
				}
			}
			if name == "" {
				name = scheduler.DefaultName(every, u)
			}
			params := map[string]string{}
			for k, v := range map[string]string{
				paramInputDir:      inputDir,
				paramOutputDir:     outputDir,
				paramMode:          mode,
				paramPartitionCols: partitionCols,
			} {
				if v != "" {
					params[k] = v
				}
			}
			if len(params) == 0 {
				params = nil
			}

			reg, err := a.openRegistry(nil)
			if err != nil {
				return err
			}
			j, err := reg.Add(cmd.Context(), scheduler.Job{Name: name, Every: every, Unit: u, Params: params})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled %s every %d %s, next run %s\n",
				j.Name, j.Every, j.Unit, j.NextRun.Local().Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "job name (default etl_schedule_<every>_<unit>)")
	cmd.Flags().IntVar(&every, "every", 1, "interval length")
	cmd.Flags().StringVar(&unit, "unit", string(scheduler.Hours), "interval unit (minutes|hours|days)")
	cmd.Flags().StringVar(&inputDir, "input-dir", "", "input directory for this job")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for this job")
	cmd.Flags().StringVar(&mode, "mode", "", "validation failure policy for this job")
	cmd.Flags().StringVar(&partitionCols, "partition-cols", "", "partition columns for this job")
	return cmd
}

func newScheduleRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry(nil)
			if err != nil {
				return err
			}
			if err := reg.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newScheduleListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.openRegistry(nil)
			if err != nil {
				return err
			}
			jobs := reg.Jobs()
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no scheduled jobs")
				return nil
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Every", "Next run", "Last run", "Last status"})
			for _, j := range jobs {
				last := "-"
				if j.LastRun != nil {
					last = j.LastRun.Local().Format(time.DateTime)
				}
				t.AppendRow(table.Row{
					j.Name, fmt.Sprintf("%d %s", j.Every, j.Unit),
					j.NextRun.Local().Format(time.DateTime), last, j.LastStatus,
				})
			}
			t.Render()
			return nil
		},
	}
}

func newScheduleStartCmd(a *app) *cobra.Command {
	var (
		tick time.Duration
		dsn  string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run scheduled jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			flush := a.setupMetrics()
			defer flush()

			var rec pipeline.Recorder
			if h, err := a.openHistory(ctx, dsn); err != nil {
				a.log.WithError(err).Warn("run history disabled")
			} else {
				defer h.Close()
				rec = pipeline.HistoryRecorder{History: h}
			}

			reg, err := a.openRegistry(rec, scheduler.WithTick(tick))
			if err != nil {
				return err
			}
			return runScheduler(ctx, reg)
		},
	}
	cmd.Flags().DurationVar(&tick, "tick", scheduler.DefaultTick, "how often to look for due jobs")
	cmd.Flags().StringVar(&dsn, "history", "", "history store DSN (overrides storage.dsn)")
	return cmd
}

// runScheduler blocks until ctx is done, then waits for running jobs.
func runScheduler(ctx context.Context, reg *scheduler.Registry) error {
	if err := reg.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	reg.Stop()
	return nil
}
