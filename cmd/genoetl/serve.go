package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"genoetl/internal/api"
	"genoetl/internal/pipeline"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr      string
		withSched bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history, schedules and run triggers over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			flush := a.setupMetrics()
			defer flush()

			h, err := a.openHistory(ctx, "")
			if err != nil {
				return err
			}
			defer h.Close()
			rec := pipeline.HistoryRecorder{History: h}

			reg, err := a.openRegistry(rec)
			if err != nil {
				return err
			}
			if withSched {
				if err := reg.Start(ctx); err != nil {
					return err
				}
				defer reg.Stop()
			}

			trigger := func(ctx context.Context) (*pipeline.Result, error) {
				opts, err := a.pipelineOptions(rec)
				if err != nil {
					return nil, err
				}
				return pipeline.Run(ctx, opts)
			}
			return api.New(a.log, h, reg, trigger).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&withSched, "scheduler", false, "also run scheduled jobs")
	return cmd
}
