package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"genoetl/internal/ingest"
	"genoetl/internal/metrics"
	"genoetl/internal/metrics/datadog"
	"genoetl/internal/metrics/prompush"
	"genoetl/internal/pipeline"
	"genoetl/internal/scheduler"
	"genoetl/internal/storage"
)

// newHistoryFn is a test hook that points to storage.New by default.
var newHistoryFn = storage.New

// openHistory opens the configured history store. A non-empty dsn replaces
// the configured one.
func (a *app) openHistory(ctx context.Context, dsn string) (storage.History, error) {
	cfg := storage.Config{Kind: a.cfg.Storage.Kind, DSN: a.cfg.Storage.DSN}
	if dsn != "" {
		cfg.DSN = dsn
	}
	h, err := newHistoryFn(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return h, nil
}

// setupMetrics installs the configured metrics backend and returns the
// function that flushes and closes it at the end of the command. An unusable
// backend is logged and metrics stay disabled.
func (a *app) setupMetrics() func() {
	m := a.cfg.Metrics
	log := a.log.WithField("backend", m.Backend)

	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "prompush", "pushgateway":
		b, err = prompush.NewBackend(m.Job, m.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  m.Options.String("namespace", ""),
			GlobalTags: m.Options.StringSlice("tags"),
		})
	case "", "none":
		log.Debug("metrics disabled")
		return func() {}
	default:
		log.Warn("unknown metrics backend; metrics disabled")
		return func() {}
	}
	if err != nil {
		log.WithError(err).Warn("metrics backend unavailable; metrics disabled")
		return func() {}
	}
	metrics.SetBackend(b)
	log.Info("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics flush failed")
		}
		if c, ok := b.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// pipelineOptions maps the resolved configuration onto a run.
func (a *app) pipelineOptions(rec pipeline.Recorder) (pipeline.Options, error) {
	mode, err := pipeline.ParseMode(a.cfg.Mode)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		InputDir:      a.cfg.Input,
		OutputDir:     a.cfg.Output,
		Mode:          mode,
		PartitionCols: a.cfg.PartitionCols,
		QuarantineDir: a.cfg.QuarantineDir,
		Compression:   a.cfg.Compression,
		Encoding:      a.cfg.Encoding,
		ErrorLimit:    a.cfg.Runtime.ErrorLimit,
		Job:           a.cfg.Metrics.Job,
		Recorder:      rec,
		Logger:        a.log,
	}, nil
}

func (a *app) ingestOptions() ingest.Options {
	return ingest.Options{Encoding: a.cfg.Encoding, Logger: a.log}
}

// Job parameters understood by jobRunner.
const (
	paramInputDir      = "input_dir"
	paramOutputDir     = "output_dir"
	paramMode          = "mode"
	paramPartitionCols = "partition_cols"
)

// jobRunner runs the pipeline for a scheduled job. Params override the
// configured directories and mode.
func (a *app) jobRunner(rec pipeline.Recorder) scheduler.Runner {
	return scheduler.RunnerFunc(func(ctx context.Context, j scheduler.Job) error {
		opts, err := a.pipelineOptions(rec)
		if err != nil {
			return err
		}
		if v := j.Params[paramInputDir]; v != "" {
			opts.InputDir = v
		}
		if v := j.Params[paramOutputDir]; v != "" {
			opts.OutputDir = v
		}
		if v := j.Params[paramMode]; v != "" {
			if opts.Mode, err = pipeline.ParseMode(v); err != nil {
				return err
			}
		}
		if v := j.Params[paramPartitionCols]; v != "" {
			opts.PartitionCols = splitList(v)
		}
		opts.Job = j.Name
		opts.Logger = a.log.WithField("job", j.Name)
		res, err := pipeline.Run(ctx, opts)
		if err == nil {
			a.log.WithFields(logrus.Fields{"job": j.Name, "run_id": res.RunID, "duration": res.Duration}).Info("scheduled run finished")
		}
		return err
	})
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
