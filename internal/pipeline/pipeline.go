// Package pipeline runs the four stages ingest, validate, transform and load
// over one input snapshot and applies the failure policy to validation
// errors.
//
// Stages run one after another. Inside validate and transform the three
// tables are processed concurrently. In strict mode any violation aborts the
// run before anything is written; in quarantine mode the offending rows are
// split out to CSV and the rest continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"genoetl/internal/fslock"
	"genoetl/internal/ingest"
	"genoetl/internal/loader"
	"genoetl/internal/metrics"
	"genoetl/internal/schema"
	"genoetl/internal/transformer"
	"genoetl/internal/validate"
	"genoetl/pkg/records"
)

var (
	// ErrValidationFailed is returned when strict mode sees any violation.
	ErrValidationFailed = errors.New("pipeline: validation failed")
	// ErrMissingTable is returned when an input file is absent.
	ErrMissingTable = errors.New("pipeline: input table missing")
)

// Mode is the validation failure policy.
type Mode string

const (
	ModeStrict     Mode = "strict"
	ModeQuarantine Mode = "quarantine"
)

// ParseMode accepts "strict" and "quarantine" in any case; empty is strict.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeStrict, nil
	case ModeStrict, ModeQuarantine:
		return m, nil
	}
	return "", fmt.Errorf("pipeline: unknown mode %q", s)
}

// Status of a finished run.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// LockFile is taken inside the output directory for the duration of load.
const LockFile = ".genoetl.lock"

// DefaultErrorLimit is how many violations are handed to the Recorder.
const DefaultErrorLimit = 50

// Options configures a run.
type Options struct {
	InputDir  string
	OutputDir string
	Mode      Mode
	// PartitionCols are passed to the loader for the fact tables.
	PartitionCols []string
	// QuarantineDir defaults to <OutputDir>/_quarantine.
	QuarantineDir string
	Compression   string
	Encoding      string
	// ErrorLimit caps the violations sent to Recorder; default 50.
	ErrorLimit int
	// Job labels metrics; default "genoetl".
	Job      string
	Recorder Recorder
	Logger   logrus.FieldLogger
	// Now is the clock for ingestion timestamps and the future-date rule.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeStrict
	}
	if o.QuarantineDir == "" {
		o.QuarantineDir = filepath.Join(o.OutputDir, "_quarantine")
	}
	if o.ErrorLimit <= 0 {
		o.ErrorLimit = DefaultErrorLimit
	}
	if o.Job == "" {
		o.Job = "genoetl"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		o.Logger = l
	}
	return o
}

// TableCounts are the row counts of one table through the run.
type TableCounts struct {
	Ingested    int `json:"ingested"`
	Quarantined int `json:"quarantined"`
	Loaded      int `json:"loaded"`
}

// Event is one stage transition.
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Result describes a finished run, successful or not.
type Result struct {
	RunID     string                 `json:"run_id"`
	HistoryID int64                  `json:"history_id,omitempty"`
	Status    string                 `json:"status"`
	Mode      Mode                   `json:"mode"`
	InputDir  string                 `json:"input_dir"`
	OutputDir string                 `json:"output_dir"`
	Started   time.Time              `json:"started"`
	Duration  time.Duration          `json:"duration"`
	Counts    map[string]TableCounts `json:"counts"`
	Errors    validate.Violations    `json:"-"`
	// Quarantine lists the CSV files written in quarantine mode.
	Quarantine []string       `json:"quarantine,omitempty"`
	Events     []Event        `json:"events"`
	Written    loader.Written `json:"written,omitempty"`
	// Err is the text of the fatal error, if any.
	Err string `json:"error,omitempty"`
}

// ErrorMessages returns the text of at most n violations.
func (r *Result) ErrorMessages(n int) []string {
	return r.Errors.First(n).Messages()
}

type run struct {
	opts Options
	log  logrus.FieldLogger
	res  *Result
}

// Run executes the pipeline. The returned Result is never nil; the error is
// non-nil exactly when Status is failed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	id := uuid.NewString()
	r := &run{
		opts: opts,
		log:  opts.Logger.WithFields(logrus.Fields{"run_id": id, "mode": opts.Mode}),
		res: &Result{
			RunID:     id,
			Mode:      opts.Mode,
			InputDir:  opts.InputDir,
			OutputDir: opts.OutputDir,
			Started:   opts.Now(),
			Counts:    make(map[string]TableCounts, 3),
		},
	}
	r.event("pipeline_start", fmt.Sprintf("%s run from %s to %s", opts.Mode, opts.InputDir, opts.OutputDir))
	err := r.execute(ctx)
	r.finish(ctx, err)
	return r.res, err
}

func (r *run) event(typ, msg string) {
	r.res.Events = append(r.res.Events, Event{Type: typ, Message: msg, Time: r.opts.Now()})
}

func (r *run) count(table string, f func(*TableCounts)) {
	c := r.res.Counts[table]
	f(&c)
	r.res.Counts[table] = c
}

// stage runs fn as one named step with events, logging and metrics.
func (r *run) stage(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := r.log.WithField("stage", step)
	log.Info("stage started")
	r.event(step+"_start", step+" started")
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	metrics.RecordStep(r.opts.Job, step, err, d)
	if err != nil {
		log.WithError(err).Error("stage failed")
		r.event(step+"_failed", err.Error())
		return err
	}
	log.WithField("duration", d).Info("stage finished")
	r.event(step+"_complete", fmt.Sprintf("%s finished in %s", step, d.Round(time.Millisecond)))
	return nil
}

func (r *run) execute(ctx context.Context) error {
	if _, err := ParseMode(string(r.opts.Mode)); err != nil {
		return err
	}

	var tables map[string]*records.Table
	err := r.stage(ctx, metrics.StepIngest, func(ctx context.Context) error {
		var err error
		tables, err = ingest.All(ctx, r.opts.InputDir, ingest.Options{
			Encoding: r.opts.Encoding,
			Now:      r.opts.Now,
			Logger:   r.log,
		})
		if err != nil {
			return err
		}
		var missing []string
		for _, c := range schema.Contracts() {
			t, ok := tables[c.Name]
			if !ok {
				missing = append(missing, c.File)
				continue
			}
			r.count(c.Name, func(tc *TableCounts) { tc.Ingested = t.Len() })
			metrics.RecordRow(r.opts.Job, c.Name, metrics.KindIngested, int64(t.Len()))
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingTable, strings.Join(missing, ", "))
		}
		return nil
	})
	if err != nil {
		return err
	}

	var ok bool
	err = r.stage(ctx, metrics.StepValidate, func(context.Context) error {
		v := validate.Validator{Now: r.opts.Now, Logger: r.log}
		ok, r.res.Errors = v.All(tables)
		for table, rows := range r.res.Errors.RowsByTable() {
			n := 0
			for _, vs := range rows {
				n += len(vs)
			}
			metrics.RecordRow(r.opts.Job, table, metrics.KindViolations, int64(n))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !ok {
		n := len(r.res.Errors)
		r.log.WithFields(logrus.Fields{"errors": n, "by_rule": r.res.Errors.CountByRule()}).Warn("validation found errors")
		for _, v := range r.res.Errors.First(10) {
			r.log.WithField("table", v.Where().Table).Warn(v.Error())
		}
		r.event("validation_errors", fmt.Sprintf("%d validation errors", n))
		if r.opts.Mode == ModeStrict {
			return fmt.Errorf("%w: %d errors", ErrValidationFailed, n)
		}
		if tables, err = r.quarantine(tables); err != nil {
			return err
		}
	}

	var out map[string]*records.Table
	err = r.stage(ctx, metrics.StepTransform, func(ctx context.Context) error {
		var err error
		out, err = transformer.All(ctx, tables, r.log)
		return err
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, metrics.StepLoad, func(ctx context.Context) error {
		lock, err := fslock.Acquire(ctx, filepath.Join(r.opts.OutputDir, LockFile))
		if err != nil {
			return err
		}
		defer lock.Release()

		w, err := loader.Load(ctx, out, r.opts.OutputDir, loader.Options{
			Compression:   r.opts.Compression,
			PartitionCols: r.opts.PartitionCols,
			Logger:        r.log,
		})
		r.res.Written = w
		if err != nil {
			return err
		}
		for table, artifact := range map[string]string{
			schema.TableSamples:   loader.DimSamples,
			schema.TableRuns:      loader.FactRuns,
			schema.TableQCMetrics: loader.FactQCMetrics,
		} {
			n := w.Rows(artifact)
			r.count(table, func(tc *TableCounts) { tc.Loaded = n })
			metrics.RecordRow(r.opts.Job, table, metrics.KindLoaded, int64(n))
		}
		return nil
	})
}

func (r *run) quarantine(tables map[string]*records.Table) (map[string]*records.Table, error) {
	kept, held := Split(tables, r.res.Errors)
	paths, err := WriteQuarantine(r.opts.QuarantineDir, held)
	if err != nil {
		return nil, err
	}
	r.res.Quarantine = paths
	total := 0
	for name, t := range held {
		n := t.Len()
		total += n
		r.count(name, func(tc *TableCounts) { tc.Quarantined = n })
		metrics.RecordRow(r.opts.Job, name, metrics.KindQuarantined, int64(n))
	}
	r.log.WithFields(logrus.Fields{"rows": total, "dir": r.opts.QuarantineDir}).Warn("rows quarantined")
	r.event("quarantine", fmt.Sprintf("%d rows quarantined to %s", total, r.opts.QuarantineDir))
	return kept, nil
}

func (r *run) finish(ctx context.Context, err error) {
	r.res.Duration = r.opts.Now().Sub(r.res.Started)
	if err != nil {
		r.res.Status = StatusFailed
		r.res.Err = err.Error()
		r.event("pipeline_failed", err.Error())
		r.log.WithError(err).Error("pipeline failed")
	} else {
		r.res.Status = StatusSuccess
		r.event("pipeline_complete", fmt.Sprintf("completed in %s", r.res.Duration.Round(time.Millisecond)))
		r.log.WithField("duration", r.res.Duration).Info("pipeline completed")
	}
	metrics.RecordRun(r.opts.Job, string(r.opts.Mode), r.res.Status)
	if ferr := metrics.Flush(); ferr != nil {
		r.log.WithError(ferr).Warn("metrics flush failed")
	}
	if r.opts.Recorder == nil {
		return
	}
	id, rerr := r.opts.Recorder.Record(context.WithoutCancel(ctx), r.res, r.opts.ErrorLimit)
	if rerr != nil {
		r.log.WithError(rerr).Error("could not record run history")
		return
	}
	r.res.HistoryID = id
}
