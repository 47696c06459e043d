// Package metrics records operational metrics for pipeline runs behind a
// small, backend-agnostic interface.
//
// The rest of the codebase only calls RecordStep, RecordRow and RecordRun.
// Concrete systems (Prometheus Pushgateway, Datadog) live in subpackages and
// are installed with SetBackend. Until then a no-op backend is active, so the
// helpers are always safe to call.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared with the backends.
const (
	StageTotal    = "genoetl_stage_total"
	StageDuration = "genoetl_stage_duration_seconds"
	RowsTotal     = "genoetl_rows_total"
	RunsTotal     = "genoetl_runs_total"
)

// Step names of the four pipeline stages.
const (
	StepIngest    = "ingest"
	StepValidate  = "validate"
	StepTransform = "transform"
	StepLoad      = "load"
)

// Row kinds counted per run.
const (
	KindIngested    = "ingested"
	KindViolations  = "violations"
	KindQuarantined = "quarantined"
	KindLoaded      = "loaded"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a pipeline stage and observes its
// duration, labelled with success or failure.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StageTotal, 1, lbls)
	b.ObserveHistogram(StageDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind for one table. Non-positive
// deltas are ignored.
func RecordRow(job, table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
		"kind":  kind,
	})
}

// RecordRun counts one finished run by status.
func RecordRun(job, mode, status string) {
	current().IncCounter(RunsTotal, 1, Labels{
		"job":    job,
		"mode":   mode,
		"status": status,
	})
}
