// Package storage defines the run-history store and a small factory that
// lets backends register themselves by kind ("sqlite", "postgres", "mssql",
// "mysql") at init time. Callers open a store with New and stay unaware of
// the concrete database.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status values recorded for a run.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DefaultListLimit is the number of runs ListRuns returns for limit <= 0.
const DefaultListLimit = 50

// Config selects and configures a backend.
type Config struct {
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

// RunRecord is one row of pipeline_runs.
type RunRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Samples   int       `json:"samples"`
	Runs      int       `json:"runs"`
	QC        int       `json:"qc"`
	Duration  float64   `json:"duration"`
	InputDir  string    `json:"input_dir,omitempty"`
	OutputDir string    `json:"output_dir,omitempty"`
	Mode      string    `json:"mode"`
	Errors    []string  `json:"errors,omitempty"`
}

// Event is one row of pipeline_events.
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats aggregates every recorded run.
type Stats struct {
	TotalRuns      int     `json:"total_runs"`
	SuccessfulRuns int     `json:"successful_runs"`
	FailedRuns     int     `json:"failed_runs"`
	SuccessRate    float64 `json:"success_rate"`
	TotalDuration  float64 `json:"total_duration_seconds"`
	TotalSamples   int64   `json:"total_samples_processed"`
	AvgDuration    float64 `json:"avg_duration_seconds"`
}

// History stores pipeline runs and their events.
type History interface {
	// RecordRun inserts a run and returns its id.
	RecordRun(ctx context.Context, r RunRecord) (int64, error)
	// LogEvent appends an event to run id.
	LogEvent(ctx context.Context, id int64, typ, msg string) error
	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Stats(ctx context.Context) (Stats, error)
	// Events returns the events of run id in time order.
	Events(ctx context.Context, id int64) ([]Event, error)
	// Clear removes every run and event.
	Clear(ctx context.Context) error
	Close() error
}

// Factory opens a History for cfg.
type Factory func(ctx context.Context, cfg Config) (History, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. A second registration for
// the same kind replaces the first.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend named by cfg.Kind. An empty kind means sqlite.
func New(ctx context.Context, cfg Config) (History, error) {
	if cfg.Kind == "" {
		cfg.Kind = "sqlite"
	}
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}
