package pipeline

import (
	"context"
	"fmt"

	"genoetl/internal/schema"
	"genoetl/internal/storage"
)

// Recorder receives every finished run. It returns the id the run was
// stored under.
type Recorder interface {
	Record(ctx context.Context, res *Result, errorLimit int) (int64, error)
}

// HistoryRecorder stores runs and their events in a storage.History.
type HistoryRecorder struct {
	History storage.History
}

// Record writes res and its events. Counts are the ingested row counts.
func (h HistoryRecorder) Record(ctx context.Context, res *Result, errorLimit int) (int64, error) {
	id, err := h.History.RecordRun(ctx, storage.RunRecord{
		Timestamp: res.Started,
		Status:    res.Status,
		Samples:   res.Counts[schema.TableSamples].Ingested,
		Runs:      res.Counts[schema.TableRuns].Ingested,
		QC:        res.Counts[schema.TableQCMetrics].Ingested,
		Duration:  res.Duration.Seconds(),
		InputDir:  res.InputDir,
		OutputDir: res.OutputDir,
		Mode:      string(res.Mode),
		Errors:    res.ErrorMessages(errorLimit),
	})
	if err != nil {
		return 0, fmt.Errorf("pipeline: record run: %w", err)
	}
	for _, e := range res.Events {
		if err := h.History.LogEvent(ctx, id, e.Type, e.Message); err != nil {
			return id, fmt.Errorf("pipeline: record event: %w", err)
		}
	}
	return id, nil
}
