package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportLimit caps the number of runs written by Export.
const ExportLimit = 1000

// Export is the document written by Export.
type Export struct {
	ExportedAt time.Time   `json:"exported_at"`
	Statistics Stats       `json:"statistics"`
	Runs       []RunRecord `json:"runs"`
}

// WriteExport writes the statistics and the newest ExportLimit runs of h to
// w as indented JSON.
func WriteExport(ctx context.Context, h History, w io.Writer, now time.Time) error {
	runs, err := h.ListRuns(ctx, ExportLimit)
	if err != nil {
		return fmt.Errorf("storage: export runs: %w", err)
	}
	stats, err := h.Stats(ctx)
	if err != nil {
		return fmt.Errorf("storage: export stats: %w", err)
	}
	if runs == nil {
		runs = []RunRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{ExportedAt: now.UTC(), Statistics: stats, Runs: runs})
}
