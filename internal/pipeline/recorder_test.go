package pipeline

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"genoetl/internal/schema"
	"genoetl/internal/storage/sqldb"
	"genoetl/internal/validate"
)

func TestHistoryRecorder(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	store, err := sqldb.Open(ctx, db, sqldb.SQLite)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	res := &Result{
		Status:   StatusFailed,
		Mode:     ModeStrict,
		Started:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Counts:   map[string]TableCounts{schema.TableSamples: {Ingested: 3}},
		Errors: validate.Violations{
			validate.NotNull{Location: validate.Location{Table: "runs", Row: 0, Column: "run_id"}},
			validate.NotNull{Location: validate.Location{Table: "runs", Row: 1, Column: "run_id"}},
		},
		Events: []Event{{Type: "pipeline_start", Message: "go"}, {Type: "pipeline_failed", Message: "boom"}},
	}
	id, err := HistoryRecorder{History: store}.Record(ctx, res, 1)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	runs, err := store.ListRuns(ctx, 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns = %v, %v", runs, err)
	}
	r := runs[0]
	if r.ID != id || r.Samples != 3 || r.Duration != 1.5 || len(r.Errors) != 1 {
		t.Fatalf("stored run = %+v", r)
	}
	evs, err := store.Events(ctx, id)
	if err != nil || len(evs) != 2 {
		t.Fatalf("events = %v, %v", evs, err)
	}
}
