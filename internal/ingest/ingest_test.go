package ingest

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"genoetl/internal/schema"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

func TestFileNormalizesHeadersAndAddsAudit(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "samples.csv", []byte("\xef\xbb\xbf Sample_ID ,PLATFORM,Tissue\nS1,illumina,\nS2,NANOPORE,liver\n"))

	tb, err := File(context.Background(), p, "samples", Options{Now: fixedNow, Logger: quiet()})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	wantCols := []string{"sample_id", "platform", "tissue", "ingested_at", "source_file", "row_hash"}
	if !reflect.DeepEqual(tb.Columns, wantCols) {
		t.Fatalf("columns=%v want %v", tb.Columns, wantCols)
	}
	if tb.Len() != 2 {
		t.Fatalf("rows=%d want 2", tb.Len())
	}
	if got := tb.Value(0, "platform"); got != "illumina" {
		t.Fatalf("values must be kept as read, got %v", got)
	}
	if got := tb.Value(0, "tissue"); got != nil {
		t.Fatalf("empty cell should be missing, got %#v", got)
	}
	ts := tb.Value(0, schema.ColIngestedAt)
	if ts != "2024-05-01T12:30:00.000000Z" || tb.Value(1, schema.ColIngestedAt) != ts {
		t.Fatalf("ingested_at=%v / %v", ts, tb.Value(1, schema.ColIngestedAt))
	}
	if got := tb.Value(1, schema.ColSourceFile); got != "samples.csv" {
		t.Fatalf("source_file=%v", got)
	}
	h0, _ := tb.Value(0, schema.ColRowHash).(string)
	h1, _ := tb.Value(1, schema.ColRowHash).(string)
	if len(h0) != 32 || h0 == h1 {
		t.Fatalf("row hashes look wrong: %q %q", h0, h1)
	}
}

func TestRowHashDeterministic(t *testing.T) {
	cols := []string{"a", "b"}
	if RowHash(cols, []any{"1", nil}) != RowHash(cols, []any{"1", nil}) {
		t.Fatal("same row hashed differently")
	}
	if RowHash(cols, []any{"1", "2"}) == RowHash(cols, []any{"2", "1"}) {
		t.Fatal("different rows share a hash")
	}
	if RowHash([]string{"a"}, []any{"1"}) == RowHash([]string{"b"}, []any{"1"}) {
		t.Fatal("column names must be part of the digest")
	}
}

func TestFileShortAndLongRows(t *testing.T) {
	dir := t.TempDir()
	short := writeFile(t, dir, "short.csv", []byte("a,b,c\n1,2\n"))
	tb, err := File(context.Background(), short, "short", Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("short rows should pad: %v", err)
	}
	if tb.Value(0, "c") != nil || tb.Value(0, "b") != "2" {
		t.Fatalf("padding wrong: %#v", tb.Rows[0])
	}

	long := writeFile(t, dir, "long.csv", []byte("a,b\n1,2,3\n"))
	if _, err := File(context.Background(), long, "long", Options{Logger: quiet()}); err == nil {
		t.Fatal("expected error for row wider than header")
	}

	empty := writeFile(t, dir, "empty.csv", nil)
	if _, err := File(context.Background(), empty, "empty", Options{Logger: quiet()}); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestFileSeparatorOverrideAndContext(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "x.txt", []byte("a|b\n1|2\n"))
	tb, err := File(context.Background(), p, "x", Options{Separator: '|', Logger: quiet()})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if tb.Value(0, "b") != "2" {
		t.Fatalf("override separator not used: %#v", tb.Rows)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := File(ctx, p, "x", Options{Logger: quiet()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestAllSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "samples.csv", []byte("sample_id,platform\nS1,ILLUMINA\n"))
	writeFile(t, dir, "qc_metrics.tsv", []byte("run_id\tq30_rate\nR1\t0.9\n"))

	got, err := All(context.Background(), dir, Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if _, ok := got[schema.TableRuns]; ok {
		t.Fatal("runs should be omitted when runs.csv is absent")
	}
	if got[schema.TableSamples].Len() != 1 || got[schema.TableQCMetrics].Value(0, "q30_rate") != "0.9" {
		t.Fatalf("unexpected tables: %#v", got)
	}
}

func TestAllPropagatesParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "samples.csv", []byte("a,b\n1,2,3\n"))
	if _, err := All(context.Background(), dir, Options{Logger: quiet()}); err == nil {
		t.Fatal("expected parse error to propagate")
	}
}
