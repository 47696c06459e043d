package transformer

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"genoetl/internal/schema"
	"genoetl/pkg/records"
)

func quiet() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func samplesRaw() *records.Table {
	t := records.New(schema.TableSamples, "sample_id", "project_id", "organism", "tissue", "collection_date", "platform", "ingested_at")
	t.Rows = []records.Row{
		{"S1", "P1", "Homo sapiens", "NA", "2021-02-03", "illumina", "ts"},
		{"S2", nil, " Mus musculus ", "liver", "bogus", "pacbio", "ts"},
		{"S1", "P1", "Homo sapiens", "blood", "2021-02-04", "NANOPORE", "ts"},
	}
	return t
}

func TestTableSamplesDedupKeepsLast(t *testing.T) {
	in := samplesRaw()
	got := Table(in, quiet())

	if got.Len() != 2 {
		t.Fatalf("rows=%d want 2", got.Len())
	}
	// The surviving S1 is the third input row and keeps its relative order.
	if got.Value(0, "sample_id") != "S2" || got.Value(1, "sample_id") != "S1" {
		t.Fatalf("order: %#v", got.Rows)
	}
	if got.Value(1, "platform") != "NANOPORE" || got.Value(1, "tissue") != "blood" {
		t.Fatalf("last occurrence should win entirely: %#v", got.Rows[1])
	}
	if got.Value(0, "platform") != "PACBIO" {
		t.Fatalf("platform should be upper-cased: %v", got.Value(0, "platform"))
	}
	if got.Value(0, "organism") != "Mus musculus" {
		t.Fatalf("organism should be trimmed: %q", got.Value(0, "organism"))
	}
	if got.Value(0, "collection_date") != nil {
		t.Fatalf("bad date should be missing, got %v", got.Value(0, "collection_date"))
	}
	want := time.Date(2021, 2, 4, 0, 0, 0, 0, time.UTC)
	if d, ok := got.Value(1, "collection_date").(time.Time); !ok || !d.Equal(want) {
		t.Fatalf("collection_date=%v", got.Value(1, "collection_date"))
	}
	if got.Value(0, "ingested_at") != "ts" {
		t.Fatal("audit columns should pass through")
	}
	if in.Value(0, "platform") != "illumina" || in.Len() != 3 {
		t.Fatal("input was mutated")
	}
}

func TestTableRunsCasts(t *testing.T) {
	in := records.New(schema.TableRuns, "run_id", "sample_id", "library_layout", "read_length", "fastq_gb")
	in.Rows = []records.Row{
		{" R1 ", "S1", "paired", "150", "4.2"},
		{"R2", "S1", "single", "abc", ""},
	}
	got := Table(in, quiet())
	if got.Value(0, "run_id") != "R1" || got.Value(0, "library_layout") != "PAIRED" {
		t.Fatalf("strings: %#v", got.Rows[0])
	}
	if got.Value(0, "read_length") != int64(150) || got.Value(0, "fastq_gb") != 4.2 {
		t.Fatalf("numbers: %#v", got.Rows[0])
	}
	if got.Value(1, "read_length") != nil || got.Value(1, "fastq_gb") != nil {
		t.Fatalf("unparsable numbers should be missing: %#v", got.Rows[1])
	}
	if got.Has("md5_1") {
		t.Fatal("optional md5 columns should not be added")
	}
}

func TestTableQCFlag(t *testing.T) {
	in := records.New(schema.TableQCMetrics, "run_id", "total_reads", "q30_rate", "gc_percent", "duplication_rate", "adapter_content_flag")
	in.Rows = []records.Row{
		{"R1", "1000", "0.9", "41.5", "0.1", "Yes"},
		{"R2", "1000", "0.9", "41.5", "0.1", "0"},
		{"R3", "1000", "0.9", "41.5", "0.1", nil},
	}
	got := Table(in, quiet())
	want := []any{true, false, false}
	if flags := got.Column("adapter_content_flag"); !reflect.DeepEqual(flags, want) {
		t.Fatalf("flags=%#v want %#v", flags, want)
	}
	// QC has no natural key; duplicates are not removed.
	if got.Len() != 3 {
		t.Fatalf("rows=%d", got.Len())
	}
}

func TestMissingSchemaColumnsAreAdded(t *testing.T) {
	in := records.New(schema.TableSamples, "sample_id")
	in.Rows = []records.Row{{"S1"}}
	got := Table(in, quiet())
	for _, f := range schema.Samples.Fields {
		if !got.Has(f.Name) {
			t.Fatalf("column %s not added", f.Name)
		}
	}
}

func TestTransformIdempotent(t *testing.T) {
	once := Table(samplesRaw(), quiet())
	twice := Table(once, quiet())
	if !reflect.DeepEqual(once.Columns, twice.Columns) || !reflect.DeepEqual(once.Rows, twice.Rows) {
		t.Fatalf("not idempotent:\n%#v\n%#v", once.Rows, twice.Rows)
	}
}

func TestAll(t *testing.T) {
	in := map[string]*records.Table{schema.TableSamples: samplesRaw()}
	out, err := All(context.Background(), in, quiet())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if out[schema.TableSamples].Len() != 2 {
		t.Fatalf("samples rows=%d", out[schema.TableSamples].Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := All(ctx, in, quiet()); err == nil {
		t.Fatal("expected context error")
	}
}
