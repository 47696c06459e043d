package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"genoetl/internal/schema"
	"genoetl/pkg/records"
)

func fixture() map[string]*records.Table {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	s := records.New(schema.TableSamples, "sample_id", "project_id", "collection_date", "platform")
	s.Rows = []records.Row{
		{"S1", "P1", day, "ILLUMINA"},
		{"S2", nil, nil, "NANOPORE"},
	}
	r := records.New(schema.TableRuns, "run_id", "sample_id", "library_layout", "read_length", "fastq_gb")
	r.Rows = []records.Row{
		{"R1", "S1", "PAIRED", int64(150), 2.5},
		{"R2", "S2", "SINGLE", int64(76), 0.0},
		{"R3", "S9", "SINGLE", nil, nil},
	}
	q := records.New(schema.TableQCMetrics, "run_id", "q30_rate", "adapter_content_flag")
	q.Rows = []records.Row{
		{"R1", 0.93, true},
		{"RX", 0.5, false},
	}
	return map[string]*records.Table{
		schema.TableSamples:   s,
		schema.TableRuns:      r,
		schema.TableQCMetrics: q,
	}
}

func readBack(t *testing.T, path string) arrow.Table {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	tbl, err := pqarrow.ReadTable(context.Background(), f, parquet.NewReaderProperties(memory.DefaultAllocator),
		pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	t.Cleanup(tbl.Release)
	return tbl
}

func column(t *testing.T, tbl arrow.Table, name string) arrow.Array {
	t.Helper()
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		t.Fatalf("column %s missing from %v", name, tbl.Schema())
	}
	chunks := tbl.Column(idx[0]).Data().Chunks()
	if len(chunks) != 1 {
		t.Fatalf("want one chunk for %s, got %d", name, len(chunks))
	}
	return chunks[0]
}

func TestLoadWritesStarSchema(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	w, err := Load(context.Background(), fixture(), out, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(w) != 3 || w.Rows(FactRuns) != 3 || w.Rows(FactQCMetrics) != 2 {
		t.Fatalf("Written = %+v", w)
	}
	for _, a := range w {
		if a.Bytes <= 0 {
			t.Fatalf("%s has no bytes", a.Table)
		}
	}

	dim := readBack(t, filepath.Join(out, "dim_samples.parquet"))
	if dim.NumRows() != 2 {
		t.Fatalf("dim rows = %d", dim.NumRows())
	}
	if f, _ := dim.Schema().FieldsByName("collection_date"); f[0].Type.ID() != arrow.DATE32 {
		t.Fatalf("collection_date type = %s", f[0].Type)
	}

	runs := readBack(t, filepath.Join(out, "fact_runs.parquet"))
	proj := column(t, runs, "project_id").(*array.String)
	if proj.Value(0) != "P1" || !proj.IsNull(1) || !proj.IsNull(2) {
		t.Fatalf("project_id enrichment wrong: %v", proj)
	}
	rl := column(t, runs, "read_length").(*array.Int64)
	if rl.Value(0) != 150 || !rl.IsNull(2) {
		t.Fatalf("read_length: %v", rl)
	}

	qc := readBack(t, filepath.Join(out, "fact_qc_metrics.parquet"))
	qp := column(t, qc, "project_id").(*array.String)
	if qp.Value(0) != "P1" || !qp.IsNull(1) {
		t.Fatalf("qc project_id: %v", qp)
	}
	if flag := column(t, qc, "adapter_content_flag").(*array.Boolean); !flag.Value(0) || flag.Value(1) {
		t.Fatalf("adapter_content_flag: %v", flag)
	}
}

func TestLoadPartitioned(t *testing.T) {
	out := t.TempDir()
	// a stale single-file artifact is replaced by the dataset directory
	if err := os.WriteFile(filepath.Join(out, "fact_runs.parquet"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := Load(context.Background(), fixture(), out, Options{PartitionCols: []string{"project_id"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "fact_runs.parquet")); !os.IsNotExist(err) {
		t.Fatalf("stale artifact still present: %v", err)
	}
	if w[1].Partitions != 2 || w[1].Path != filepath.Join(out, FactRuns) {
		t.Fatalf("runs artifact = %+v", w[1])
	}
	p1 := readBack(t, filepath.Join(out, FactRuns, "project_id=P1", partFile))
	if p1.NumRows() != 1 {
		t.Fatalf("P1 rows = %d", p1.NumRows())
	}
	if len(p1.Schema().FieldIndices("project_id")) != 0 {
		t.Fatal("partition column should not be in the file body")
	}
	def := readBack(t, filepath.Join(out, FactRuns, "project_id="+HiveDefault, partFile))
	if def.NumRows() != 2 {
		t.Fatalf("default partition rows = %d", def.NumRows())
	}
	// the dimension table is never partitioned
	if _, err := os.Stat(filepath.Join(out, "dim_samples.parquet")); err != nil {
		t.Fatalf("dim_samples: %v", err)
	}
}

func TestLoadUnknownPartitionColumn(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	_, err := Load(context.Background(), fixture(), out, Options{PartitionCols: []string{"nope"}})
	if err == nil {
		t.Fatal("want error")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("nothing should be written before the partition check")
	}
}

func TestLoadMissingTable(t *testing.T) {
	tables := fixture()
	delete(tables, schema.TableRuns)
	if _, err := Load(context.Background(), tables, t.TempDir(), Options{}); err == nil {
		t.Fatal("want error for missing table")
	}
}

func TestCodec(t *testing.T) {
	for _, name := range []string{"", "zstd", "SNAPPY", "gzip", "none"} {
		if _, err := Codec(name); err != nil {
			t.Fatalf("Codec(%q): %v", name, err)
		}
	}
	if _, err := Codec("lzma"); err == nil {
		t.Fatal("want error for unknown codec")
	}
}

func TestLeftJoinReplacesColumn(t *testing.T) {
	left := records.New("runs", "run_id", "project_id", "sample_id")
	left.Rows = []records.Row{{"R1", "stale", "S1"}}
	right := records.New("samples", "sample_id", "project_id")
	right.Rows = []records.Row{{"S1", "P1"}}
	got := leftJoin(left, right, "sample_id", "project_id")
	if len(got.Columns) != 3 || got.Value(0, "project_id") != "P1" {
		t.Fatalf("got %+v", got)
	}
	if left.Value(0, "project_id") != "stale" {
		t.Fatal("input mutated")
	}
}
