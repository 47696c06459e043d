package profile

import (
	"math"
	"reflect"
	"testing"

	"genoetl/pkg/records"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestColumnNumeric(t *testing.T) {
	cs := Column("read_length", []any{"100", nil, "300", "200", "200"})
	if cs.Type != TypeNumeric || cs.Count != 5 || cs.Nulls != 1 || cs.Unique != 3 {
		t.Fatalf("stats = %+v", cs)
	}
	if !near(cs.Completeness, 80) {
		t.Errorf("completeness = %v", cs.Completeness)
	}
	n := cs.Numeric
	if n.Min != 100 || n.Max != 300 || n.Mean != 200 || n.Median != 200 {
		t.Errorf("numeric = %+v", n)
	}
	if !near(n.Std, math.Sqrt(20000.0/3)) {
		t.Errorf("std = %v", n.Std)
	}
}

func TestColumnString(t *testing.T) {
	cs := Column("organism", []any{"Homo sapiens", "Mus", "1", nil})
	if cs.Type != TypeString {
		t.Fatalf("type = %s", cs.Type)
	}
	if cs.MinLength != 1 || cs.MaxLength != 12 {
		t.Errorf("lengths = %d..%d", cs.MinLength, cs.MaxLength)
	}
	if Column("x", []any{nil, nil}).Type != TypeEmpty {
		t.Error("all-null column should be empty")
	}
	if Column("x", []any{true, false}).Type != TypeBool {
		t.Error("bool column")
	}
}

func sampleTable() *records.Table {
	t := records.New("samples", "sample_id", "organism", "platform")
	t.Rows = []records.Row{
		{"S1", "human", "ILLUMINA"},
		{"S2", nil, "NANOPORE"},
		{"S1", "human", "ILLUMINA"},
		{"S3", nil, nil},
	}
	return t
}

func TestTableAndQuality(t *testing.T) {
	tb := sampleTable()
	p := Table(tb)
	if p.Rows != 4 || p.Columns != 3 || p.Duplicates != 1 || len(p.Stats) != 3 {
		t.Fatalf("profile = %+v", p)
	}

	q := Quality(tb)
	if q.Cells != 12 || q.MissingCells != 3 || q.DuplicateRows != 1 {
		t.Fatalf("quality = %+v", q)
	}
	// 100 - (25% missing + 25% duplicates)
	if !near(q.Score, 50) {
		t.Errorf("score = %v", q.Score)
	}
	if q.ColumnQuality[1].Completeness != 50 || q.ColumnQuality[1].Missing != 2 {
		t.Errorf("organism quality = %+v", q.ColumnQuality[1])
	}

	empty := records.New("empty", "a")
	if Quality(empty).Score != 100 {
		t.Error("empty table should score 100")
	}
}

func TestCompareTables(t *testing.T) {
	before := sampleTable()
	after := records.New("samples", "sample_id", "organism", "platform", "project_id")
	after.Rows = []records.Row{{"S1", "human", "ILLUMINA", "P1"}, {"S2", nil, "NANOPORE", nil}}

	c := CompareTables(before, after)
	want := Comparison{
		Before:       Shape{Rows: 4, Columns: 3, Nulls: 3},
		After:        Shape{Rows: 2, Columns: 4, Nulls: 2},
		RowsDelta:    -2,
		ColumnsDelta: 1,
		NullsDelta:   -1,
	}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("got %+v\nwant %+v", c, want)
	}
}

func TestOutliers(t *testing.T) {
	xs := []float64{10, 11, 12, 11, 10, 12, 11, 95}
	got, err := Outliers(xs, MethodIQR)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int{7}) {
		t.Errorf("iqr = %v", got)
	}

	z := make([]float64, 30)
	for i := range z {
		z[i] = 50
	}
	z[3] = 51
	z[29] = 500
	got, _ = Outliers(z, MethodZScore)
	if !reflect.DeepEqual(got, []int{29}) {
		t.Errorf("zscore = %v", got)
	}
	if _, err := Outliers(xs, "mad"); err == nil {
		t.Error("unknown method accepted")
	}
}

func qcTable() *records.Table {
	t := records.New("qc_metrics", "run_id", "q30_rate", "gc_percent", "duplication_rate", "adapter_content_flag")
	t.Rows = []records.Row{
		{"R1", 0.95, 45.0, 0.05, false},
		{"R2", 0.85, 70.0, 0.12, false},
		{"R3", 0.70, 50.0, 0.20, true},
		{"R4", 0.92, 55.0, 0.02, false},
	}
	return t
}

func TestAnalyzeQC(t *testing.T) {
	a := AnalyzeQC(qcTable())
	if a.Runs != 4 {
		t.Fatalf("runs = %d", a.Runs)
	}
	if a.Q30.Below90 != 2 || a.Q30.Below80 != 1 || !near(a.Q30.PassRate, 50) {
		t.Errorf("q30 = %+v", a.Q30)
	}
	if a.GC.InRange != 3 || !near(a.GC.PassRate, 75) {
		t.Errorf("gc = %+v", a.GC)
	}
	if a.Duplication.AboveHigh != 2 || !near(a.Duplication.PassRate, 50) {
		t.Errorf("dup = %+v", a.Duplication)
	}
	if a.Adapter.Flagged != 1 || !near(a.Adapter.Percent, 25) {
		t.Errorf("adapter = %+v", a.Adapter)
	}
	// 100 - 50*0.5 - 25*0.3 - 50*0.2
	if !near(a.Score, 57.5) {
		t.Errorf("score = %v", a.Score)
	}

	partial := records.New("qc_metrics", "run_id", "gc_percent")
	partial.Rows = []records.Row{{"R1", 50.0}}
	pa := AnalyzeQC(partial)
	if pa.Q30 != nil || pa.Duplication != nil || pa.Adapter != nil || pa.Score != 100 {
		t.Errorf("partial = %+v", pa)
	}
}

func TestFailed(t *testing.T) {
	f := Failed(qcTable())
	if !reflect.DeepEqual(f.ByQ30, []string{"R3"}) {
		t.Errorf("q30 = %v", f.ByQ30)
	}
	if !reflect.DeepEqual(f.ByGC, []string{"R2"}) {
		t.Errorf("gc = %v", f.ByGC)
	}
	if !reflect.DeepEqual(f.ByDuplication, []string{"R3"}) {
		t.Errorf("dup = %v", f.ByDuplication)
	}
	if !reflect.DeepEqual(f.All, []string{"R2", "R3"}) {
		t.Errorf("all = %v", f.All)
	}
}
