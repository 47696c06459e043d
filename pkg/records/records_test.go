package records

import (
	"reflect"
	"testing"
)

func sample() *Table {
	t := New("samples", "sample_id", "platform")
	t.Rows = []Row{{"S1", "ILLUMINA"}, {"S2", nil}, {"S3", "PACBIO"}}
	return t
}

func TestValueAndColumn(t *testing.T) {
	tb := sample()
	if got := tb.Value(0, "platform"); got != "ILLUMINA" {
		t.Fatalf("Value(0, platform)=%v", got)
	}
	if got := tb.Value(1, "platform"); got != nil {
		t.Fatalf("Value(1, platform)=%v; want nil", got)
	}
	if got := tb.Value(0, "nope"); got != nil {
		t.Fatalf("absent column should read missing, got %v", got)
	}
	if got := tb.Column("nope"); len(got) != 3 || got[0] != nil {
		t.Fatalf("absent column should be all-nil, got %#v", got)
	}
}

func TestWithColumnDoesNotMutate(t *testing.T) {
	tb := sample()
	out := tb.WithColumn("project_id", []any{"P1", "P2", nil})
	if tb.Has("project_id") {
		t.Fatal("input table gained a column")
	}
	want := []any{"P1", "P2", nil}
	if got := out.Column("project_id"); !reflect.DeepEqual(got, want) {
		t.Fatalf("project_id=%#v want %#v", got, want)
	}

	// Replacing keeps position.
	out2 := out.WithColumn("sample_id", []any{"a", "b", "c"})
	if out2.Index("sample_id") != 0 || out.Value(0, "sample_id") != "S1" {
		t.Fatalf("replace moved column or mutated source")
	}
}

func TestWithoutSelectFilter(t *testing.T) {
	tb := sample()
	w := tb.Without("platform")
	if !reflect.DeepEqual(w.Columns, []string{"sample_id"}) || len(w.Rows[0]) != 1 {
		t.Fatalf("Without: %#v", w)
	}
	s := tb.Select([]int{2, 0, 9})
	if s.Len() != 2 || s.Value(0, "sample_id") != "S3" {
		t.Fatalf("Select: %#v", s.Rows)
	}
	f := tb.Filter(map[int]struct{}{1: {}})
	if f.Len() != 2 || f.Value(1, "sample_id") != "S3" {
		t.Fatalf("Filter: %#v", f.Rows)
	}
	if tb.Len() != 3 {
		t.Fatal("source mutated")
	}
}
