package builtin

import (
	"reflect"
	"testing"

	"genoetl/pkg/records"
)

func mk(rows ...records.Row) *records.Table {
	t := records.New("samples", "sample_id", "platform", "tissue")
	t.Rows = rows
	return t
}

func TestDeDupKeepFirst(t *testing.T) {
	in := mk(
		records.Row{"S1", "ILLUMINA", "A"},
		records.Row{"S1", "NANOPORE", "B"},
		records.Row{"S2", "PACBIO", "C"},
	)
	got, removed := DeDup{Keys: []string{"sample_id"}, Policy: "keep-first"}.Apply(in)
	want := []records.Row{{"S1", "ILLUMINA", "A"}, {"S2", "PACBIO", "C"}}
	if !reflect.DeepEqual(got.Rows, want) || removed != 1 {
		t.Fatalf("keep-first: got %#v (removed %d) want %#v", got.Rows, removed, want)
	}
}

func TestDeDupKeepLast(t *testing.T) {
	in := mk(
		records.Row{"S1", "ILLUMINA", "A"},
		records.Row{"S2", "PACBIO", "C"},
		records.Row{"S1", "NANOPORE", nil},
	)
	got, removed := DeDup{Keys: []string{"sample_id"}}.Apply(in)
	// The later S1 wins entirely (no field merge) and keeps its position.
	want := []records.Row{{"S2", "PACBIO", "C"}, {"S1", "NANOPORE", nil}}
	if !reflect.DeepEqual(got.Rows, want) || removed != 1 {
		t.Fatalf("keep-last: got %#v (removed %d) want %#v", got.Rows, removed, want)
	}
	if in.Len() != 3 {
		t.Fatal("input mutated")
	}
}

func TestDeDupMostComplete(t *testing.T) {
	in := mk(
		records.Row{"S1", "ILLUMINA", "liver"},
		records.Row{"S1", nil, nil},
		records.Row{"S2", "PACBIO", "C"},
	)
	got, _ := DeDup{Keys: []string{"sample_id"}, Policy: "most-complete"}.Apply(in)
	want := []records.Row{{"S1", "ILLUMINA", "liver"}, {"S2", "PACBIO", "C"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Fatalf("most-complete: got %#v want %#v", got.Rows, want)
	}
}

func TestDeDupMissingKeysCollapse(t *testing.T) {
	in := mk(
		records.Row{nil, "ILLUMINA", "A"},
		records.Row{nil, "PACBIO", "B"},
	)
	got, removed := DeDup{Keys: []string{"sample_id"}}.Apply(in)
	if got.Len() != 1 || removed != 1 || got.Rows[0][2] != "B" {
		t.Fatalf("missing keys: got %#v", got.Rows)
	}
}

func TestDeDupUnknownKey(t *testing.T) {
	in := mk(records.Row{"S1", "A", "x"}, records.Row{"S1", "A", "x"})
	got, removed := DeDup{Keys: []string{"nope"}}.Apply(in)
	if got.Len() != 2 || removed != 0 {
		t.Fatalf("unknown key should be a no-op, got %d rows", got.Len())
	}
}
