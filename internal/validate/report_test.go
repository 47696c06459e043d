package validate

import (
	"reflect"
	"testing"
)

func TestRowsByTableSkipsRules(t *testing.T) {
	vs := Violations{
		NotNull{Location{"runs", 0, "run_id"}},
		Unique{Location: Location{"runs", 2, "run_id"}, Value: "R1"},
		Enum{Location: Location{"runs", 0, "library_layout"}, Value: "x"},
		Range{Location: Location{"qc_metrics", 3, "q30_rate"}, Value: "2", Numeric: true, Got: 2, Bounds: unitRange},
	}
	got := vs.RowsByTable(RuleUnique)
	if len(got["runs"]) != 1 || len(got["runs"][0]) != 2 {
		t.Fatalf("runs rows: %v", got["runs"])
	}
	if _, ok := got["runs"][2]; ok {
		t.Fatal("UNIQUE row should be skipped")
	}
	if len(got["qc_metrics"][3]) != 1 {
		t.Fatalf("qc rows: %v", got["qc_metrics"])
	}
}

func TestFirstAndRecords(t *testing.T) {
	vs := Violations{
		NotNull{Location{"samples", 0, "sample_id"}},
		ForeignKey{Location: Location{"runs", 4, "sample_id"}, Value: "S9", RefTable: "samples", RefColumn: "sample_id"},
	}
	if len(vs.First(1)) != 1 || len(vs.First(0)) != 2 || len(vs.First(10)) != 2 {
		t.Fatal("First returned the wrong length")
	}
	recs := vs.Records()
	if recs[0].Value != nil || recs[0].Rule != RuleNotNull {
		t.Fatalf("record 0: %+v", recs[0])
	}
	if recs[1].Value == nil || *recs[1].Value != "S9" {
		t.Fatalf("record 1: %+v", recs[1])
	}
	want := map[Rule]int{RuleNotNull: 1, RuleFKCheck: 1}
	if !reflect.DeepEqual(vs.CountByRule(), want) {
		t.Fatalf("CountByRule = %v", vs.CountByRule())
	}
}

func TestBoundsString(t *testing.T) {
	cases := map[string]Bounds{"> 0": positive, ">= 0": nonNegative, "in [0, 100]": percent}
	for want, b := range cases {
		if got := b.String(); got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}
