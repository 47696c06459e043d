package schema

import "testing"

func TestKindOf(t *testing.T) {
	tests := []struct {
		c    Contract
		col  string
		want Kind
	}{
		{Samples, "collection_date", KindDate},
		{Runs, "read_length", KindInt},
		{Runs, "fastq_gb", KindFloat},
		{QCMetrics, "adapter_content_flag", KindBool},
		{QCMetrics, ColRowHash, KindString},
		{Samples, "unknown_extra", KindString},
	}
	for _, tt := range tests {
		if got := tt.c.KindOf(tt.col); got != tt.want {
			t.Fatalf("%s.KindOf(%q)=%q want %q", tt.c.Name, tt.col, got, tt.want)
		}
	}
}

func TestByName(t *testing.T) {
	for _, c := range Contracts() {
		got, ok := ByName(c.Name)
		if !ok || got.File != c.File {
			t.Fatalf("ByName(%q)=%v,%v", c.Name, got.File, ok)
		}
	}
	if _, ok := ByName("nope"); ok {
		t.Fatal("ByName(nope) should not resolve")
	}
}
