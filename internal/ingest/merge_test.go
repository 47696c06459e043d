package ingest

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStats(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "samples.csv", []byte("sample_id,platform,tissue\nS1,ILLUMINA,NA\nS2,,blood\nS3,PACBIO,null\n"))

	st, err := Stats(context.Background(), p, Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.File != "samples.csv" || st.Rows != 3 || st.Columns != 3 || st.Bytes == 0 {
		t.Fatalf("stats = %+v", st)
	}
	if want := []string{"sample_id", "platform", "tissue"}; !reflect.DeepEqual(st.ColumnNames, want) {
		t.Fatalf("columns = %v", st.ColumnNames)
	}
	if want := map[string]int{"sample_id": 0, "platform": 1, "tissue": 2}; !reflect.DeepEqual(st.NullCounts, want) {
		t.Fatalf("null counts = %v", st.NullCounts)
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", []byte("run_id,sample_id\nR1,S1\nR2,S2\n"))
	b := writeFile(t, dir, "b.tsv", []byte("run_id\tread_length\nR3\t150\n"))
	out := filepath.Join(t.TempDir(), "merged", "runs.tsv")

	res, err := Merge(context.Background(), []string{a, b}, out, Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Files != 2 || res.Rows != 3 {
		t.Fatalf("result = %+v", res)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "run_id\tsample_id\tread_length\nR1\tS1\t\nR2\tS2\t\nR3\t\t150\n"
	if string(got) != want {
		t.Fatalf("merged file:\n%q\nwant\n%q", got, want)
	}
}

func TestMergeRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "a.csv", []byte("x\n1\n"))
	bad := writeFile(t, dir, "notes.md", []byte("# hi"))
	out := filepath.Join(dir, "merged.csv")

	if _, err := Merge(context.Background(), nil, out, Options{}); err == nil {
		t.Fatal("want error for no inputs")
	}
	if _, err := Merge(context.Background(), []string{good, bad}, out, Options{Logger: quiet()}); err == nil {
		t.Fatal("want error for unsupported input")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("output must not be created when an input fails")
	}
}
