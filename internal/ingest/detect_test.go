package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestDetectSeparator(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"tab", "a\tb\tc\n", '\t'},
		{"semicolon", "a;b;c\n", ';'},
		{"no delimiter defaults to comma", "single\n", ','},
		{"tie prefers comma over tab", "a,b\tc\n", ','},
		{"tie prefers tab over semicolon", "a\tb;c\n", '\t'},
		{"only first line counts", "a;b;c\n1,2,3,4,5,6\n", ';'},
		{"no trailing newline", "a\tb", '\t'},
		{"empty file", "", ','},
	}
	dir := t.TempDir()
	for i, tt := range tests {
		p := writeFile(t, dir, tt.name+".txt", []byte(tt.data))
		got, err := DetectSeparator(p, "")
		if err != nil {
			t.Fatalf("[%d] %s: unexpected error: %v", i, tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("[%d] %s: got %q want %q", i, tt.name, got, tt.want)
		}
	}
}

func TestDetectSeparatorEncodings(t *testing.T) {
	dir := t.TempDir()

	// 0xE9 is "é" in latin1 and invalid on its own in UTF-8.
	latin := writeFile(t, dir, "latin.csv", []byte("caf\xe9;x;y\n"))
	if _, err := DetectSeparator(latin, "utf-8"); err == nil {
		t.Fatal("expected decode error for invalid UTF-8")
	}
	got, err := DetectSeparator(latin, "latin1")
	if err != nil {
		t.Fatalf("latin1: %v", err)
	}
	if got != ';' {
		t.Fatalf("latin1: got %q want ';'", got)
	}

	if _, err := DetectSeparator(latin, "no-such-encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
	if _, err := DetectSeparator(filepath.Join(dir, "missing.csv"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}

	bom := writeFile(t, dir, "bom.tsv", []byte("\xef\xbb\xbfa\tb\n"))
	if got, err := DetectSeparator(bom, ""); err != nil || got != '\t' {
		t.Fatalf("bom: got %q, %v", got, err)
	}
}
