package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"genoetl/internal/schema"
	"genoetl/internal/transformer/builtin"
	"genoetl/pkg/records"
)

// FileStats describes one delimited file as read by the ingestor.
type FileStats struct {
	File        string         `json:"file_name"`
	Rows        int            `json:"rows"`
	Columns     int            `json:"columns"`
	ColumnNames []string       `json:"column_names"`
	Bytes       int64          `json:"file_bytes"`
	Size        string         `json:"file_size"`
	NullCounts  map[string]int `json:"null_counts"`
}

// Stats ingests path and counts rows, columns and missing cells per column.
// Null sentinels count as missing.
func Stats(ctx context.Context, path string, opts Options) (FileStats, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileStats{}, fmt.Errorf("ingest: stat %s: %w", path, err)
	}
	t, err := readData(ctx, path, opts)
	if err != nil {
		return FileStats{}, err
	}
	fs := FileStats{
		File:        filepath.Base(path),
		Rows:        t.Len(),
		Columns:     len(t.Columns),
		ColumnNames: t.Columns,
		Bytes:       st.Size(),
		Size:        units.HumanSize(float64(st.Size())),
		NullCounts:  make(map[string]int, len(t.Columns)),
	}
	for _, c := range t.Columns {
		n := 0
		for _, v := range t.Column(c) {
			if builtin.IsNull(v) {
				n++
			}
		}
		fs.NullCounts[c] = n
	}
	return fs, nil
}

// MergeResult summarises a Merge call.
type MergeResult struct {
	Output  string   `json:"output"`
	Files   int      `json:"files"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// Merge concatenates the rows of paths into one file at out. Columns are the
// union in first-seen order; a file without a column leaves it empty. The
// output is tab separated when out ends in .tsv and comma separated
// otherwise. Every input is read before out is created.
func Merge(ctx context.Context, paths []string, out string, opts Options) (MergeResult, error) {
	if len(paths) == 0 {
		return MergeResult{}, errors.New("ingest: merge: no input files")
	}
	tables := make([]*records.Table, 0, len(paths))
	var cols []string
	seen := map[string]bool{}
	for _, p := range paths {
		t, err := readData(ctx, p, opts)
		if err != nil {
			return MergeResult{}, err
		}
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
		tables = append(tables, t)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return MergeResult{}, fmt.Errorf("ingest: merge: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return MergeResult{}, fmt.Errorf("ingest: merge: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if strings.EqualFold(filepath.Ext(out), ".tsv") {
		w.Comma = '\t'
	}
	if err := w.Write(cols); err != nil {
		return MergeResult{}, fmt.Errorf("ingest: merge %s: %w", out, err)
	}
	res := MergeResult{Output: out, Files: len(paths), Columns: cols}
	rec := make([]string, len(cols))
	for _, t := range tables {
		idx := make([]int, len(cols))
		for i, c := range cols {
			idx[i] = t.Index(c)
		}
		for _, row := range t.Rows {
			for i, j := range idx {
				rec[i] = ""
				if j >= 0 && j < len(row) && row[j] != nil {
					rec[i] = fmt.Sprint(row[j])
				}
			}
			if err := w.Write(rec); err != nil {
				return res, fmt.Errorf("ingest: merge %s: %w", out, err)
			}
			res.Rows++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return res, fmt.Errorf("ingest: merge %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("ingest: merge %s: %w", out, err)
	}
	opts.logger().WithFields(logrus.Fields{"files": res.Files, "rows": res.Rows, "output": out}).Info("files merged")
	return res, nil
}

// readData ingests path without the audit columns.
func readData(ctx context.Context, path string, opts Options) (*records.Table, error) {
	if err := CheckFile(path, opts.Encoding); err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := File(ctx, path, name, opts)
	if err != nil {
		return nil, err
	}
	return t.Without(schema.AuditColumns...), nil
}
