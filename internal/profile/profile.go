package profile

import (
	"strings"

	"genoetl/pkg/records"
)

// TableProfile describes a whole table.
type TableProfile struct {
	Name       string        `json:"name"`
	Rows       int           `json:"rows"`
	Columns    int           `json:"columns"`
	Duplicates int           `json:"duplicates"`
	Stats      []ColumnStats `json:"column_stats"`
}

// Table profiles every column of t in column order.
func Table(t *records.Table) TableProfile {
	p := TableProfile{Name: t.Name, Rows: t.Len(), Columns: len(t.Columns), Duplicates: DuplicateRows(t)}
	for _, c := range t.Columns {
		p.Stats = append(p.Stats, Column(c, t.Column(c)))
	}
	return p
}

// DuplicateRows counts rows identical to an earlier row in every column.
func DuplicateRows(t *records.Table) int {
	seen := make(map[string]struct{}, t.Len())
	dups := 0
	var b strings.Builder
	for _, r := range t.Rows {
		b.Reset()
		for i := range t.Columns {
			if i < len(r) && r[i] != nil {
				b.WriteString(key(r[i]))
			}
			b.WriteByte(0)
		}
		k := b.String()
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// ColumnQuality is the per-column part of a QualityReport.
type ColumnQuality struct {
	Name         string  `json:"name"`
	Completeness float64 `json:"completeness"`
	Missing      int     `json:"missing"`
	Unique       int     `json:"unique"`
}

// QualityReport scores a table by missing cells and duplicate rows.
type QualityReport struct {
	Rows          int             `json:"total_rows"`
	Columns       int             `json:"total_columns"`
	Cells         int             `json:"total_cells"`
	MissingCells  int             `json:"missing_cells"`
	DuplicateRows int             `json:"duplicate_rows"`
	ColumnQuality []ColumnQuality `json:"column_quality"`
	Score         float64         `json:"quality_score"`
}

// Quality builds the quality report for t. The score is 100 minus the
// missing-cell and duplicate-row percentages, clamped to [0, 100]. An empty
// table scores 100.
func Quality(t *records.Table) QualityReport {
	q := QualityReport{Rows: t.Len(), Columns: len(t.Columns), DuplicateRows: DuplicateRows(t)}
	q.Cells = q.Rows * q.Columns
	for _, c := range t.Columns {
		cs := Column(c, t.Column(c))
		q.MissingCells += cs.Nulls
		q.ColumnQuality = append(q.ColumnQuality, ColumnQuality{
			Name:         c,
			Completeness: round2(cs.Completeness),
			Missing:      cs.Nulls,
			Unique:       cs.Unique,
		})
	}
	var missingPct, dupPct float64
	if q.Cells > 0 {
		missingPct = float64(q.MissingCells) / float64(q.Cells) * 100
	}
	if q.Rows > 0 {
		dupPct = float64(q.DuplicateRows) / float64(q.Rows) * 100
	}
	q.Score = clamp(100-(missingPct+dupPct), 0, 100)
	return q
}

// Shape is the size of a table for CompareTables.
type Shape struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
	Nulls   int `json:"nulls"`
}

// Comparison reports what changed between two versions of a table.
type Comparison struct {
	Before       Shape `json:"before"`
	After        Shape `json:"after"`
	RowsDelta    int   `json:"rows_delta"`
	ColumnsDelta int   `json:"columns_delta"`
	NullsDelta   int   `json:"nulls_delta"`
}

// CompareTables diffs the shape of before and after.
func CompareTables(before, after *records.Table) Comparison {
	b, a := shape(before), shape(after)
	return Comparison{
		Before:       b,
		After:        a,
		RowsDelta:    a.Rows - b.Rows,
		ColumnsDelta: a.Columns - b.Columns,
		NullsDelta:   a.Nulls - b.Nulls,
	}
}

func shape(t *records.Table) Shape {
	s := Shape{Rows: t.Len(), Columns: len(t.Columns)}
	for _, r := range t.Rows {
		for i := range t.Columns {
			if i >= len(r) || r[i] == nil {
				s.Nulls++
			}
		}
	}
	return s
}

func clamp(v, lo, hi float64) float64 { return max(lo, min(hi, v)) }

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
