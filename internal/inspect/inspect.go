// Package inspect reports the schema of Parquet artifacts and delimited
// inputs and compares two schemas.
package inspect

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"

	"genoetl/internal/ingest"
	"genoetl/internal/profile"
)

// Source formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// CSVSampleRows bounds how many rows CSV inspects.
const CSVSampleRows = 1000

// Column describes one column.
type Column struct {
	Name      string `json:"name"`
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Physical  string `json:"physical,omitempty"`
	Logical   string `json:"logical,omitempty"`
	Nullable  bool   `json:"nullable"`
	NullCount *int64 `json:"null_count,omitempty"`
}

// Schema is the shape of one file.
type Schema struct {
	File      string   `json:"file"`
	Format    string   `json:"format"`
	NumRows   int64    `json:"num_rows"`
	RowGroups int      `json:"row_groups,omitempty"`
	FileBytes int64    `json:"file_bytes"`
	Columns   []Column `json:"columns"`
}

// Size is the human readable file size.
func (s *Schema) Size() string { return units.HumanSize(float64(s.FileBytes)) }

// Column returns the named column.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Parquet reads the footer of the Parquet file at path. Null counts are
// summed from row group statistics when every group carries them.
func Parquet(path string) (*Schema, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("inspect: parquet file not found: %s", path)
		}
		return nil, fmt.Errorf("inspect: stat %s: %w", path, err)
	}
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("inspect: open %s: %w", path, err)
	}
	defer rdr.Close()

	md := rdr.MetaData()
	ps := md.Schema
	as, err := pqarrow.FromParquet(ps, nil, md.KeyValueMetadata())
	if err != nil {
		return nil, fmt.Errorf("inspect: arrow schema %s: %w", path, err)
	}

	s := &Schema{
		File:      path,
		Format:    FormatParquet,
		NumRows:   rdr.NumRows(),
		RowGroups: rdr.NumRowGroups(),
		FileBytes: st.Size(),
	}
	for i := 0; i < ps.NumColumns(); i++ {
		col := ps.Column(i)
		c := Column{
			Name:     col.Name(),
			Index:    i,
			Physical: col.PhysicalType().String(),
			Nullable: col.MaxDefinitionLevel() > 0,
		}
		if lt := col.LogicalType(); lt != nil {
			c.Logical = lt.String()
		}
		if i < as.NumFields() {
			c.Type = as.Field(i).Type.String()
		} else {
			c.Type = c.Physical
		}
		c.NullCount = nullCount(rdr, i)
		s.Columns = append(s.Columns, c)
	}
	return s, nil
}

func nullCount(rdr *file.Reader, col int) *int64 {
	var total int64
	md := rdr.MetaData()
	for g := 0; g < rdr.NumRowGroups(); g++ {
		cc, err := md.RowGroup(g).ColumnChunk(col)
		if err != nil {
			return nil
		}
		if ok, err := cc.StatsSet(); err != nil || !ok {
			return nil
		}
		stats, err := cc.Statistics()
		if err != nil || stats == nil || !stats.HasNullCount() {
			return nil
		}
		total += stats.NullCount()
	}
	return &total
}

// CSV ingests up to CSVSampleRows rows of a delimited file and describes its
// columns with the profiler's type inference. Audit columns are left out.
func CSV(ctx context.Context, path string, opts ingest.Options) (*Schema, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("inspect: csv file not found: %s", path)
		}
		return nil, fmt.Errorf("inspect: stat %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := ingest.File(ctx, path, name, opts)
	if err != nil {
		return nil, err
	}
	t = t.Without("ingested_at", "source_file", "row_hash")
	if t.Len() > CSVSampleRows {
		t.Rows = t.Rows[:CSVSampleRows]
	}

	s := &Schema{File: path, Format: FormatCSV, NumRows: int64(t.Len()), FileBytes: st.Size()}
	for i, c := range t.Columns {
		cs := profile.Column(c, t.Column(c))
		nulls := int64(cs.Nulls)
		s.Columns = append(s.Columns, Column{
			Name:      c,
			Index:     i,
			Type:      cs.Type,
			Nullable:  cs.Nulls > 0,
			NullCount: &nulls,
		})
	}
	return s, nil
}

// TypeChange records a column whose type differs between two schemas.
type TypeChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Comparison is the difference between a source and a target schema.
type Comparison struct {
	Source          string                `json:"source"`
	Target          string                `json:"target"`
	Common          []string              `json:"common_columns"`
	MissingInTarget []string              `json:"missing_in_target"`
	NewInTarget     []string              `json:"new_in_target"`
	TypeChanges     map[string]TypeChange `json:"type_changes"`
	RowDifference   int64                 `json:"row_difference"`
}

// Compare diffs target against source. Column lists are sorted.
func Compare(source, target *Schema) Comparison {
	c := Comparison{
		Source:          source.File,
		Target:          target.File,
		Common:          []string{},
		MissingInTarget: []string{},
		NewInTarget:     []string{},
		TypeChanges:     map[string]TypeChange{},
		RowDifference:   target.NumRows - source.NumRows,
	}
	for _, sc := range source.Columns {
		tc, ok := target.Column(sc.Name)
		if !ok {
			c.MissingInTarget = append(c.MissingInTarget, sc.Name)
			continue
		}
		c.Common = append(c.Common, sc.Name)
		if sc.Type != tc.Type {
			c.TypeChanges[sc.Name] = TypeChange{From: sc.Type, To: tc.Type}
		}
	}
	for _, tc := range target.Columns {
		if _, ok := source.Column(tc.Name); !ok {
			c.NewInTarget = append(c.NewInTarget, tc.Name)
		}
	}
	sort.Strings(c.Common)
	sort.Strings(c.MissingInTarget)
	sort.Strings(c.NewInTarget)
	return c
}

// Compatibility is the verdict on whether a target can stand in for its
// source.
type Compatibility struct {
	Compatible bool     `json:"is_compatible"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}

// Compatibility judges c: a source column missing from the target is an
// error; new target columns, type changes and a row count difference are
// warnings.
func (c Comparison) Compatibility() Compatibility {
	v := Compatibility{Compatible: true, Errors: []string{}, Warnings: []string{}}
	if len(c.MissingInTarget) > 0 {
		v.Compatible = false
		v.Errors = append(v.Errors, "columns missing in target: "+strings.Join(c.MissingInTarget, ", "))
	}
	if len(c.NewInTarget) > 0 {
		v.Warnings = append(v.Warnings, "extra columns in target: "+strings.Join(c.NewInTarget, ", "))
	}
	for _, name := range c.Common {
		if tc, ok := c.TypeChanges[name]; ok {
			v.Warnings = append(v.Warnings, fmt.Sprintf("column %s changes type from %s to %s", name, tc.From, tc.To))
		}
	}
	if c.RowDifference != 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("row count difference: %+d", c.RowDifference))
	}
	return v
}

// WriteCSV writes one line per column: name, type, nullable and index.
func (s *Schema) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"column_name", "data_type", "nullable", "index"}); err != nil {
		return err
	}
	for _, c := range s.Columns {
		if err := cw.Write([]string{c.Name, c.Type, strconv.FormatBool(c.Nullable), strconv.Itoa(c.Index)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render prints s as a summary line and a column table.
func (s *Schema) Render(w io.Writer) {
	fmt.Fprintf(w, "File: %s (%s, %s)\n", s.File, s.Format, s.Size())
	fmt.Fprintf(w, "Rows: %d  Columns: %d", s.NumRows, len(s.Columns))
	if s.Format == FormatParquet {
		fmt.Fprintf(w, "  Row groups: %d", s.RowGroups)
	}
	fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column", "Type", "Physical", "Logical", "Nullable", "Nulls"})
	for _, c := range s.Columns {
		nulls := "-"
		if c.NullCount != nil {
			nulls = fmt.Sprint(*c.NullCount)
		}
		t.AppendRow(table.Row{c.Index, c.Name, c.Type, c.Physical, c.Logical, c.Nullable, nulls})
	}
	t.Render()
}
