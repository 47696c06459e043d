// Package records defines the in-memory tabular shape shared by every stage
// of the pipeline.
//
// A Table is a named, column-aligned set of rows. Cells are positional: the
// value at Row[i] belongs to Columns[i]. A nil cell means "missing". After
// ingest every present cell is a string; after transform cells carry typed
// values (string, int64, float64, time.Time for dates, bool).
//
// Tables are treated as immutable snapshots between stages. Stages that
// reshape data call Clone or build a new Table rather than editing rows that
// a previous stage returned.
package records

// Row is one positional record.
type Row []any

// Table is an ordered set of rows sharing one column layout.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// New returns an empty table with a copy of cols as its layout.
func New(name string, cols ...string) *Table {
	c := make([]string, len(cols))
	copy(c, cols)
	return &Table{Name: name, Columns: c}
}

// Len returns the number of rows; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of col, or -1 when the table has no such column.
func (t *Table) Index(col string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether col is part of the layout.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Value returns the cell at (row, col). Absent columns and out-of-range
// rows read as missing.
func (t *Table) Value(row int, col string) any {
	i := t.Index(col)
	if i < 0 || row < 0 || row >= t.Len() {
		return nil
	}
	r := t.Rows[row]
	if i >= len(r) {
		return nil
	}
	return r[i]
}

// Column returns every value of col in row order. An absent column yields a
// slice of nils with one entry per row.
func (t *Table) Column(col string) []any {
	out := make([]any, t.Len())
	i := t.Index(col)
	if i < 0 {
		return out
	}
	for n, r := range t.Rows {
		if i < len(r) {
			out[n] = r[i]
		}
	}
	return out
}

// Clone returns a deep copy of the layout and row slices. Cell values are
// copied by assignment, which is sufficient for the scalar types tables hold.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := New(t.Name, t.Columns...)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(t.Columns))
		copy(nr, r)
		out.Rows[i] = nr
	}
	return out
}

// WithColumn returns a copy of t where col holds vals. If col already exists
// it is replaced in place, otherwise it is appended. len(vals) must equal
// t.Len(); shorter slices leave the remaining cells missing.
func (t *Table) WithColumn(col string, vals []any) *Table {
	out := t.Clone()
	i := out.Index(col)
	if i < 0 {
		out.Columns = append(out.Columns, col)
		i = len(out.Columns) - 1
		for n := range out.Rows {
			out.Rows[n] = append(out.Rows[n], nil)
		}
	}
	for n := range out.Rows {
		var v any
		if n < len(vals) {
			v = vals[n]
		}
		out.Rows[n][i] = v
	}
	return out
}

// Without returns a copy of t with the named columns removed.
func (t *Table) Without(cols ...string) *Table {
	drop := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		drop[c] = struct{}{}
	}
	var keep []int
	out := &Table{Name: t.Name}
	for i, c := range t.Columns {
		if _, ok := drop[c]; ok {
			continue
		}
		keep = append(keep, i)
		out.Columns = append(out.Columns, c)
	}
	out.Rows = make([]Row, len(t.Rows))
	for n, r := range t.Rows {
		nr := make(Row, len(keep))
		for j, i := range keep {
			if i < len(r) {
				nr[j] = r[i]
			}
		}
		out.Rows[n] = nr
	}
	return out
}

// Select returns a copy of t containing only the rows whose index is in
// idx, in the order given.
func (t *Table) Select(idx []int) *Table {
	out := New(t.Name, t.Columns...)
	out.Rows = make([]Row, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(t.Rows) {
			continue
		}
		nr := make(Row, len(t.Columns))
		copy(nr, t.Rows[i])
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// Filter returns a copy of t without the rows listed in drop.
func (t *Table) Filter(drop map[int]struct{}) *Table {
	idx := make([]int, 0, t.Len())
	for i := range t.Rows {
		if _, ok := drop[i]; !ok {
			idx = append(idx, i)
		}
	}
	return t.Select(idx)
}
