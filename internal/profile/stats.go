// Package profile computes column statistics, data-quality scores and QC
// summaries over records.Table values.
package profile

import (
	"fmt"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"genoetl/internal/transformer/builtin"
	"genoetl/pkg/records"
)

// Column kinds reported in ColumnStats.Type.
const (
	TypeNumeric = "numeric"
	TypeString  = "string"
	TypeBool    = "bool"
	TypeDate    = "date"
	TypeEmpty   = "empty"
	TypeMixed   = "mixed"
)

// NumericStats summarise a numeric column's present values.
type NumericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
}

// ColumnStats describe one column.
type ColumnStats struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Count        int           `json:"count"`
	Nulls        int           `json:"nulls"`
	Unique       int           `json:"unique"`
	Completeness float64       `json:"completeness"`
	Numeric      *NumericStats `json:"numeric,omitempty"`
	MinLength    int           `json:"min_length,omitempty"`
	MaxLength    int           `json:"max_length,omitempty"`
}

// Column computes statistics for vals. A column is numeric when every
// present value is a number or numeric text.
func Column(name string, vals []any) ColumnStats {
	cs := ColumnStats{Name: name, Count: len(vals)}
	seen := make(map[string]struct{})
	var present []any
	for _, v := range vals {
		if v == nil {
			cs.Nulls++
			continue
		}
		present = append(present, v)
		seen[key(v)] = struct{}{}
	}
	cs.Unique = len(seen)
	if cs.Count > 0 {
		cs.Completeness = (1 - float64(cs.Nulls)/float64(cs.Count)) * 100
	}

	cs.Type = kindOf(present)
	switch cs.Type {
	case TypeNumeric:
		nums := make([]float64, len(present))
		for i, v := range present {
			nums[i], _ = builtin.ParseFloat(v)
		}
		ns := Describe(nums)
		cs.Numeric = &ns
	case TypeString:
		cs.MinLength = math.MaxInt
		for _, v := range present {
			n := utf8.RuneCountInString(v.(string))
			cs.MinLength = min(cs.MinLength, n)
			cs.MaxLength = max(cs.MaxLength, n)
		}
	}
	return cs
}

func kindOf(present []any) string {
	if len(present) == 0 {
		return TypeEmpty
	}
	var numeric, text, flags, dates int
	for _, v := range present {
		switch x := v.(type) {
		case int64, float64, int:
			numeric++
		case bool:
			flags++
		case time.Time:
			dates++
		case string:
			text++
			if _, ok := builtin.ParseFloat(x); ok {
				numeric++
			}
		}
	}
	n := len(present)
	switch {
	case numeric == n:
		return TypeNumeric
	case text == n:
		return TypeString
	case flags == n:
		return TypeBool
	case dates == n:
		return TypeDate
	}
	return TypeMixed
}

func key(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// Describe returns min, max, mean, sample standard deviation and median of
// xs. The zero value is returned for an empty slice.
func Describe(xs []float64) NumericStats {
	if len(xs) == 0 {
		return NumericStats{}
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	var sum float64
	for _, x := range s {
		sum += x
	}
	mean := sum / float64(len(s))
	ns := NumericStats{Min: s[0], Max: s[len(s)-1], Mean: mean, Median: quantile(s, 0.5)}
	if len(s) > 1 {
		var ss float64
		for _, x := range s {
			ss += (x - mean) * (x - mean)
		}
		ns.Std = math.Sqrt(ss / float64(len(s)-1))
	}
	return ns
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// Numbers returns the numeric values of col with their row indexes. Missing
// and non-numeric cells are skipped.
func Numbers(t *records.Table, col string) (vals []float64, rows []int) {
	for i, v := range t.Column(col) {
		if f, ok := builtin.ParseFloat(v); ok {
			vals = append(vals, f)
			rows = append(rows, i)
		}
	}
	return vals, rows
}
