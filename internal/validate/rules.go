package validate

import (
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"genoetl/internal/schema"
	"genoetl/internal/transformer/builtin"
	"genoetl/pkg/records"
)

// check is one rule applied to a single column of a table. Checks append
// violations in row order.
type check interface {
	run(t *records.Table, table string, out []Violation) []Violation
}

// cell returns the textual form of a cell and whether it is present. The
// null sentinels the transformer drops count as missing.
func cell(v any) (string, bool) {
	if builtin.IsNull(v) {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case time.Time:
		return t.Format("2006-01-02"), true
	default:
		return fmt.Sprint(t), true
	}
}

type notNull struct{ col string }

func (c notNull) run(t *records.Table, table string, out []Violation) []Violation {
	for i, v := range t.Column(c.col) {
		if builtin.IsNull(v) {
			out = append(out, NotNull{Location{table, i, c.col}})
		}
	}
	return out
}

type unique struct{ col string }

func (c unique) run(t *records.Table, table string, out []Violation) []Violation {
	first := make(map[string]int)
	for i, v := range t.Column(c.col) {
		s, ok := cell(v)
		if !ok {
			continue
		}
		if j, dup := first[s]; dup {
			out = append(out, Unique{Location: Location{table, i, c.col}, Value: s, FirstRow: j})
			continue
		}
		first[s] = i
	}
	return out
}

type enum struct {
	col     string
	allowed []string
}

func (c enum) run(t *records.Table, table string, out []Violation) []Violation {
	for i, v := range t.Column(c.col) {
		s, ok := cell(v)
		if ok && slices.Contains(c.allowed, s) {
			continue
		}
		out = append(out, Enum{
			Location: Location{table, i, c.col},
			Value:    s,
			Missing:  !ok,
			Allowed:  c.allowed,
		})
	}
	return out
}

type inRange struct {
	col    string
	bounds Bounds
}

func (c inRange) run(t *records.Table, table string, out []Violation) []Violation {
	for i, v := range t.Column(c.col) {
		s, present := cell(v)
		f, numeric := builtin.ParseFloat(v)
		if numeric && c.bounds.Contains(f) {
			continue
		}
		out = append(out, Range{
			Location: Location{table, i, c.col},
			Value:    s,
			Missing:  !present,
			Numeric:  numeric,
			Got:      f,
			Bounds:   c.bounds,
		})
	}
	return out
}

type notFuture struct {
	col   string
	today time.Time
	log   logrus.FieldLogger
}

func (c notFuture) run(t *records.Table, table string, out []Violation) []Violation {
	for i, v := range t.Column(c.col) {
		s, ok := cell(v)
		if !ok {
			continue
		}
		d, ok := builtin.ParseDate(v)
		if !ok {
			c.log.WithFields(logrus.Fields{"table": table, "column": c.col, "row": i, "value": s}).
				Warn("could not parse date, skipping future-date check")
			continue
		}
		if d.After(c.today) {
			out = append(out, FutureDate{Location: Location{table, i, c.col}, Value: s, Date: d, Today: c.today})
		}
	}
	return out
}

var (
	positive    = Bounds{Min: 0, MinExclusive: true}
	nonNegative = Bounds{Min: 0}
	unitRange   = Bounds{Min: 0, Max: 1, HasMax: true}
	percent     = Bounds{Min: 0, Max: 100, HasMax: true}
)

func (v *Validator) samplesChecks() []check {
	return []check{
		notNull{"sample_id"},
		unique{"sample_id"},
		enum{"platform", schema.Platforms},
		notFuture{"collection_date", v.today(), v.log()},
	}
}

func runsChecks() []check {
	return []check{
		notNull{"run_id"},
		unique{"run_id"},
		notNull{"sample_id"},
		enum{"library_layout", schema.LibraryLayouts},
		inRange{"read_length", positive},
		inRange{"fastq_gb", nonNegative},
	}
}

func qcChecks() []check {
	return []check{
		notNull{"run_id"},
		inRange{"q30_rate", unitRange},
		inRange{"gc_percent", percent},
		inRange{"duplication_rate", unitRange},
	}
}

func apply(t *records.Table, table string, checks []check) []Violation {
	if t == nil {
		t = records.New(table)
	}
	var out []Violation
	for _, c := range checks {
		out = c.run(t, table, out)
	}
	return out
}
