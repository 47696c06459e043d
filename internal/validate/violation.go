package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule identifies the kind of check a violation came from.
type Rule string

const (
	RuleNotNull    Rule = "NOT_NULL"
	RuleUnique     Rule = "UNIQUE"
	RuleEnum       Rule = "ENUM"
	RuleRange      Rule = "RANGE"
	RuleFutureDate Rule = "FUTURE_DATE"
	RuleFKCheck    Rule = "FK_CHECK"
)

// Location pins a violation to a cell. Row is the 0-based data row.
type Location struct {
	Table  string `json:"table"`
	Row    int    `json:"row"`
	Column string `json:"column"`
}

// Where returns the location itself; it is promoted to every variant.
func (l Location) Where() Location { return l }

// Violation is one violated rule instance. The set of implementations is
// closed: NotNull, Unique, Enum, Range, FutureDate and ForeignKey.
type Violation interface {
	error
	Rule() Rule
	Where() Location
	// Offending returns the raw cell value, and false when the cell was
	// missing.
	Offending() (string, bool)
	sealed()
}

// NotNull reports a missing required value.
type NotNull struct {
	Location
}

func (NotNull) Rule() Rule { return RuleNotNull }
func (NotNull) Offending() (string, bool) { return "", false }
func (NotNull) sealed() {}
func (v NotNull) Error() string { return fmt.Sprintf("%s is null at row %d", v.Column, v.Row) }

// Unique reports a repeated natural key. Row is the later occurrence.
type Unique struct {
	Location
	Value    string
	FirstRow int
}

func (Unique) Rule() Rule { return RuleUnique }
func (v Unique) Offending() (string, bool) { return v.Value, true }
func (Unique) sealed() {}
func (v Unique) Error() string {
	return fmt.Sprintf("Duplicate %s '%s' at row %d", v.Column, v.Value, v.Row)
}

// Enum reports a value outside its allowed domain, including a missing one.
type Enum struct {
	Location
	Value   string
	Missing bool
	Allowed []string
}

func (Enum) Rule() Rule { return RuleEnum }
func (v Enum) Offending() (string, bool) { return v.Value, !v.Missing }
func (Enum) sealed() {}
func (v Enum) Error() string {
	if v.Missing {
		return fmt.Sprintf("Invalid %s <missing> at row %d", v.Column, v.Row)
	}
	return fmt.Sprintf("Invalid %s '%s' at row %d", v.Column, v.Value, v.Row)
}

// Bounds is a numeric interval. Min is always bounded; Max only when
// HasMax is set.
type Bounds struct {
	Min          float64
	MinExclusive bool
	Max          float64
	HasMax       bool
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	if b.MinExclusive && v <= b.Min || !b.MinExclusive && v < b.Min {
		return false
	}
	return !b.HasMax || v <= b.Max
}

func (b Bounds) String() string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	switch {
	case b.HasMax:
		return fmt.Sprintf("in [%s, %s]", f(b.Min), f(b.Max))
	case b.MinExclusive:
		return "> " + f(b.Min)
	default:
		return ">= " + f(b.Min)
	}
}

// Range reports a numeric value out of bounds, or a value that is not
// numeric at all (Numeric false; Value holds the unparsed text).
type Range struct {
	Location
	Value   string
	Missing bool
	Numeric bool
	Got     float64
	Bounds  Bounds
}

func (Range) Rule() Rule { return RuleRange }
func (v Range) Offending() (string, bool) { return v.Value, !v.Missing }
func (Range) sealed() {}
func (v Range) Error() string {
	return fmt.Sprintf("%s must be %s at row %d", v.Column, v.Bounds, v.Row)
}

// FutureDate reports a date after the validation day.
type FutureDate struct {
	Location
	Value string
	Date  time.Time
	Today time.Time
}

func (FutureDate) Rule() Rule { return RuleFutureDate }
func (v FutureDate) Offending() (string, bool) { return v.Value, true }
func (FutureDate) sealed() {}
func (v FutureDate) Error() string {
	return fmt.Sprintf("%s in future at row %d", v.Column, v.Row)
}

// ForeignKey reports a reference to a key absent from the parent table.
// Quarantined marks a parent row that existed but was quarantined.
type ForeignKey struct {
	Location
	Value       string
	RefTable    string
	RefColumn   string
	Quarantined bool
}

func (ForeignKey) Rule() Rule { return RuleFKCheck }
func (v ForeignKey) Offending() (string, bool) { return v.Value, true }
func (ForeignKey) sealed() {}
func (v ForeignKey) Error() string {
	if v.Quarantined {
		return fmt.Sprintf("%s '%s' references a quarantined %s row at row %d", v.Column, v.Value, v.RefTable, v.Row)
	}
	return fmt.Sprintf("%s '%s' not found in %s at row %d", v.Column, v.Value, v.RefTable, v.Row)
}

// Record is the flat, serialisable form of a violation used by history
// and the HTTP API.
type Record struct {
	Location
	Value   *string `json:"value"`
	Rule    Rule    `json:"rule"`
	Message string  `json:"message"`
}

// ToRecord flattens v.
func ToRecord(v Violation) Record {
	r := Record{Location: v.Where(), Rule: v.Rule(), Message: v.Error()}
	if s, ok := v.Offending(); ok {
		r.Value = &s
	}
	return r
}

// String renders "Row N: message", the form used in logs.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s row %d: %s", r.Table, r.Row, r.Message)
	return b.String()
}
