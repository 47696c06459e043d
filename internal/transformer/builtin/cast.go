package builtin

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayouts are tried in order by ParseDate.
var DateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"20060102",
}

// ParseFloat interprets v as a finite float. Strings are trimmed first; NaN
// and non-numeric text report ok=false.
func ParseFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseInt interprets v as an integer. Numeric text with a fractional part
// is truncated toward zero; values outside the int64 range are rejected.
func ParseInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	}
	f, ok := ParseFloat(v)
	if !ok || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseDate interprets v as a calendar date at UTC midnight.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, l := range DateLayouts {
			if ts, err := time.Parse(l, s); err == nil {
				y, m, d := ts.Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

var truthy = map[string]struct{}{"true": {}, "1": {}, "yes": {}}

// ParseFlag maps boolean-like tokens to a bool. Only "true", "1" and "yes"
// (any case, surrounding space ignored) are true; everything else,
// including a missing value, is false.
func ParseFlag(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t == 1
	case string:
		_, ok := truthy[strings.ToLower(strings.TrimSpace(t))]
		return ok
	}
	return false
}
