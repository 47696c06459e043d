package builtin

import "strings"

// nullTokens collapse to a missing value after trimming.
var nullTokens = map[string]struct{}{"": {}, "NA": {}, "null": {}, "NULL": {}}

// IsNull reports whether v is missing once normalized: nil, or a string that
// trims to one of the null sentinels.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		_, null := nullTokens[clean(t)]
		return null
	default:
		return false
	}
}

// Normalize cleans string cells: it replaces non-breaking spaces, trims,
// maps null sentinels to nil and optionally folds to upper case. Non-string
// values pass through untouched, which keeps Normalize idempotent on
// already-typed columns.
type Normalize struct {
	Upper bool
}

// Value normalizes a single cell.
func (n Normalize) Value(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = clean(s)
	if _, null := nullTokens[s]; null {
		return nil
	}
	if n.Upper {
		s = strings.ToUpper(s)
	}
	return s
}

// Apply returns a normalized copy of vals.
func (n Normalize) Apply(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = n.Value(v)
	}
	return out
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
