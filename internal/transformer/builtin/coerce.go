package builtin

import "genoetl/internal/schema"

// Coerce casts cells to a target kind. Values that cannot be interpreted
// become nil; Coerce never fails. Bool columns follow ParseFlag and are
// never nil.
type Coerce struct {
	Kind schema.Kind
}

// Value casts a single cell.
func (c Coerce) Value(v any) any {
	switch c.Kind {
	case schema.KindInt:
		if n, ok := ParseInt(v); ok {
			return n
		}
		return nil
	case schema.KindFloat:
		if f, ok := ParseFloat(v); ok {
			return f
		}
		return nil
	case schema.KindDate:
		if d, ok := ParseDate(v); ok {
			return d
		}
		return nil
	case schema.KindBool:
		return ParseFlag(v)
	default:
		return v
	}
}

// Apply returns a cast copy of vals.
func (c Coerce) Apply(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = c.Value(v)
	}
	return out
}
