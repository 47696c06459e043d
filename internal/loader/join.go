package loader

import (
	"genoetl/pkg/records"
)

// leftJoin returns left with column col taken from right, matched on key.
// Unmatched rows get a missing value. An existing col on left is replaced in
// place. When right has several rows for one key the last one wins.
func leftJoin(left, right *records.Table, key, col string) *records.Table {
	lookup := make(map[any]any, right.Len())
	keys := right.Column(key)
	vals := right.Column(col)
	for i, k := range keys {
		if k == nil {
			continue
		}
		lookup[joinKey(k)] = vals[i]
	}
	out := make([]any, left.Len())
	for i, k := range left.Column(key) {
		if k == nil {
			continue
		}
		out[i] = lookup[joinKey(k)]
	}
	return left.WithColumn(col, out)
}

func joinKey(v any) any {
	if s, ok := v.(string); ok {
		return s
	}
	return text(v)
}
