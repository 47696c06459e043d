// Package builtin contains the column- and table-level primitives the
// transformer composes: string normalization, kind coercion and
// de-duplication.
//
// DeDup collapses rows that share a natural key and keeps one winner per
// key according to a policy:
//
//   - "keep-first"   : keep the earliest occurrence
//   - "keep-last"    : keep the latest occurrence (default)
//   - "most-complete": keep the row with the most non-missing cells;
//     ties break by "keep-last"
//
// Winners are emitted in ascending original position, so keep-last output
// preserves the relative order of the surviving rows. Missing key cells take
// part in keying as "\x00", so rows with a missing key collapse together.
package builtin

import (
	"fmt"
	"sort"
	"strings"

	"genoetl/pkg/records"
)

// DeDup implements a configurable, in-memory de-duplication policy.
type DeDup struct {
	// Keys are the columns that form the natural key, e.g. ["sample_id"].
	Keys []string

	// Policy selects the winner among duplicates: "keep-first", "keep-last",
	// or "most-complete" (default is "keep-last").
	Policy string
}

// Apply returns a new table holding one row per key, plus the number of
// rows removed. Keys absent from the table leave it unchanged.
func (d DeDup) Apply(t *records.Table) (*records.Table, int) {
	if t.Len() == 0 || len(d.Keys) == 0 {
		return t.Clone(), 0
	}
	idx := make([]int, 0, len(d.Keys))
	for _, k := range d.Keys {
		i := t.Index(k)
		if i < 0 {
			return t.Clone(), 0
		}
		idx = append(idx, i)
	}

	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = "keep-last"
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, t.Len())

	for i, r := range t.Rows {
		key := keyOf(r, idx)
		switch policy {
		case "keep-first":
			if _, exists := winners[key]; !exists {
				winners[key] = slot{index: i}
			}
		case "most-complete":
			s := slot{index: i, score: scoreOf(r)}
			if prev, exists := winners[key]; !exists || s.score >= prev.score {
				winners[key] = s
			}
		default: // "keep-last"
			winners[key] = slot{index: i}
		}
	}

	keep := make([]int, 0, len(winners))
	for _, s := range winners {
		keep = append(keep, s.index)
	}
	sort.Ints(keep)
	return t.Select(keep), t.Len() - len(keep)
}

func keyOf(r records.Row, idx []int) string {
	var b strings.Builder
	for n, i := range idx {
		if n > 0 {
			b.WriteByte('\x1f')
		}
		var v any
		if i < len(r) {
			v = r[i]
		}
		switch t := v.(type) {
		case nil:
			b.WriteByte('\x00')
		case string:
			b.WriteString(t)
		default:
			b.WriteString(fmt.Sprint(t))
		}
	}
	return b.String()
}

func scoreOf(r records.Row) int {
	score := 0
	for _, v := range r {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		score++
	}
	return score
}
