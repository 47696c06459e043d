package validate

// Violations is an ordered violation list with summary helpers.
type Violations []Violation

// CountByRule tallies violations per rule.
func (vs Violations) CountByRule() map[Rule]int {
	out := make(map[Rule]int)
	for _, v := range vs {
		out[v.Rule()]++
	}
	return out
}

// First returns at most n violations. n <= 0 returns all of them.
func (vs Violations) First(n int) Violations {
	if n <= 0 || n >= len(vs) {
		return vs
	}
	return vs[:n]
}

// Messages returns the human text of every violation.
func (vs Violations) Messages() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Error()
	}
	return out
}

// Records flattens every violation.
func (vs Violations) Records() []Record {
	out := make([]Record, len(vs))
	for i, v := range vs {
		out[i] = ToRecord(v)
	}
	return out
}

// RowsByTable groups violations by table and row, leaving out the rules in
// skip. The per-row slices keep the original order.
func (vs Violations) RowsByTable(skip ...Rule) map[string]map[int][]Violation {
	out := make(map[string]map[int][]Violation)
next:
	for _, v := range vs {
		for _, s := range skip {
			if v.Rule() == s {
				continue next
			}
		}
		loc := v.Where()
		rows := out[loc.Table]
		if rows == nil {
			rows = make(map[int][]Violation)
			out[loc.Table] = rows
		}
		rows[loc.Row] = append(rows[loc.Row], v)
	}
	return out
}
