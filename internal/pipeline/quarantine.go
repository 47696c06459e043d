package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"genoetl/internal/schema"
	"genoetl/internal/transformer/builtin"
	"genoetl/internal/validate"
	"genoetl/pkg/records"
)

// Columns appended to quarantined rows.
const (
	ColRule   = "_rule"
	ColReason = "_reason"
)

// Split separates the rows flagged by violations from the rest. UNIQUE
// violations do not quarantine a row, since dedup resolves them. Rows whose
// parent key survives only in quarantined rows follow their parent with an
// FK_CHECK reason: runs of quarantined samples, then qc_metrics of
// quarantined runs. held only contains tables with at least one quarantined
// row; those tables carry the extra _rule and _reason columns.
func Split(tables map[string]*records.Table, vs validate.Violations) (kept, held map[string]*records.Table) {
	byTable := vs.RowsByTable(validate.RuleUnique)
	cascade(byTable, tables, schema.TableSamples, schema.TableRuns, "sample_id")
	cascade(byTable, tables, schema.TableRuns, schema.TableQCMetrics, "run_id")

	kept = make(map[string]*records.Table, len(tables))
	held = make(map[string]*records.Table)
	for name, t := range tables {
		rows := byTable[name]
		if len(rows) == 0 {
			kept[name] = t
			continue
		}
		drop := make(map[int]struct{}, len(rows))
		idx := make([]int, 0, len(rows))
		for i := range rows {
			if i < t.Len() {
				drop[i] = struct{}{}
				idx = append(idx, i)
			}
		}
		sort.Ints(idx)
		kept[name] = t.Filter(drop)

		q := t.Select(idx)
		rules := make([]any, len(idx))
		reasons := make([]any, len(idx))
		for n, i := range idx {
			rules[n], reasons[n] = describe(rows[i])
		}
		held[name] = q.WithColumn(ColRule, rules).WithColumn(ColReason, reasons)
	}
	return kept, held
}

// cascade flags child rows whose key only matches quarantined parent rows.
func cascade(byTable map[string]map[int][]validate.Violation, tables map[string]*records.Table, parent, child, col string) {
	p, c := tables[parent], tables[child]
	if p == nil || c == nil || len(byTable[parent]) == 0 {
		return
	}
	dropped := map[string]struct{}{}
	survives := map[string]struct{}{}
	for i, v := range p.Column(col) {
		k, ok := key(v)
		if !ok {
			continue
		}
		if _, held := byTable[parent][i]; held {
			dropped[k] = struct{}{}
		} else {
			survives[k] = struct{}{}
		}
	}
	for i, v := range c.Column(col) {
		if _, held := byTable[child][i]; held {
			continue
		}
		k, ok := key(v)
		if !ok {
			continue
		}
		if _, gone := dropped[k]; !gone {
			continue
		}
		if _, kept := survives[k]; kept {
			continue
		}
		if byTable[child] == nil {
			byTable[child] = make(map[int][]validate.Violation)
		}
		byTable[child][i] = append(byTable[child][i], validate.ForeignKey{
			Location:    validate.Location{Table: child, Row: i, Column: col},
			Value:       k,
			RefTable:    parent,
			RefColumn:   col,
			Quarantined: true,
		})
	}
}

func key(v any) (string, bool) {
	if builtin.IsNull(v) {
		return "", false
	}
	return fmt.Sprint(v), true
}

func describe(vs []validate.Violation) (string, string) {
	var (
		rules   []string
		reasons []string
		seen    = map[validate.Rule]bool{}
	)
	for _, v := range vs {
		if !seen[v.Rule()] {
			seen[v.Rule()] = true
			rules = append(rules, string(v.Rule()))
		}
		reasons = append(reasons, v.Error())
	}
	return strings.Join(rules, ";"), strings.Join(reasons, "; ")
}

// WriteQuarantine writes each held table to <dir>/<table>.csv and returns the
// written paths in table-name order.
func WriteQuarantine(dir string, held map[string]*records.Table) ([]string, error) {
	if len(held) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: quarantine dir: %w", err)
	}
	names := make([]string, 0, len(held))
	for n := range held {
		names = append(names, n)
	}
	sort.Strings(names)

	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name+".csv")
		if err := writeCSV(p, held[name]); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeCSV(path string, t *records.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pipeline: quarantine: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("pipeline: quarantine %s: %w", path, err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) && row[i] != nil {
				rec[i] = fmt.Sprint(row[i])
			}
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("pipeline: quarantine %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("pipeline: quarantine %s: %w", path, err)
	}
	return f.Close()
}
