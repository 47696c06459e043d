package profile

import (
	"sort"
	"strings"

	"genoetl/internal/transformer/builtin"
	"genoetl/pkg/records"
)

// QC thresholds, in percent.
const (
	Q30Pass       = 90.0
	Q30Fail       = 80.0
	GCOptimalLow  = 40.0
	GCOptimalHigh = 60.0
	GCFailLow     = 35.0
	GCFailHigh    = 65.0
	DupHigh       = 10.0
	DupFail       = 15.0
)

// Score weights applied to the failing share of each metric.
const (
	weightQ30 = 0.5
	weightGC  = 0.3
	weightDup = 0.2
)

// MetricStats summarise one QC metric in percent.
type MetricStats struct {
	NumericStats
	Below90   int     `json:"below_90,omitempty"`
	Below80   int     `json:"below_80,omitempty"`
	PassRate  float64 `json:"pass_rate"`
	InRange   int     `json:"in_range,omitempty"`
	AboveHigh int     `json:"above_high,omitempty"`
}

// AdapterStats count runs flagged for adapter content.
type AdapterStats struct {
	Flagged int     `json:"flagged"`
	Percent float64 `json:"percent"`
}

// QCAnalysis is the QC summary of a qc_metrics table. Metric sections are
// nil when the column is absent.
type QCAnalysis struct {
	Runs        int           `json:"runs"`
	Q30         *MetricStats  `json:"q30,omitempty"`
	GC          *MetricStats  `json:"gc,omitempty"`
	Duplication *MetricStats  `json:"duplication,omitempty"`
	Adapter     *AdapterStats `json:"adapter,omitempty"`
	Score       float64       `json:"overall_quality_score"`
}

// percentOf returns col as percentages. Rate columns (names ending in
// "_rate") stored as fractions, every value within [0, 1], are scaled by 100.
func percentOf(t *records.Table, col string) ([]float64, []int, bool) {
	if !t.Has(col) {
		return nil, nil, false
	}
	vals, rows := Numbers(t, col)
	fraction := len(vals) > 0 && strings.HasSuffix(col, "_rate")
	for _, v := range vals {
		if v < 0 || v > 1 {
			fraction = false
			break
		}
	}
	if fraction {
		for i := range vals {
			vals[i] *= 100
		}
	}
	return vals, rows, true
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// AnalyzeQC computes the QC summary and overall score of t.
//
// The score starts at 100 and loses half the Q30 failing share, 0.3 of the
// GC out-of-range share and 0.2 of the high duplication share, clamped to
// [0, 100].
func AnalyzeQC(t *records.Table) QCAnalysis {
	a := QCAnalysis{Runs: t.Len()}
	score := 100.0

	if q30, _, ok := percentOf(t, "q30_rate"); ok {
		ms := MetricStats{NumericStats: Describe(q30)}
		pass := 0
		for _, v := range q30 {
			if v < Q30Pass {
				ms.Below90++
			} else {
				pass++
			}
			if v < Q30Fail {
				ms.Below80++
			}
		}
		ms.PassRate = share(pass, a.Runs)
		a.Q30 = &ms
		score -= max(0, (100-ms.PassRate)*weightQ30)
	}

	if gc, _, ok := percentOf(t, "gc_percent"); ok {
		ms := MetricStats{NumericStats: Describe(gc)}
		for _, v := range gc {
			if v >= GCOptimalLow && v <= GCOptimalHigh {
				ms.InRange++
			}
		}
		ms.PassRate = share(ms.InRange, a.Runs)
		a.GC = &ms
		score -= max(0, (100-ms.PassRate)*weightGC)
	}

	if dup, _, ok := percentOf(t, "duplication_rate"); ok {
		ms := MetricStats{NumericStats: Describe(dup)}
		pass := 0
		for _, v := range dup {
			if v > DupHigh {
				ms.AboveHigh++
			} else {
				pass++
			}
		}
		ms.PassRate = share(pass, a.Runs)
		a.Duplication = &ms
		score -= max(0, (100-ms.PassRate)*weightDup)
	}

	if t.Has("adapter_content_flag") {
		as := AdapterStats{}
		for _, v := range t.Column("adapter_content_flag") {
			if builtin.ParseFlag(v) {
				as.Flagged++
			}
		}
		as.Percent = share(as.Flagged, a.Runs)
		a.Adapter = &as
	}

	a.Score = clamp(score, 0, 100)
	return a
}

// FailedRuns lists run ids breaching the hard QC thresholds.
type FailedRuns struct {
	ByQ30         []string `json:"by_q30"`
	ByGC          []string `json:"by_gc"`
	ByDuplication []string `json:"by_duplication"`
	ByAdapter     []string `json:"by_adapter"`
	All           []string `json:"total_failed"`
}

// Failed reports runs with Q30 below 80%, GC outside [35, 65], duplication
// above 15% or the adapter flag set.
func Failed(t *records.Table) FailedRuns {
	var f FailedRuns
	ids := t.Column("run_id")
	id := func(row int) string {
		if row < len(ids) && ids[row] != nil {
			if s, ok := ids[row].(string); ok {
				return s
			}
		}
		return ""
	}
	collect := func(col string, bad func(float64) bool) []string {
		vals, rows, ok := percentOf(t, col)
		if !ok {
			return nil
		}
		var out []string
		for i, v := range vals {
			if bad(v) {
				out = append(out, id(rows[i]))
			}
		}
		return out
	}
	f.ByQ30 = collect("q30_rate", func(v float64) bool { return v < Q30Fail })
	f.ByGC = collect("gc_percent", func(v float64) bool { return v < GCFailLow || v > GCFailHigh })
	f.ByDuplication = collect("duplication_rate", func(v float64) bool { return v > DupFail })
	for i, v := range t.Column("adapter_content_flag") {
		if builtin.ParseFlag(v) {
			f.ByAdapter = append(f.ByAdapter, id(i))
		}
	}

	set := make(map[string]struct{})
	for _, l := range [][]string{f.ByQ30, f.ByGC, f.ByDuplication, f.ByAdapter} {
		for _, s := range l {
			set[s] = struct{}{}
		}
	}
	for s := range set {
		f.All = append(f.All, s)
	}
	sort.Strings(f.All)
	return f
}
