// Package validate checks ingested tables against the schema and business
// rules. It reports every violation it finds as data and never decides what
// the pipeline does about them.
package validate

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"genoetl/internal/schema"
	"genoetl/pkg/records"
)

// Validator runs the rule set. The zero value is usable: it validates against
// the current UTC date and discards warnings.
type Validator struct {
	// Now returns the reference time for the future-date rule.
	Now    func() time.Time
	Logger logrus.FieldLogger
}

func (v *Validator) today() time.Time {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	y, m, d := now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (v *Validator) log() logrus.FieldLogger {
	if v.Logger != nil {
		return v.Logger
	}
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// Samples validates the sample dimension.
func (v *Validator) Samples(t *records.Table) []Violation {
	return apply(t, schema.TableSamples, v.samplesChecks())
}

// Runs validates the run fact table.
func (v *Validator) Runs(t *records.Table) []Violation {
	return apply(t, schema.TableRuns, runsChecks())
}

// QCMetrics validates the QC fact table. run_id is not checked against runs.
func (v *Validator) QCMetrics(t *records.Table) []Violation {
	return apply(t, schema.TableQCMetrics, qcChecks())
}

// ForeignKeys checks that every present runs.sample_id names a sample.
func (v *Validator) ForeignKeys(samples, runs *records.Table) []Violation {
	known := make(map[string]struct{}, samples.Len())
	for _, id := range samples.Column("sample_id") {
		if s, ok := cell(id); ok {
			known[s] = struct{}{}
		}
	}
	var out []Violation
	for i, id := range runs.Column("sample_id") {
		s, ok := cell(id)
		if !ok {
			continue
		}
		if _, found := known[s]; !found {
			out = append(out, ForeignKey{
				Location:  Location{schema.TableRuns, i, "sample_id"},
				Value:     s,
				RefTable:  schema.TableSamples,
				RefColumn: "sample_id",
			})
		}
	}
	return out
}

// All validates the three tables concurrently and then checks foreign keys.
// Violations are ordered samples, runs, qc_metrics, then FK_CHECK. A table
// absent from the map is treated as empty.
func (v *Validator) All(tables map[string]*records.Table) (bool, Violations) {
	var (
		wg      sync.WaitGroup
		results [3][]Violation
	)
	checks := [3]func() []Violation{
		func() []Violation { return v.Samples(tables[schema.TableSamples]) },
		func() []Violation { return v.Runs(tables[schema.TableRuns]) },
		func() []Violation { return v.QCMetrics(tables[schema.TableQCMetrics]) },
	}
	for i, run := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run()
		}()
	}
	wg.Wait()

	var all Violations
	for _, r := range results {
		all = append(all, r...)
	}
	all = append(all, v.ForeignKeys(tables[schema.TableSamples], tables[schema.TableRuns])...)
	return len(all) == 0, all
}

// All validates with a zero Validator.
func All(tables map[string]*records.Table) (bool, Violations) {
	var v Validator
	return v.All(tables)
}
