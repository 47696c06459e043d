// Package transformer turns ingested string tables into typed, cleaned and
// de-duplicated tables.
//
// Transformation never fails on bad data: values that cannot be interpreted
// become missing. Every step builds a new table, so the caller's input is
// never modified.
package transformer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"genoetl/internal/schema"
	"genoetl/internal/transformer/builtin"
	"genoetl/pkg/records"
)

// Transformer maps one table snapshot to the next.
type Transformer interface {
	Apply(*records.Table) *records.Table
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in *records.Table) *records.Table {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}

// ColumnStep rewrites every cell of one column through Cell. When the
// column is absent the step is skipped, unless AddMissing is set, in which
// case an all-missing column is added and then rewritten.
type ColumnStep struct {
	Column     string
	Cell       func(any) any
	AddMissing bool
}

func (s ColumnStep) Apply(t *records.Table) *records.Table {
	if !t.Has(s.Column) && !s.AddMissing {
		return t
	}
	vals := t.Column(s.Column)
	for i, v := range vals {
		vals[i] = s.Cell(v)
	}
	return t.WithColumn(s.Column, vals)
}

// DedupStep removes duplicate natural keys and logs how many rows went.
type DedupStep struct {
	builtin.DeDup
	Log logrus.FieldLogger
}

func (s DedupStep) Apply(t *records.Table) *records.Table {
	out, removed := s.DeDup.Apply(t)
	if removed > 0 && s.Log != nil {
		s.Log.WithFields(logrus.Fields{"table": t.Name, "removed": removed, "keys": s.Keys}).
			Info("removed duplicate records")
	}
	return out
}

// ForContract builds the transformation chain for a table contract:
// per-field normalization or casting, then keep-last dedup on the natural
// key.
func ForContract(c schema.Contract, log logrus.FieldLogger) Chain {
	var chain Chain
	for _, f := range c.Fields {
		chain = append(chain, ColumnStep{
			Column:     f.Name,
			Cell:       cellFunc(f),
			AddMissing: !f.Optional,
		})
	}
	if c.Key != "" {
		chain = append(chain, DedupStep{DeDup: builtin.DeDup{Keys: []string{c.Key}, Policy: "keep-last"}, Log: log})
	}
	return chain
}

func cellFunc(f schema.Field) func(any) any {
	if f.Type == schema.KindString {
		return builtin.Normalize{Upper: f.Upper}.Value
	}
	norm := builtin.Normalize{}
	coerce := builtin.Coerce{Kind: f.Type}
	return func(v any) any { return coerce.Value(norm.Value(v)) }
}

// Table transforms t according to its contract. Tables without a known
// contract are returned as a copy.
func Table(t *records.Table, log logrus.FieldLogger) *records.Table {
	c, ok := schema.ByName(t.Name)
	if !ok {
		return t.Clone()
	}
	if log != nil {
		log.WithField("table", t.Name).Info("transforming")
	}
	return ForContract(c, log).Apply(t)
}

// All transforms every table in tables concurrently and returns a new map.
func All(ctx context.Context, tables map[string]*records.Table, log logrus.FieldLogger) (map[string]*records.Table, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]*records.Table, len(tables))
	)
	g, ctx := errgroup.WithContext(ctx)
	for name, t := range tables {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := Table(t, log)
			mu.Lock()
			out[name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
