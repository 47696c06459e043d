// Package query runs ad hoc SQL over the pipeline's Parquet outputs with an
// in-memory DuckDB.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	"github.com/sirupsen/logrus"

	"genoetl/internal/loader"
)

// Views maps each loaded artifact to the view name queries use.
var Views = []struct{ Artifact, View string }{
	{loader.DimSamples, "samples"},
	{loader.FactRuns, "runs"},
	{loader.FactQCMetrics, "qc_metrics"},
}

// Result is the outcome of one statement.
type Result struct {
	SQL     string   `json:"sql"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Engine is an in-memory DuckDB with one view per artifact found.
type Engine struct {
	db    *sql.DB
	log   logrus.FieldLogger
	views []string
}

// Open creates the engine and registers a view for every artifact present
// under dir. Artifacts that are missing are skipped.
func Open(ctx context.Context, dir string, log logrus.FieldLogger) (*Engine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("query: open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("query: ping duckdb: %w", err)
	}
	e := &Engine{db: db, log: log}

	for _, v := range Views {
		src, ok := source(dir, v.Artifact)
		if !ok {
			log.WithField("artifact", v.Artifact).Debug("artifact not found, no view")
			continue
		}
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", v.View, src)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("query: create view %s: %w", v.View, err)
		}
		e.views = append(e.views, v.View)
		log.WithFields(logrus.Fields{"view": v.View, "artifact": v.Artifact}).Info("created view")
	}
	return e, nil
}

// source returns the read_parquet expression for an artifact.
func source(dir, artifact string) (string, bool) {
	file := filepath.Join(dir, artifact+".parquet")
	if st, err := os.Stat(file); err == nil && !st.IsDir() {
		return fmt.Sprintf("read_parquet(%s)", literal(file)), true
	}
	ds := filepath.Join(dir, artifact)
	if st, err := os.Stat(ds); err == nil && st.IsDir() {
		glob := filepath.ToSlash(ds) + "/**/*.parquet"
		return fmt.Sprintf("read_parquet(%s, hive_partitioning=true)", literal(glob)), true
	}
	return "", false
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(filepath.ToSlash(s), "'", "''") + "'"
}

// Views returns the names of the registered views.
func (e *Engine) Views() []string { return append([]string(nil), e.views...) }

// DB exposes the underlying connection.
func (e *Engine) DB() *sql.DB { return e.db }

func (e *Engine) Close() error { return e.db.Close() }

// Split breaks a script into statements on ';', dropping blank ones.
func Split(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Run executes every statement of script in order and stops at the first
// failure.
func (e *Engine) Run(ctx context.Context, script string) ([]Result, error) {
	stmts := Split(script)
	if len(stmts) == 0 {
		return nil, errors.New("query: no statements")
	}
	out := make([]Result, 0, len(stmts))
	for i, s := range stmts {
		e.log.WithField("statement", i+1).Debug("executing")
		r, err := e.exec(ctx, s)
		if err != nil {
			return out, fmt.Errorf("query: statement %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (e *Engine) exec(ctx context.Context, stmt string) (Result, error) {
	rows, err := e.db.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{SQL: stmt, Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}
