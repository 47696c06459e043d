// Package benchmark compares querying the raw CSV input against the loaded
// Parquet artifact.
package benchmark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docker/go-units"
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	"github.com/sirupsen/logrus"
)

// Iterations is how many times each query is timed.
const Iterations = 3

// Query is one benchmarked statement. SQL reads from a relation called data.
type Query struct {
	Name string
	SQL  string
}

// DefaultQueries run against the runs table.
var DefaultQueries = []Query{
	{"Longest read length", "SELECT run_id, read_length FROM data ORDER BY read_length DESC LIMIT 10"},
	{"Sum FASTQ per run", "SELECT COUNT(*) AS n_runs, SUM(CAST(fastq_gb AS FLOAT)) AS total_gb FROM data"},
}

// Timing is the median duration of a query on each format. Parquet is nil
// when the Parquet file does not exist.
type Timing struct {
	Query   string         `json:"query"`
	CSV     time.Duration  `json:"csv"`
	Parquet *time.Duration `json:"parquet,omitempty"`
}

// Speedup is CSV over Parquet time, or 0 when unknown.
func (t Timing) Speedup() float64 {
	if t.Parquet == nil || *t.Parquet <= 0 {
		return 0
	}
	return float64(t.CSV) / float64(*t.Parquet)
}

// Result is a complete benchmark run.
type Result struct {
	Date          time.Time `json:"date"`
	CSVFile       string    `json:"csv_file"`
	ParquetFile   string    `json:"parquet_file"`
	CSVBytes      int64     `json:"csv_bytes"`
	ParquetBytes  int64     `json:"parquet_bytes"`
	ParquetExists bool      `json:"parquet_exists"`
	Timings       []Timing  `json:"timings"`
}

// Ratio is CSV size over Parquet size, or 0 when there is no Parquet file.
func (r *Result) Ratio() float64 {
	if r.ParquetBytes <= 0 {
		return 0
	}
	return float64(r.CSVBytes) / float64(r.ParquetBytes)
}

// MB converts bytes to mebibytes.
func MB(n int64) float64 { return float64(n) / units.MiB }

// Options tunes Run.
type Options struct {
	Queries    []Query
	Iterations int
	Now        func() time.Time
	Logger     logrus.FieldLogger
}

// Run times every query against csvFile and parquetFile. A missing CSV file
// is an error; a missing Parquet file is reported as N/A. A query that
// fails is logged and left out of the result.
func Run(ctx context.Context, csvFile, parquetFile string, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Queries == nil {
		opts.Queries = DefaultQueries
	}
	if opts.Iterations <= 0 {
		opts.Iterations = Iterations
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	st, err := os.Stat(csvFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("benchmark: csv file not found: %s", csvFile)
		}
		return nil, fmt.Errorf("benchmark: stat %s: %w", csvFile, err)
	}
	res := &Result{Date: now(), CSVFile: csvFile, ParquetFile: parquetFile, CSVBytes: st.Size()}
	if pst, err := os.Stat(parquetFile); err == nil && !pst.IsDir() {
		res.ParquetExists = true
		res.ParquetBytes = pst.Size()
	} else {
		log.WithField("file", parquetFile).Warn("parquet file not found, skipping parquet benchmarks")
	}

	log.WithFields(logrus.Fields{
		"csv":     units.HumanSize(float64(res.CSVBytes)),
		"parquet": units.HumanSize(float64(res.ParquetBytes)),
	}).Info("starting benchmark")

	for _, q := range opts.Queries {
		tm, err := timeQuery(ctx, csvFile, parquetFile, res.ParquetExists, q, opts.Iterations)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("query", q.Name).Warn("benchmark query failed")
			continue
		}
		res.Timings = append(res.Timings, tm)
	}
	log.Info("benchmark completed")
	return res, nil
}

func timeQuery(ctx context.Context, csvFile, parquetFile string, parquet bool, q Query, n int) (Timing, error) {
	tm := Timing{Query: q.Name}
	var csvTimes []time.Duration
	for i := 0; i < n; i++ {
		d, err := csvOnce(ctx, csvFile, q.SQL)
		if err != nil {
			return tm, err
		}
		csvTimes = append(csvTimes, d)
	}
	tm.CSV = median(csvTimes)

	if !parquet {
		return tm, nil
	}
	stmt := strings.ReplaceAll(q.SQL, "FROM data", "FROM read_parquet("+literal(parquetFile)+")")
	var pqTimes []time.Duration
	for i := 0; i < n; i++ {
		d, err := once(ctx, func(db *sql.DB) error { return drain(ctx, db, stmt) })
		if err != nil {
			return tm, err
		}
		pqTimes = append(pqTimes, d)
	}
	m := median(pqTimes)
	tm.Parquet = &m
	return tm, nil
}

// csvOnce loads the CSV into a table called data and times the query. The
// load is part of the measured time.
func csvOnce(ctx context.Context, csvFile, stmt string) (time.Duration, error) {
	return once(ctx, func(db *sql.DB) error {
		load := fmt.Sprintf("CREATE TABLE data AS SELECT * FROM read_csv_auto(%s, header=true)", literal(csvFile))
		if _, err := db.ExecContext(ctx, load); err != nil {
			return fmt.Errorf("load csv: %w", err)
		}
		return drain(ctx, db, stmt)
	})
}

// once opens a fresh in-memory database and times fn.
func once(ctx context.Context, fn func(*sql.DB) error) (time.Duration, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return 0, fmt.Errorf("benchmark: open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()
	start := time.Now()
	if err := fn(db); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func drain(ctx context.Context, db *sql.DB, stmt string) error {
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
	}
	return rows.Err()
}

func median(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	s := append([]time.Duration(nil), ds...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s[len(s)/2]
}

func literal(p string) string {
	return "'" + strings.ReplaceAll(filepath.ToSlash(p), "'", "''") + "'"
}
