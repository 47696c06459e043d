// Package sqldb implements storage.History on database/sql. The backends
// only differ in driver, placeholders, identifier quoting and how inserted
// ids come back; those differences live in Dialect.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"genoetl/internal/storage"
)

//go:embed migrations
var migrations embed.FS

// TimeLayout is the fixed-width text form of stored timestamps. It sorts
// lexically in time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Store is a History over a *sql.DB.
type Store struct {
	db  *sql.DB
	d   Dialect
	now func() time.Time
}

var _ storage.History = (*Store)(nil)

// Open wraps db, applies the embedded migrations for d and returns the store.
// The store owns db from then on and closes it on Close.
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{db: db, d: d, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations/"+s.d.Name)
	if err != nil {
		return fmt.Errorf("%s: migrations: %w", s.d.Name, err)
	}
	p, err := goose.NewProvider(s.d.Goose, s.db, fsys)
	if err != nil {
		return fmt.Errorf("%s: migrations: %w", s.d.Name, err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("%s: migrate: %w", s.d.Name, err)
	}
	return nil
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) stamp() string { return s.now().UTC().Format(TimeLayout) }

func (s *Store) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.d.Placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

func (s *Store) RecordRun(ctx context.Context, r storage.RunRecord) (int64, error) {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	errs, err := json.Marshal(orEmpty(r.Errors))
	if err != nil {
		return 0, fmt.Errorf("%s: encode errors: %w", s.d.Name, err)
	}
	cols := s.d.Quote("timestamp") + ", status, samples_processed, runs_processed, qc_processed, " +
		"duration_seconds, input_dir, output_dir, mode, errors"
	args := []any{ts.UTC().Format(TimeLayout), r.Status, r.Samples, r.Runs, r.QC,
		r.Duration, r.InputDir, r.OutputDir, r.Mode, string(errs)}

	var q string
	switch s.d.Insert {
	case Output:
		q = fmt.Sprintf("INSERT INTO pipeline_runs (%s) OUTPUT INSERTED.id VALUES (%s)", cols, s.placeholders(len(args)))
	case Returning:
		q = fmt.Sprintf("INSERT INTO pipeline_runs (%s) VALUES (%s) RETURNING id", cols, s.placeholders(len(args)))
	default:
		q = fmt.Sprintf("INSERT INTO pipeline_runs (%s) VALUES (%s)", cols, s.placeholders(len(args)))
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("%s: insert run: %w", s.d.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("%s: insert run id: %w", s.d.Name, err)
		}
		return id, nil
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: insert run: %w", s.d.Name, err)
	}
	return id, nil
}

func (s *Store) LogEvent(ctx context.Context, id int64, typ, msg string) error {
	q := fmt.Sprintf("INSERT INTO pipeline_events (pipeline_id, event_type, message, %s) VALUES (%s)",
		s.d.Quote("timestamp"), s.placeholders(4))
	if _, err := s.db.ExecContext(ctx, q, id, typ, msg, s.stamp()); err != nil {
		return fmt.Errorf("%s: insert event: %w", s.d.Name, err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	cols := "id, " + s.d.Quote("timestamp") + ", status, samples_processed, runs_processed, qc_processed, " +
		"duration_seconds, input_dir, output_dir, mode, errors"
	var q string
	if s.d.Top {
		q = fmt.Sprintf("SELECT TOP (%s) %s FROM pipeline_runs ORDER BY id DESC", s.d.Placeholder(1), cols)
	} else {
		q = fmt.Sprintf("SELECT %s FROM pipeline_runs ORDER BY id DESC LIMIT %s", cols, s.d.Placeholder(1))
	}
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: list runs: %w", s.d.Name, err)
	}
	defer rows.Close()

	var out []storage.RunRecord
	for rows.Next() {
		var (
			r                 storage.RunRecord
			ts                string
			samples, runs, qc sql.NullInt64
			dur               sql.NullFloat64
			in, outDir, mode  sql.NullString
			errs              sql.NullString
		)
		if err := rows.Scan(&r.ID, &ts, &r.Status, &samples, &runs, &qc, &dur, &in, &outDir, &mode, &errs); err != nil {
			return nil, fmt.Errorf("%s: scan run: %w", s.d.Name, err)
		}
		r.Timestamp = parseStamp(ts)
		r.Samples, r.Runs, r.QC = int(samples.Int64), int(runs.Int64), int(qc.Int64)
		r.Duration = dur.Float64
		r.InputDir, r.OutputDir, r.Mode = in.String, outDir.String, mode.String
		if errs.Valid && errs.String != "" {
			if err := json.Unmarshal([]byte(errs.String), &r.Errors); err != nil {
				return nil, fmt.Errorf("%s: decode errors of run %d: %w", s.d.Name, r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	q := `SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(duration_seconds), 0),
	COALESCE(SUM(CASE WHEN status = 'success' THEN samples_processed ELSE 0 END), 0)
FROM pipeline_runs`
	var (
		st       storage.Stats
		ok, smp  int64
		total    int64
		duration float64
	)
	if err := s.db.QueryRowContext(ctx, q).Scan(&total, &ok, &duration, &smp); err != nil {
		return st, fmt.Errorf("%s: stats: %w", s.d.Name, err)
	}
	st.TotalRuns = int(total)
	st.SuccessfulRuns = int(ok)
	st.FailedRuns = st.TotalRuns - st.SuccessfulRuns
	st.TotalDuration = duration
	st.TotalSamples = smp
	if total > 0 {
		st.SuccessRate = float64(ok) / float64(total) * 100
		st.AvgDuration = duration / float64(total)
	}
	return st, nil
}

func (s *Store) Events(ctx context.Context, id int64) ([]storage.Event, error) {
	ts := s.d.Quote("timestamp")
	q := fmt.Sprintf("SELECT event_type, message, %s FROM pipeline_events WHERE pipeline_id = %s ORDER BY %s, id",
		ts, s.d.Placeholder(1), ts)
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("%s: events: %w", s.d.Name, err)
	}
	defer rows.Close()

	var out []storage.Event
	for rows.Next() {
		var (
			e       storage.Event
			msg, at sql.NullString
		)
		if err := rows.Scan(&e.Type, &msg, &at); err != nil {
			return nil, fmt.Errorf("%s: scan event: %w", s.d.Name, err)
		}
		e.Message = msg.String
		e.Timestamp = parseStamp(at.String)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Clear(ctx context.Context) error {
	for _, t := range []string{"pipeline_events", "pipeline_runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("%s: clear %s: %w", s.d.Name, t, err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func parseStamp(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		// rows written by other tools may carry any RFC 3339 form
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
