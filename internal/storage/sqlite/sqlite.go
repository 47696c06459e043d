// Package sqlite registers the SQLite history backend (modernc.org/sqlite,
// pure Go) under the kind "sqlite". It is the default backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"genoetl/internal/storage"
	"genoetl/internal/storage/sqldb"
)

// DefaultDSN is used when the configured DSN is empty.
const DefaultDSN = "data/.pipeline_history.db"

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository opens the database at dsn, creating the parent directory of
// a file path when needed, and migrates it.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = DefaultDSN
	}
	if dir := fileDir(dsn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY between scheduler and API
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	s, err := sqldb.Open(ctx, db, sqldb.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// fileDir returns the directory of a file DSN, or "" for in-memory DSNs.
func fileDir(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return ""
	}
	return filepath.Dir(p)
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.History, error) {
		s, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
