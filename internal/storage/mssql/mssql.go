// Package mssql registers the SQL Server history backend under the kind
// "mssql".
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"genoetl/internal/storage"
	"genoetl/internal/storage/sqldb"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository connects to dsn and migrates the history schema.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Store, error) {
	// fail fast on obvious DSN mistakes
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql: dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	s, err := sqldb.Open(ctx, db, sqldb.MSSQL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.History, error) {
		s, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
