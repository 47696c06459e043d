// Package postgres registers the Postgres history backend under the kind
// "postgres", using the pgx v5 driver through database/sql.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"genoetl/internal/storage"
	"genoetl/internal/storage/sqldb"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository connects to dsn and migrates the history schema.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: dsn: %w", err)
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s, err := sqldb.Open(ctx, db, sqldb.Postgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.History, error) {
		s, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
