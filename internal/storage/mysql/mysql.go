// Package mysql registers the MySQL history backend under the kind "mysql".
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"genoetl/internal/storage"
	"genoetl/internal/storage/sqldb"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository connects to dsn and migrates the history schema.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: dsn: %w", err)
	}
	// goose migration files hold several statements
	cfg.MultiStatements = true
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	s, err := sqldb.Open(ctx, db, sqldb.MySQL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.History, error) {
		s, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
