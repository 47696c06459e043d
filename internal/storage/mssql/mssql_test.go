package mssql

import (
	"context"
	"errors"
	"testing"

	"genoetl/internal/storage"
	"genoetl/internal/storage/sqldb"
)

func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	called := false
	newRepository = func(ctx context.Context, dsn string) (*sqldb.Store, error) {
		called = true
		return nil, errors.New("stub")
	}
	if _, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://sa:pw@localhost:1433"}); err == nil {
		t.Fatal("want stub error")
	}
	if !called {
		t.Fatal("newRepository hook was not called")
	}
}
