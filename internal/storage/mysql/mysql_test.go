package mysql

import (
	"context"
	"testing"
)

func TestNewRepositoryRejectsBadDSN(t *testing.T) {
	if _, err := NewRepository(context.Background(), "not a dsn"); err == nil {
		t.Fatal("want error for malformed DSN")
	}
}
