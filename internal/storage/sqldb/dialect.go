package sqldb

import (
	"fmt"

	"github.com/pressly/goose/v3"
)

// InsertStyle says how a dialect hands back the id of an inserted row.
type InsertStyle int

const (
	// LastInsertID reads sql.Result.LastInsertId.
	LastInsertID InsertStyle = iota
	// Returning appends "RETURNING id" and scans the row.
	Returning
	// Output uses "OUTPUT INSERTED.id" before VALUES and scans the row.
	Output
)

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	// Name selects the embedded migration directory.
	Name  string
	Goose goose.Dialect
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Quote quotes an identifier.
	Quote  func(ident string) string
	Insert InsertStyle
	// Top means row limits are written as SELECT TOP (n) instead of LIMIT n.
	Top bool
}

func question(int) string { return "?" }
func dollar(n int) string { return fmt.Sprintf("$%d", n) }
func atP(n int) string { return fmt.Sprintf("@p%d", n) }
func dquote(s string) string { return `"` + s + `"` }

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Goose:       goose.DialectSQLite3,
		Placeholder: question,
		Quote:       dquote,
		Insert:      LastInsertID,
	}
	Postgres = Dialect{
		Name:        "postgres",
		Goose:       goose.DialectPostgres,
		Placeholder: dollar,
		Quote:       dquote,
		Insert:      Returning,
	}
	MSSQL = Dialect{
		Name:        "mssql",
		Goose:       goose.DialectMSSQL,
		Placeholder: atP,
		Quote:       func(s string) string { return "[" + s + "]" },
		Insert:      Output,
		Top:         true,
	}
	MySQL = Dialect{
		Name:        "mysql",
		Goose:       goose.DialectMySQL,
		Placeholder: question,
		Quote:       func(s string) string { return "`" + s + "`" },
		Insert:      LastInsertID,
	}
)
