// Package all wires every built-in history backend into the storage factory.
//
// It exists purely for side effects: importing it runs the init functions of
// each backend, which register their factories. After
//
//	import _ "genoetl/internal/storage/all"
//
// storage.New accepts the kinds "sqlite", "postgres", "mssql" and "mysql".
// A binary that needs only some backends can blank-import those packages
// directly instead.
package all

import (
	_ "genoetl/internal/storage/mssql"
	_ "genoetl/internal/storage/mysql"
	_ "genoetl/internal/storage/postgres"
	_ "genoetl/internal/storage/sqlite"
)
