package driver

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite" // SQLite driver
)

// sqlitePragmas run once at open. With a single connection they hold for
// every query, and ":memory:" stays one database.
const sqlitePragmas = `
	PRAGMA foreign_keys = ON;
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;`

// NewSQLite returns an unopened SQLite driver. The DSN is a file path or
// ":memory:".
func NewSQLite() Driver {
	return &conn{eng: engine{
		dialect:   DialectSQLite,
		sqlDriver: "sqlite",
		schemaDir: "schema",
		ledgerDDL: `CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT DEFAULT (datetime('now'))
		)`,
		maxConns: 1,
		prepare: func(ctx context.Context, db *sql.DB) error {
			_, err := db.ExecContext(ctx, sqlitePragmas)
			return err
		},
	}}
}
