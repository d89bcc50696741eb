package driver

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// NewPostgres returns an unopened PostgreSQL driver backed by pgx. The DSN
// is a postgres:// URL or a key=value connection string.
func NewPostgres() Driver {
	return &conn{eng: engine{
		dialect:   DialectPostgres,
		sqlDriver: "pgx",
		schemaDir: "schema/postgres",
		ledgerDDL: `CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		prepare: func(ctx context.Context, db *sql.DB) error {
			return db.PingContext(ctx)
		},
		rebind: RebindDollar,
	}}
}
