// Package driver hides the differences between the SQL engines sqlgw can
// run on: connection setup, placeholder syntax and migration bookkeeping.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect names a supported SQL engine.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Driver is an open connection pool for one dialect.
//
// Queries are written with '?' placeholders; Rebind converts them to the
// dialect's form and every query method applies it.
type Driver interface {
	Open(dsn string) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)

	// Migrate applies the dialect's schema files that have not run yet.
	Migrate(ctx context.Context, schemaFS SchemaFS) error

	Dialect() Dialect
	Rebind(query string) string
	DB() *sql.DB
}

// Tx is a transaction with the same placeholder handling as Driver.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

// SchemaFS is the read side of an embedded schema directory.
type SchemaFS interface {
	ReadDir(name string) ([]DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

// DirEntry is one file in a SchemaFS directory.
type DirEntry interface {
	Name() string
	IsDir() bool
}

// New returns an unopened driver for dialect.
func New(dialect Dialect) (Driver, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLite(), nil
	case DialectPostgres:
		return NewPostgres(), nil
	}
	return nil, fmt.Errorf("unsupported dialect: %s", dialect)
}

// ParseDialect accepts the dialect names and their common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unknown dialect: %s", s)
}
