package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// engine describes what differs between dialects. Everything else is
// shared by conn.
type engine struct {
	dialect   Dialect
	sqlDriver string // database/sql driver name
	schemaDir string
	ledgerDDL string // creates the _migrations table
	maxConns  int    // 0 leaves the pool unbounded
	prepare   func(ctx context.Context, db *sql.DB) error
	rebind    func(query string) string
}

// conn implements Driver for any engine.
type conn struct {
	eng engine
	db  *sql.DB
}

func (c *conn) Open(dsn string) error {
	db, err := sql.Open(c.eng.sqlDriver, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.eng.dialect, err)
	}
	if c.eng.maxConns > 0 {
		db.SetMaxOpenConns(c.eng.maxConns)
	}
	if c.eng.prepare != nil {
		if err := c.eng.prepare(context.Background(), db); err != nil {
			_ = db.Close()
			return fmt.Errorf("prepare %s: %w", c.eng.dialect, err)
		}
	}
	c.db = db
	return nil
}

func (c *conn) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.Rebind(query), args...)
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.Rebind(query), args...)
}

func (c *conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, c.Rebind(query), args...)
}

func (c *conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &conTx{tx: tx, rebind: c.Rebind}, nil
}

func (c *conn) Migrate(ctx context.Context, schemaFS SchemaFS) error {
	return migrate(ctx, c, schemaFS)
}

func (c *conn) Dialect() Dialect { return c.eng.dialect }

func (c *conn) Rebind(query string) string {
	if c.eng.rebind == nil {
		return query
	}
	return c.eng.rebind(query)
}

func (c *conn) DB() *sql.DB { return c.db }

// conTx applies the connection's rebinding to a sql.Tx.
type conTx struct {
	tx     *sql.Tx
	rebind func(string) string
}

func (t *conTx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.rebind(query), args...)
}

func (t *conTx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.rebind(query), args...)
}

func (t *conTx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.rebind(query), args...)
}

func (t *conTx) Commit() error   { return t.tx.Commit() }
func (t *conTx) Rollback() error { return t.tx.Rollback() }

// RebindDollar rewrites '?' placeholders as $1, $2, ... Question marks inside
// single-quoted literals are left alone.
func RebindDollar(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n, quoted := 0, false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '?' && !quoted:
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
