package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/featureplus/internal/db/driver"
)

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "featureplus.db")
	d, err := Open(driver.DialectSQLite, path)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	assert.Equal(t, path, d.DSN())
	assert.Equal(t, driver.DialectSQLite, d.Dialect())
	require.NoError(t, d.Migrate(context.Background()))
}

func TestMigrate_CreatesTables(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"projects", "features", "feature_tags", "tasks"} {
		var name string
		err := d.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}

	// idempotent
	require.NoError(t, d.Migrate(ctx))
}

func TestRunInTx(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	insert := func(tx *TxOps, name string) error {
		_, err := tx.Exec(`INSERT INTO projects (name, created_at, updated_at) VALUES (?, '', '')`, name)
		return err
	}

	require.NoError(t, d.RunInTx(ctx, func(tx *TxOps) error {
		assert.Equal(t, driver.DialectSQLite, tx.Dialect())
		return insert(tx, "kept")
	}))

	boom := errors.New("boom")
	err := d.RunInTx(ctx, func(tx *TxOps) error {
		if err := insert(tx, "dropped"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, d.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestForeignKeysEnforced(t *testing.T) {
	d := NewTestDB(t)
	_, err := d.ExecContext(context.Background(),
		`INSERT INTO features (project_id, title, created_at, updated_at) VALUES (?, 'x', '', '')`, 999)
	assert.Error(t, err)
}
