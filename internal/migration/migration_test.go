package migration

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunCreatesRegistryTables(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()
	runner := NewRunner()

	require.NoError(t, runner.Run(ctx, db))

	for _, table := range []string{"schema_migrations", "training_runs", "evaluation_reports"} {
		var name string
		err := db.GetContext(ctx, &name, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}

	applied, err := runner.Applied(ctx, db)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestRunIsIdempotent(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()
	runner := NewRunner()

	require.NoError(t, runner.Run(ctx, db))
	require.NoError(t, runner.Run(ctx, db))

	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, n)
	assert.Equal(t, "1.0.0", runner.Version())
}
