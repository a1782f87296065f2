package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/persistence"
)

func TestDriverFor(t *testing.T) {
	assert.Equal(t, persistence.DriverPostgres, persistence.DriverFor("postgres://u:p@localhost:5432/accounts?sslmode=disable"))
	assert.Equal(t, persistence.DriverPostgres, persistence.DriverFor("postgresql://localhost/accounts"))
	assert.Equal(t, persistence.DriverSQLite, persistence.DriverFor("file::memory:?cache=shared"))
	assert.Equal(t, persistence.DriverSQLite, persistence.DriverFor("accounts.db"))
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()

	db, err := persistence.Open(ctx, "file::memory:?cache=shared", persistence.WithQueryDebug(false))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, dialect.SQLite, db.Dialect().Name())

	group, err := accounts.Migrate(ctx, db)
	require.NoError(t, err)
	assert.False(t, group.IsZero())

	var count int
	require.NoError(t, db.NewSelect().TableExpr("users").ColumnExpr("count(*)").Scan(ctx, &count))
	assert.Zero(t, count)

	group, err = accounts.Migrate(ctx, db)
	require.NoError(t, err)
	assert.True(t, group.IsZero(), "second run has nothing to apply")

	group, err = accounts.Rollback(ctx, db)
	require.NoError(t, err)
	assert.False(t, group.IsZero())
}
