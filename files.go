package accounts

import (
	"context"
	"embed"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	bunpersistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func newMigrations() *bunpersistence.Migrations {
	return (&bunpersistence.Migrations{}).RegisterSQLMigrations(GetMigrationsFS())
}

// lockMigrations holds the bun migration lock until the returned func runs.
// The lock row lives in its own table, so an empty migration set is enough.
func lockMigrations(ctx context.Context, db *bun.DB) (func(), error) {
	locker := migrate.NewMigrator(db, migrate.NewMigrations())
	if err := locker.Init(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to init migration tables")
	}
	if err := locker.Lock(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "failed to acquire migration lock")
	}
	return func() { _ = locker.Unlock(ctx) }, nil
}

// Migrate applies every pending migration and returns the applied group.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	unlock, err := lockMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	defer unlock()

	migrations := newMigrations()
	if err := migrations.Migrate(ctx, db); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}
	return report(migrations), nil
}

// Rollback reverts the last applied migration group.
func Rollback(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	unlock, err := lockMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	defer unlock()

	migrations := newMigrations()
	if err := migrations.Rollback(ctx, db); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rollback migrations")
	}
	return report(migrations), nil
}

func report(migrations *bunpersistence.Migrations) *migrate.MigrationGroup {
	if group := migrations.Report(); group != nil {
		return group
	}
	return &migrate.MigrationGroup{}
}
