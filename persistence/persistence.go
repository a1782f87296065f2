// Package persistence opens the bun database the account repositories run on.
package persistence

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Driver names the database backend selected from a DSN.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type options struct {
	debug   bool
	verbose bool
}

// Option configures Open.
type Option func(*options)

// WithQueryDebug logs failed queries, or every query when verbose is set.
func WithQueryDebug(verbose bool) Option {
	return func(o *options) {
		o.debug = true
		o.verbose = verbose
	}
}

// DriverFor picks the backend for dsn. postgres:// and postgresql:// URLs use
// Postgres, anything else is handed to SQLite.
func DriverFor(dsn string) Driver {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts ...Option) (*bun.DB, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var db *bun.DB
	switch DriverFor(dsn) {
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// a single connection keeps in-memory databases shared and
		// serializes writers
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if o.debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithEnabled(true),
			bundebug.WithVerbose(o.verbose),
		))
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to connect to database")
	}

	if DriverFor(dsn) == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable foreign keys")
		}
	}

	return db, nil
}
