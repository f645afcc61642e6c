package forge

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/database/sqlgateway"
	"github.com/denismitr/forge/internal/database/sqlgateway/sqlite"
	sqlitegrammar "github.com/denismitr/forge/schema/grammars/sqlite"
)

type SqliteOptionFunc func(*sqlite.Options, *sqlgateway.ConnectOptions)

// UseSqlite runs migrations on one connection of db. Closing db stays up
// to the caller.
func UseSqlite(db *sqlx.DB, options ...SqliteOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		sqliteOpts := &sqlite.Options{
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(sqliteOpts, connectOpts)
		}

		m.driver = &driverSetup{
			connector: sqlgateway.MakeRetryingConnector(db, connectOpts),
			common:    sqliteOpts.CommonOptions,
			grammar:   sqlitegrammar.New(),
			processor: sqlitegrammar.NewProcessor(),
			dialect: func(table string) sqlgateway.Dialect {
				return sqlite.NewDialect(table)
			},
			locker: database.NullLocker{},
		}

		return nil
	}
}

func WithSqliteMigrationTable(migrationTable string) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		sqliteOpts.MigrationsTable = migrationTable
	}
}

func WithSqliteTablePrefix(prefix string) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		sqliteOpts.TablePrefix = prefix
	}
}

func WithSqliteMaxConnectionAttempts(attempts int) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}

func WithSqliteConnectionTimeout(timeout time.Duration) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}
