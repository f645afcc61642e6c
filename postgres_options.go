package forge

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/database/sqlgateway"
	"github.com/denismitr/forge/internal/database/sqlgateway/postgres"
	pggrammar "github.com/denismitr/forge/schema/grammars/postgres"
)

type PostgresOptionFunc func(*postgres.Options, *sqlgateway.ConnectOptions)

// UsePostgres runs migrations on one connection of db. The advisory lock
// is off unless WithPostgresLock is given.
func UsePostgres(db *sqlx.DB, options ...PostgresOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		pgOpts := &postgres.Options{
			LockFor: postgres.DefaultLockSeconds,
			LockKey: postgres.DefaultLockKey,
			NoLock:  true,
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(pgOpts, connectOpts)
		}

		m.driver = &driverSetup{
			connector: sqlgateway.MakeRetryingConnector(db, connectOpts),
			common:    pgOpts.CommonOptions,
			grammar:   pggrammar.New(),
			processor: pggrammar.NewProcessor(),
			dialect: func(table string) sqlgateway.Dialect {
				return postgres.NewDialect(table)
			},
			locker: postgres.NewLocker(pgOpts.LockKey, pgOpts.LockFor, pgOpts.NoLock),
		}

		return nil
	}
}

// WithPostgresLock holds a session advisory lock around every run.
func WithPostgresLock() PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.NoLock = false
	}
}

func WithPostgresLockKey(key int) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.LockKey = key
	}
}

func WithPostgresLockFor(lockFor int) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.LockFor = lockFor
	}
}

func WithPostgresMigrationTable(migrationTable string) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.MigrationsTable = migrationTable
	}
}

func WithPostgresTablePrefix(prefix string) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.TablePrefix = prefix
	}
}

func WithPostgresConnectionTimeout(timeout time.Duration) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithPostgresMaxConnectionAttempts(attempts int) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
