package forge

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/database/sqlgateway"
	"github.com/denismitr/forge/internal/database/sqlgateway/mysql"
	mysqlgrammar "github.com/denismitr/forge/schema/grammars/mysql"
)

type MySQLOptionFunc func(*mysql.Options, *sqlgateway.ConnectOptions)

// UseMySQL runs migrations on one connection of db. The named lock is off
// unless WithMySQLLock is given.
func UseMySQL(db *sqlx.DB, options ...MySQLOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		mysqlOpts := &mysql.Options{
			LockFor: mysql.DefaultLockSeconds,
			LockKey: mysql.DefaultLockKey,
			NoLock:  true,
			Charset: mysql.DefaultCharset,
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(mysqlOpts, connectOpts)
		}

		m.driver = &driverSetup{
			connector: sqlgateway.MakeRetryingConnector(db, connectOpts),
			common:    mysqlOpts.CommonOptions,
			grammar:   mysqlgrammar.New(),
			processor: mysqlgrammar.NewProcessor(),
			dialect: func(table string) sqlgateway.Dialect {
				return mysql.NewDialect(table, mysqlOpts.Charset)
			},
			locker: mysql.NewLocker(mysqlOpts.LockKey, mysqlOpts.LockFor, mysqlOpts.NoLock),
		}

		return nil
	}
}

// WithMySQLLock holds a GET_LOCK named lock around every run.
func WithMySQLLock() MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.NoLock = false
	}
}

func WithMySQLNoLock() MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.NoLock = true
	}
}

func WithMySQLLockKey(key string) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.LockKey = key
	}
}

func WithMySQLLockFor(lockFor int) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.LockFor = lockFor
	}
}

func WithMySQLMigrationTable(migrationTable string) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.MigrationsTable = migrationTable
	}
}

func WithMySQLTablePrefix(prefix string) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.TablePrefix = prefix
	}
}

func WithMySQLCharset(charset string) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		mysqlOpts.Charset = charset
	}
}

func WithMySQLConnectionTimeout(timeout time.Duration) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithMySQLMaxConnectionAttempts(attempts int) MySQLOptionFunc {
	return func(mysqlOpts *mysql.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
