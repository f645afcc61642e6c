package schema

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Query is a compiled SQL statement with its positional bindings.
type Query struct {
	SQL      string
	Bindings []interface{}
}

// Connection is the boundary between the migration engine and a database
// driver. All failures are returned as *DriverError.
type Connection interface {
	// Statement executes a statement that returns no result.
	Statement(ctx context.Context, query string, args ...interface{}) error
	// Select runs a query and returns all its rows.
	Select(ctx context.Context, query string, args ...interface{}) ([]Row, error)
	// Scalar returns the first column of the first row, nil when there are no rows.
	Scalar(ctx context.Context, query string, args ...interface{}) (interface{}, error)
	// Prepared executes a prepared parameterized statement and returns the affected row count.
	Prepared(ctx context.Context, query string, args ...interface{}) (int64, error)
	// Transaction runs fn inside a transaction, committing when fn returns nil.
	Transaction(ctx context.Context, fn func(Connection) error) error
	// TablePrefix is prepended to every table name the builder resolves.
	TablePrefix() string
}

// Executor is satisfied by *sqlx.Conn, *sqlx.DB and *sqlx.Tx.
type Executor interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// QueryLogger receives every statement before it is sent to the driver.
type QueryLogger func(query string, args ...interface{})

// SQLConnection implements Connection on top of sqlx.
type SQLConnection struct {
	ex     Executor
	prefix string
	log    QueryLogger
}

var _ Connection = (*SQLConnection)(nil)

// ConnectionOption configures a SQLConnection.
type ConnectionOption func(c *SQLConnection)

// WithTablePrefix sets the table prefix of the connection.
func WithTablePrefix(prefix string) ConnectionOption {
	return func(c *SQLConnection) {
		c.prefix = prefix
	}
}

// WithQueryLogger attaches a statement logger.
func WithQueryLogger(l QueryLogger) ConnectionOption {
	return func(c *SQLConnection) {
		c.log = l
	}
}

// NewConnection wraps a sqlx executor. Pass a *sqlx.Conn to keep every
// statement on the same session.
func NewConnection(ex Executor, opts ...ConnectionOption) *SQLConnection {
	c := &SQLConnection{ex: ex}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *SQLConnection) TablePrefix() string {
	return c.prefix
}

func (c *SQLConnection) Statement(ctx context.Context, query string, args ...interface{}) error {
	c.logQuery(query, args)

	if _, err := c.ex.ExecContext(ctx, query, args...); err != nil {
		return driverError(query, err)
	}

	return nil
}

func (c *SQLConnection) Select(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	c.logQuery(query, args)

	rows, err := c.ex.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, driverError(query, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		m := make(map[string]interface{})
		if err := rows.MapScan(m); err != nil {
			return nil, driverError(query, err)
		}

		result = append(result, normalizeRow(m))
	}

	if err := rows.Err(); err != nil {
		return nil, driverError(query, err)
	}

	return result, nil
}

func (c *SQLConnection) Scalar(ctx context.Context, query string, args ...interface{}) (interface{}, error) {
	c.logQuery(query, args)

	var v interface{}
	if err := c.ex.QueryRowxContext(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, driverError(query, err)
	}

	if b, ok := v.([]byte); ok {
		return string(b), nil
	}

	return v, nil
}

func (c *SQLConnection) Prepared(ctx context.Context, query string, args ...interface{}) (int64, error) {
	c.logQuery(query, args)

	stmt, err := c.ex.PreparexContext(ctx, query)
	if err != nil {
		return 0, driverError(query, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, driverError(query, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, driverError(query, err)
	}

	return n, nil
}

// Transaction starts a transaction when the underlying executor can begin
// one. Inside an existing transaction fn runs on the same connection.
func (c *SQLConnection) Transaction(ctx context.Context, fn func(Connection) error) error {
	b, ok := c.ex.(txBeginner)
	if !ok {
		return fn(c)
	}

	tx, err := b.BeginTxx(ctx, nil)
	if err != nil {
		return driverError("BEGIN", err)
	}

	if err := fn(&SQLConnection{ex: tx, prefix: c.prefix, log: c.log}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return driverError("COMMIT", err)
	}

	return nil
}

func (c *SQLConnection) logQuery(query string, args []interface{}) {
	if c.log != nil {
		c.log(query, args...)
	}
}

func normalizeRow(m map[string]interface{}) Row {
	r := make(Row, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			r[k] = string(b)
			continue
		}

		r[k] = v
	}

	return r
}
