package sqlgateway

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/retry"
)

const (
	DefaultConnectionAttempts    = 100
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 2 * time.Second
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

type Connector interface {
	Connect(ctx context.Context) (*sqlx.Conn, error)
	Timeout() time.Duration
	Close() error
}

// RetryingConnector pins a single connection of the pool, retrying until
// the database answers or the attempts run out.
type RetryingConnector struct {
	options *ConnectOptions
	db      *sqlx.DB
	conn    *sqlx.Conn
}

var _ Connector = (*RetryingConnector)(nil)

func MakeRetryingConnector(db *sqlx.DB, options *ConnectOptions) *RetryingConnector {
	if options == nil {
		options = NewDefaultConnectOptions()
	}

	return &RetryingConnector{db: db, options: options}
}

func (c *RetryingConnector) Timeout() time.Duration {
	return c.options.MaxTimeout
}

func (c *RetryingConnector) Connect(ctx context.Context) (*sqlx.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	err := retry.Incremental(ctx, c.options.RetryStep, c.options.MaxAttempts, func(attempt int) error {
		conn, err := c.db.Connx(ctx)
		if err != nil {
			return retry.Error(errors.Wrap(err, "could not establish DB connection"), attempt)
		}

		if err := Ping(ctx, conn); err != nil {
			_ = conn.Close()
			return retry.Error(err, attempt)
		}

		c.conn = conn

		return nil
	})

	if err != nil {
		return nil, err
	}

	return c.conn, nil
}

func (c *RetryingConnector) Close() error {
	if c.conn == nil {
		return nil
	}

	if err := c.conn.Close(); err != nil {
		return errors.Wrap(err, "retrying connector could not close the connection")
	}

	c.conn = nil

	return nil
}
