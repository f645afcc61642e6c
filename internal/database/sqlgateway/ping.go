package sqlgateway

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Ping makes sure the connection can actually run a query.
func Ping(ctx context.Context, conn *sqlx.Conn) error {
	if err := conn.PingContext(ctx); err != nil {
		return errors.Wrap(err, "db ping failed")
	}

	var result int
	if err := conn.QueryRowxContext(ctx, "select 1").Scan(&result); err != nil {
		return errors.Wrap(err, "could not ping DB")
	}

	return nil
}
