// Package concurrency classifies driver failures into transient concurrency
// conditions (deadlocks, lock wait timeouts, busy databases) that a caller
// may retry, and everything else.
package concurrency

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLStateSerializationFailure is the standard SQLSTATE reported for
// serialization failures and, by MySQL, for deadlocks.
const SQLStateSerializationFailure = "40001"

const (
	mysqlLockDeadlock    = 1213 // ER_LOCK_DEADLOCK
	mysqlLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT

	pqDeadlockDetected = "40P01"
	pqLockNotAvailable = "55P03"
)

var messages = []string{
	"Deadlock found when trying to get lock",
	"deadlock detected",
	"The database file is locked",
	"database is locked",
	"database table is locked",
	"A table in the database is locked",
	"has been chosen as the deadlock victim",
	"Lock wait timeout exceeded; try restarting transaction",
	"WSREP detected deadlock/conflict and aborted the transaction. Try restarting the transaction",
}

// sqlStater is implemented by drivers exposing the SQLSTATE of a failure.
type sqlStater interface {
	SQLState() string
}

// IsConcurrencyError reports whether err was caused by a concurrency
// condition such as a deadlock, a lock wait timeout or a locked database.
// Driver-native codes are checked first, the error message second.
func IsConcurrencyError(err error) bool {
	if err == nil {
		return false
	}

	if matched, ok := byCode(err); ok {
		return matched
	}

	msg := err.Error()
	for _, m := range messages {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}

// byCode inspects driver-native error codes. The second return value is
// false when err carries no code this package understands, in which case
// the caller falls back to message matching.
func byCode(err error) (bool, bool) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if string(myErr.SQLState[:]) == SQLStateSerializationFailure {
			return true, true
		}

		if myErr.Number == mysqlLockDeadlock || myErr.Number == mysqlLockWaitTimeout {
			return true, true
		}
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch string(pgErr.Code) {
		case SQLStateSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return true, true
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked {
			return true, true
		}
	}

	var stater sqlStater
	if errors.As(err, &stater) && stater.SQLState() == SQLStateSerializationFailure {
		return true, true
	}

	return false, false
}
