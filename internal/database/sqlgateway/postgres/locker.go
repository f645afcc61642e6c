package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/retry"
	"github.com/denismitr/forge/schema"
)

const DefaultLockKey = 99887766
const DefaultLockSeconds = 3

const lockRetryStep = 100 * time.Millisecond

type Options struct {
	database.CommonOptions
	LockKey int
	LockFor int // seconds
	NoLock  bool
}

// Locker holds a session level advisory lock for the duration of a run.
type Locker struct {
	lockKey int
	lockFor int
	noLock  bool
}

var _ database.Locker = (*Locker)(nil)

func NewLocker(lockKey int, lockFor int, noLock bool) *Locker {
	if lockKey == 0 {
		lockKey = DefaultLockKey
	}

	if lockFor <= 0 {
		lockFor = DefaultLockSeconds
	}

	return &Locker{lockKey: lockKey, lockFor: lockFor, noLock: noLock}
}

func (l *Locker) Lock(ctx context.Context, conn schema.Connection) error {
	if l.noLock {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(l.lockFor)*time.Second)
	defer cancel()

	err := retry.Incremental(ctx, lockRetryStep, l.attempts(), func(attempt int) error {
		v, err := conn.Scalar(ctx, "select pg_try_advisory_lock($1)", l.lockKey)
		if err != nil {
			return errors.Wrapf(err, "could not obtain [%d] exclusive Postgres DB lock", l.lockKey)
		}

		result := schema.Row{"locked": v}
		if !result.Bool("locked") {
			return retry.Error(database.ErrLockNotAcquired, attempt)
		}

		return nil
	})

	if errors.Is(err, retry.ErrTooManyAttempts) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(
			database.ErrLockNotAcquired,
			"Postgres DB lock [%d] is still held after [%d] seconds", l.lockKey, l.lockFor,
		)
	}

	return err
}

func (l *Locker) Unlock(ctx context.Context, conn schema.Connection) error {
	if l.noLock {
		return nil
	}

	if _, err := conn.Scalar(ctx, "select pg_advisory_unlock($1)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%d] exclusive Postgres DB lock", l.lockKey)
	}

	return nil
}

// attempts fits the incremental back-off into the lock timeout.
func (l *Locker) attempts() int {
	budget := time.Duration(l.lockFor) * time.Second
	n, waited := 0, time.Duration(0)
	for waited < budget {
		n++
		waited += time.Duration(n) * lockRetryStep
	}

	return n
}
