package mysql

import (
	"context"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/schema"
)

const DefaultLockKey = "forge_migrations"
const DefaultLockSeconds = 3

type Options struct {
	database.CommonOptions
	Charset string
	LockKey string
	LockFor int // seconds
	NoLock  bool
}

// Locker holds a MySQL named lock for the duration of a run.
type Locker struct {
	lockKey string
	lockFor int
	noLock  bool
}

var _ database.Locker = (*Locker)(nil)

func NewLocker(lockKey string, lockFor int, noLock bool) *Locker {
	if lockKey == "" {
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

	v, err := conn.Scalar(ctx, "select get_lock(?, ?)", l.lockKey, l.lockFor)
	if err != nil {
		return errors.Wrapf(err, "could not obtain [%s] exclusive MySQL DB lock for [%d] seconds", l.lockKey, l.lockFor)
	}

	// 1 when obtained, 0 on timeout, NULL on error
	result := schema.Row{"lock": v}
	if result.Int("lock") != 1 {
		return errors.Wrapf(
			database.ErrLockNotAcquired,
			"MySQL DB lock [%s] is still held after [%d] seconds", l.lockKey, l.lockFor,
		)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, conn schema.Connection) error {
	if l.noLock {
		return nil
	}

	if _, err := conn.Scalar(ctx, "select release_lock(?)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%s] exclusive MySQL DB lock", l.lockKey)
	}

	return nil
}
