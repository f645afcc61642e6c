package database

import (
	"context"

	"github.com/denismitr/forge/schema"
)

// Locker serializes migration runs across processes.
type Locker interface {
	Lock(ctx context.Context, conn schema.Connection) error
	Unlock(ctx context.Context, conn schema.Connection) error
}

type NullLocker struct{}

func (NullLocker) Lock(context.Context, schema.Connection) error {
	return nil
}

func (NullLocker) Unlock(context.Context, schema.Connection) error {
	return nil
}
