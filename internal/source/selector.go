package source

import (
	"context"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/migration"
)

var (
	ErrNotAMigrationFile  = errors.New("not a migration file")
	ErrTooManyFilesForKey = errors.New("conflicting files for a single migration")
	ErrMissingUpScript    = errors.New("migration has a down script but no up script")
	ErrUnregisteredUnit   = errors.New("go migration file has no registered unit")
	ErrAlreadyExists      = errors.New("migration already exists")
)

// Selector lists the available migrations in ascending name order.
type Selector interface {
	Select(ctx context.Context) (migration.Migrations, error)
}

// Source is a Selector new migrations can be written to.
type Source interface {
	Selector

	IsValid() bool
	AlreadyExists(name string) bool
	Create(description string) (*migration.Migration, error)
}
