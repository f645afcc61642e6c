// Package forge runs schema migrations against SQLite, MySQL and Postgres
// and exposes a schema builder to introspect and change the database.
package forge

import (
	"context"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/logger"
	"github.com/denismitr/forge/internal/source"
	"github.com/denismitr/forge/schema"
)

var ErrGatewayNotInitialized = errors.New("database gateway has not been initialized")

// ErrNegativeSteps is a configuration error returned for WithSteps(n) with n < 0.
var ErrNegativeSteps = errors.Wrap(schema.ErrConfiguration, "steps must not be negative")

var (
	ErrNothingToMigrate  = database.ErrNothingToMigrate
	ErrNothingToRollback = database.ErrNothingToRollback
	ErrLockNotAcquired   = database.ErrLockNotAcquired
)

type (
	// PartialApplyError reports the migration that failed part way through
	// a batch and the ones applied before it.
	PartialApplyError = database.PartialApplyError

	// Status of one available migration.
	Status = database.Status

	Batch = database.Batch
)

type CloserFunc func() error

type Migrator struct {
	lg       logger.Logger
	driver   *driverSetup
	gateway  database.Gateway
	builder  *schema.Builder
	selector source.Selector
	sourceFn func(lg logger.Logger) source.Selector
}

// NewMigrator creates a migrator from option callbacks. A database option
// such as UseSqlite is required, the migrations are read from
// ./database/migrations unless another source is configured.
func NewMigrator(opts ...OptionFunc) (*Migrator, CloserFunc, error) {
	m := new(Migrator)
	m.lg = logger.NullLogger{}

	for _, oFunc := range opts {
		if err := oFunc(m); err != nil {
			return nil, nil, err
		}
	}

	if m.driver == nil {
		return nil, nil, ErrGatewayNotInitialized
	}

	if err := m.connect(); err != nil {
		return nil, nil, err
	}

	if m.sourceFn == nil {
		m.sourceFn = func(lg logger.Logger) source.Selector {
			return source.NewLocalFSSource(source.DefaultMigrationsFolder, lg)
		}
	}

	m.selector = m.sourceFn(m.lg)
	m.gateway.SetLogger(m.lg)

	return m, m.close, nil
}

// Migrate applies the pending migrations in one batch and returns their names.
func (m *Migrator) Migrate(ctx context.Context, cfs ...ActionConfigurator) ([]string, error) {
	plan, err := newAction(cfs).plan()
	if err != nil {
		return nil, err
	}

	migrations, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	migrated, err := m.gateway.Migrate(ctx, migrations, plan)
	if err != nil {
		if !errors.Is(err, ErrNothingToMigrate) {
			m.lg.Error(err)
		}

		return migrated.Names(), err
	}

	return migrated.Names(), nil
}

// Rollback reverts the last batch, or the given number of most recent
// migrations with WithSteps.
func (m *Migrator) Rollback(ctx context.Context, cfs ...ActionConfigurator) ([]string, error) {
	plan, err := newAction(cfs).plan()
	if err != nil {
		return nil, err
	}

	migrations, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, errors.Wrap(err, "could not rollback migrations")
	}

	rolledBack, err := m.gateway.Rollback(ctx, migrations, plan)
	if err != nil {
		if !errors.Is(err, ErrNothingToRollback) {
			m.lg.Error(err)
		}

		return rolledBack.Names(), err
	}

	return rolledBack.Names(), nil
}

// Refresh rolls back every applied migration then migrates all of them
// again in a new batch.
func (m *Migrator) Refresh(ctx context.Context) ([]string, []string, error) {
	migrations, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, nil, err
	}

	rolledBack, migrated, err := m.gateway.Refresh(ctx, migrations)
	if err != nil {
		m.lg.Error(err)
		return rolledBack.Names(), migrated.Names(), err
	}

	return rolledBack.Names(), migrated.Names(), nil
}

// Fresh drops all tables, and views with WithDropViews, then migrates
// everything.
func (m *Migrator) Fresh(ctx context.Context, cfs ...ActionConfigurator) ([]string, error) {
	act := newAction(cfs)

	migrations, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	migrated, err := m.gateway.Fresh(ctx, migrations, act.dropViews)
	if err != nil {
		if !errors.Is(err, ErrNothingToMigrate) {
			m.lg.Error(err)
		}

		return migrated.Names(), err
	}

	return migrated.Names(), nil
}

// Install creates the migrations table.
func (m *Migrator) Install(ctx context.Context) error {
	if err := m.gateway.Install(ctx); err != nil {
		m.lg.Error(err)
		return err
	}

	return nil
}

// Status reports every available migration against the migrations table.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	migrations, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	return m.gateway.Status(ctx, migrations)
}

// Schema returns the builder bound to the migrator connection.
func (m *Migrator) Schema() *schema.Builder {
	return m.builder
}

// Source returns the migration source when new migrations can be written to it.
func (m *Migrator) Source() source.Source {
	if s, ok := m.selector.(source.Source); ok {
		return s
	}

	return nil
}

func (m *Migrator) close() error {
	if m.gateway == nil {
		return ErrGatewayNotInitialized
	}

	if err := m.gateway.Close(); err != nil {
		m.lg.Error(err)
		return err
	}

	return nil
}
