package sqlgateway

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/logger"
	"github.com/denismitr/forge/migration"
	"github.com/denismitr/forge/schema"
)

type Options struct {
	database.CommonOptions
	Locker database.Locker
	Logger logger.Logger
	Closer io.Closer
}

// SQLGateway keeps the ledger and runs migration units over a single
// connection.
type SQLGateway struct {
	conn    schema.Connection
	builder *schema.Builder
	dialect Dialect
	locker  database.Locker
	lg      logger.Logger
	closer  io.Closer
	table   string
}

var _ database.Gateway = (*SQLGateway)(nil)

func New(b *schema.Builder, d Dialect, opts Options) *SQLGateway {
	g := SQLGateway{
		conn:    b.Connection(),
		builder: b,
		dialect: d,
		locker:  opts.Locker,
		lg:      opts.Logger,
		closer:  opts.Closer,
		table:   opts.MigrationsTable,
	}

	if g.locker == nil {
		g.locker = database.NullLocker{}
	}

	if g.lg == nil {
		g.lg = logger.NullLogger{}
	}

	if g.table == "" {
		g.table = database.DefaultMigrationsTable
	}

	return &g
}

func (g *SQLGateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *SQLGateway) Install(ctx context.Context) error {
	return g.ensureLedger(ctx)
}

func (g *SQLGateway) Migrate(
	ctx context.Context,
	migrations migration.Migrations,
	p database.Plan,
) (migration.Migrations, error) {
	var migrated migration.Migrations

	f := func(applied []database.Record) error {
		var err error
		migrated, err = g.migrate(ctx, migrations, applied, p)
		return err
	}

	if err := g.execUnderLock(ctx, database.OperationMigrate, f); err != nil {
		return migrated, err
	}

	return migrated, nil
}

func (g *SQLGateway) Rollback(
	ctx context.Context,
	migrations migration.Migrations,
	p database.Plan,
) (migration.Migrations, error) {
	var rolledBack migration.Migrations

	f := func(applied []database.Record) error {
		var err error
		rolledBack, err = g.rollback(ctx, migrations, applied, p)
		return err
	}

	if err := g.execUnderLock(ctx, database.OperationRollback, f); err != nil {
		return rolledBack, err
	}

	return rolledBack, nil
}

// Refresh rolls back every record and migrates everything again. Both
// sides tolerate having nothing to do.
func (g *SQLGateway) Refresh(
	ctx context.Context,
	migrations migration.Migrations,
) (migration.Migrations, migration.Migrations, error) {
	var rolledBack, migrated migration.Migrations

	f := func(applied []database.Record) error {
		var err error
		rolledBack, err = g.rollback(ctx, migrations, applied, database.Plan{All: true})
		if err != nil && !errors.Is(err, database.ErrNothingToRollback) {
			return err
		}

		migrated, err = g.migrate(ctx, migrations, nil, database.Plan{})
		if err != nil && !errors.Is(err, database.ErrNothingToMigrate) {
			return err
		}

		return nil
	}

	if err := g.execUnderLock(ctx, database.OperationRefresh, f); err != nil {
		return rolledBack, migrated, err
	}

	return rolledBack, migrated, nil
}

// Fresh drops every table of the current schema, views too when asked,
// without consulting the ledger, then migrates everything.
func (g *SQLGateway) Fresh(
	ctx context.Context,
	migrations migration.Migrations,
	dropViews bool,
) (migration.Migrations, error) {
	if err := g.locker.Lock(ctx, g.conn); err != nil {
		return nil, errors.Wrap(err, "database lock failed")
	}

	if dropViews {
		g.lg.Infof("Dropping all views")
		if err := g.builder.DropAllViews(ctx); err != nil {
			return nil, g.handleError(ctx, errors.Wrapf(err, "operation [%s] failed", database.OperationFresh))
		}
	}

	g.lg.Infof("Dropping all tables")
	if err := g.builder.DropAllTables(ctx); err != nil {
		return nil, g.handleError(ctx, errors.Wrapf(err, "operation [%s] failed", database.OperationFresh))
	}

	if err := g.ensureLedger(ctx); err != nil {
		return nil, g.handleError(ctx, err)
	}

	migrated, err := g.migrate(ctx, migrations, nil, database.Plan{})
	if err != nil {
		return migrated, g.handleError(ctx, err)
	}

	return migrated, g.locker.Unlock(ctx, g.conn)
}

// Status never creates the ledger: a missing ledger means nothing ran.
func (g *SQLGateway) Status(ctx context.Context, migrations migration.Migrations) ([]database.Status, error) {
	exists, err := g.builder.HasTable(ctx, g.table)
	if err != nil {
		return nil, errors.Wrap(err, "could not check the migrations table")
	}

	if !exists {
		return database.StatusOf(migrations, nil), nil
	}

	applied, err := g.ReadRecords(ctx)
	if err != nil {
		return nil, err
	}

	return database.StatusOf(migrations, applied), nil
}

// ReadRecords returns the ledger ordered by batch and name, both ascending.
func (g *SQLGateway) ReadRecords(ctx context.Context) ([]database.Record, error) {
	rows, err := g.conn.Select(ctx, g.dialect.ReadQuery())
	if err != nil {
		return nil, errors.Wrap(err, "could not read the migrations table")
	}

	result := make([]database.Record, 0, len(rows))
	for _, r := range rows {
		result = append(result, database.Record{
			Name:  r.String("migration"),
			Batch: toBatch(r.Int("batch")),
		})
	}

	return result, nil
}

func (g *SQLGateway) Close() error {
	if g.closer == nil {
		return nil
	}

	return g.closer.Close()
}

func (g *SQLGateway) ensureLedger(ctx context.Context) error {
	for _, q := range g.dialect.InitQueries() {
		if err := g.conn.Statement(ctx, q); err != nil {
			return errors.Wrap(err, "could not create the migrations table")
		}
	}

	return nil
}

func (g *SQLGateway) migrate(
	ctx context.Context,
	migrations migration.Migrations,
	applied []database.Record,
	p database.Plan,
) (migration.Migrations, error) {
	scheduled := database.ScheduleForMigration(migrations, applied, p)
	if len(scheduled) == 0 {
		return nil, database.ErrNothingToMigrate
	}

	batch, err := g.allocateBatch(ctx)
	if err != nil {
		return nil, err
	}

	var migrated migration.Migrations
	for _, m := range scheduled {
		g.lg.Infof("Running: %s", m.Name)

		if err := g.migrateOne(ctx, m, batch); err != nil {
			g.lg.Error(errors.Wrapf(err, "migration [%s] failed", m.Name))

			return migrated, &database.PartialApplyError{
				Name:    m.Name,
				Batch:   batch,
				Applied: migrated.Names(),
				Err:     err,
			}
		}

		g.lg.Successf("Migrated: %s", m.Name)
		migrated = append(migrated, m)
	}

	q, args := g.dialect.CloseBatchQuery(batch)
	if _, err := g.conn.Prepared(ctx, q, args...); err != nil {
		return migrated, errors.Wrapf(err, "could not close batch %d", batch)
	}

	return migrated, nil
}

func (g *SQLGateway) rollback(
	ctx context.Context,
	migrations migration.Migrations,
	applied []database.Record,
	p database.Plan,
) (migration.Migrations, error) {
	scheduled := database.ScheduleForRollback(applied, p)
	if len(scheduled) == 0 {
		return nil, database.ErrNothingToRollback
	}

	var rolledBack migration.Migrations
	for _, r := range scheduled {
		m, ok := migrations.Find(r.Name)
		if !ok {
			return rolledBack, errors.Wrapf(schema.ErrNotFound, "migration [%s] of batch %d", r.Name, r.Batch)
		}

		g.lg.Infof("Rolling back: %s", m.Name)

		if err := g.rollbackOne(ctx, m); err != nil {
			return rolledBack, err
		}

		g.lg.Successf("Rolled back: %s", m.Name)
		rolledBack = append(rolledBack, m)
	}

	if err := g.conn.Statement(ctx, g.dialect.CloseEmptyBatchesQuery()); err != nil {
		return rolledBack, errors.Wrap(err, "could not close empty batches")
	}

	return rolledBack, nil
}

// allocateBatch resumes the batch left open by a failed run, or opens the
// next one above every batch ever allocated.
func (g *SQLGateway) allocateBatch(ctx context.Context) (database.Batch, error) {
	open, err := g.conn.Scalar(ctx, g.dialect.OpenBatchQuery())
	if err != nil {
		return 0, errors.Wrap(err, "could not look up an open batch")
	}

	if b := toBatch(schema.Row{"batch": open}.Int("batch")); b > 0 {
		g.lg.Debugf("resuming open batch %d", b)
		return b, nil
	}

	last, err := g.conn.Scalar(ctx, g.dialect.MaxBatchQuery())
	if err != nil {
		return 0, errors.Wrap(err, "could not read the last batch")
	}

	next := toBatch(schema.Row{"batch": last}.Int("batch")) + 1

	q, args := g.dialect.OpenBatchInsertQuery(next)
	if _, err := g.conn.Prepared(ctx, q, args...); err != nil {
		return 0, errors.Wrapf(err, "could not open batch %d", next)
	}

	return next, nil
}

func (g *SQLGateway) migrateOne(ctx context.Context, m *migration.Migration, batch database.Batch) error {
	if err := m.Unit.Apply(ctx, g.builder); err != nil {
		return err
	}

	q, args := g.dialect.InsertQuery(m.Name, batch)
	if _, err := g.conn.Prepared(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "could not record migration [%s] in batch %d", m.Name, batch)
	}

	return nil
}

func (g *SQLGateway) rollbackOne(ctx context.Context, m *migration.Migration) error {
	if err := m.Unit.Revert(ctx, g.builder); err != nil {
		return errors.Wrapf(err, "could not roll back migration [%s]", m.Name)
	}

	q, args := g.dialect.RemoveQuery(m.Name)
	if _, err := g.conn.Prepared(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "could not remove migration [%s] from the ledger", m.Name)
	}

	return nil
}

func (g *SQLGateway) execUnderLock(
	ctx context.Context,
	operation string,
	f func(applied []database.Record) error,
) error {
	if err := g.locker.Lock(ctx, g.conn); err != nil {
		return errors.Wrap(err, "database lock failed")
	}

	if err := g.ensureLedger(ctx); err != nil {
		return g.handleError(ctx, err)
	}

	applied, err := g.ReadRecords(ctx)
	if err != nil {
		return g.handleError(ctx, errors.Wrapf(err, "operation [%s] failed", operation))
	}

	if err := f(applied); err != nil {
		if errors.Is(err, database.ErrNothingToMigrate) || errors.Is(err, database.ErrNothingToRollback) {
			return g.handleError(ctx, err)
		}

		var partial *database.PartialApplyError
		if errors.As(err, &partial) {
			return g.handleError(ctx, err)
		}

		return g.handleError(ctx, errors.Wrapf(err, "operation [%s] failed", operation))
	}

	return g.locker.Unlock(ctx, g.conn)
}

func (g *SQLGateway) handleError(ctx context.Context, err error) error {
	if unlockErr := g.locker.Unlock(ctx, g.conn); unlockErr != nil {
		return errors.Wrapf(err, "unlock failed: %v", unlockErr)
	}

	return err
}

func toBatch(n int64) database.Batch {
	if n < 0 {
		return 0
	}

	return database.Batch(n)
}
