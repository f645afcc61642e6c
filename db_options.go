package forge

import (
	"context"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/database/sqlgateway"
	"github.com/denismitr/forge/schema"
)

// driverSetup is everything a database option decides. The connection is
// opened once all options have been applied.
type driverSetup struct {
	connector sqlgateway.Connector
	common    database.CommonOptions
	grammar   schema.Grammar
	processor schema.Processor
	dialect   func(table string) sqlgateway.Dialect
	locker    database.Locker
}

func (m *Migrator) connect() error {
	d := m.driver

	ctx, cancel := context.WithTimeout(context.Background(), d.connector.Timeout())
	defer cancel()

	conn, err := d.connector.Connect(ctx)
	if err != nil {
		return errors.Wrap(err, "could not connect to the database")
	}

	if d.common.MigrationsTable == "" {
		d.common.MigrationsTable = database.DefaultMigrationsTable
	}

	c := schema.NewConnection(
		conn,
		schema.WithTablePrefix(d.common.TablePrefix),
		schema.WithQueryLogger(m.logSQL),
	)

	m.builder = schema.NewBuilder(c, d.grammar, d.processor)
	m.gateway = sqlgateway.New(
		m.builder,
		d.dialect(d.common.TablePrefix+d.common.MigrationsTable),
		sqlgateway.Options{
			CommonOptions: d.common,
			Locker:        d.locker,
			Logger:        m.lg,
			Closer:        d.connector,
		},
	)

	return nil
}

func (m *Migrator) logSQL(query string, args ...interface{}) {
	m.lg.SQL(query, args...)
}
