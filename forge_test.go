package forge

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denismitr/forge/migration"
	"github.com/denismitr/forge/schema"
)

type counter struct {
	mu       sync.Mutex
	applied  []string
	reverted []string
}

func (c *counter) unit(name, table string, fn func(t *schema.Blueprint)) migration.Unit {
	return migration.Funcs{
		Up: func(ctx context.Context, s *schema.Builder) error {
			c.mu.Lock()
			c.applied = append(c.applied, name)
			c.mu.Unlock()

			if fn == nil {
				return s.Create(ctx, table, func(t *schema.Blueprint) {
					t.ID()
				})
			}

			return s.Table(ctx, table, fn)
		},
		Down: func(ctx context.Context, s *schema.Builder) error {
			c.mu.Lock()
			c.reverted = append(c.reverted, name)
			c.mu.Unlock()

			if fn == nil {
				return s.DropIfExists(ctx, table)
			}

			return nil
		},
	}
}

const (
	createUsers = "2024_01_01_000000_create_users_table"
	addEmail    = "2024_01_02_000000_add_email_to_users_table"
	createPosts = "2024_01_03_000000_create_posts_table"
)

func newRegistry(c *counter) *migration.Registry {
	r := migration.NewRegistry()
	r.MustRegister(createUsers, c.unit(createUsers, "users", nil))
	r.MustRegister(addEmail, c.unit(addEmail, "users", func(t *schema.Blueprint) {
		t.String("email", 0).Nullable()
	}))

	return r
}

func newMigrator(t *testing.T, opts ...OptionFunc) *Migrator {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	opts = append([]OptionFunc{
		UseSqlite(db, WithSqliteMaxConnectionAttempts(2), WithSqliteConnectionTimeout(5*time.Second)),
	}, opts...)

	m, closer, err := NewMigrator(opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, closer())
		_ = db.Close()
	})

	return m
}

func ledger(t *testing.T, m *Migrator) map[string]int64 {
	t.Helper()

	rows, err := m.Schema().Connection().Select(context.Background(), `select "migration", "batch" from "migrations"`)
	require.NoError(t, err)

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.String("migration")] = r.Int("batch")
	}

	return result
}

func TestNewMigrator(t *testing.T) {
	t.Run("a database option is required", func(t *testing.T) {
		_, _, err := NewMigrator()
		assert.True(t, errors.Is(err, ErrGatewayNotInitialized))
	})

	t.Run("options fail fast", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := NewMigrator(func(*Migrator) error { return boom })
		assert.True(t, errors.Is(err, boom))
	})
}

func TestMigrator_MigrateAndRollback(t *testing.T) {
	ctx := context.Background()
	c := &counter{}

	var out bytes.Buffer
	m := newMigrator(t, UseInMemorySource(newRegistry(c)), UseLogger(log.New(&out, "", 0), false, false))

	migrated, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{createUsers, addEmail}, migrated)
	assert.Equal(t, map[string]int64{createUsers: 1, addEmail: 1}, ledger(t, m))

	ok, err := m.Schema().HasColumn(ctx, "users", "email")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Contains(t, out.String(), "Forge: Running: "+createUsers)
	assert.Contains(t, out.String(), "Forge: Migrated: "+addEmail)

	migrated, err = m.Migrate(ctx)
	assert.True(t, errors.Is(err, ErrNothingToMigrate))
	assert.Empty(t, migrated)
	assert.Len(t, c.applied, 2, "second migrate must not invoke units")

	rolledBack, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{addEmail, createUsers}, rolledBack)
	assert.Equal(t, []string{addEmail, createUsers}, c.reverted)
	assert.Empty(t, ledger(t, m))

	_, err = m.Rollback(ctx)
	assert.True(t, errors.Is(err, ErrNothingToRollback))
}

func TestMigrator_RollbackSteps(t *testing.T) {
	ctx := context.Background()
	c := &counter{}
	r := newRegistry(c)
	m := newMigrator(t, UseInMemorySource(r))

	_, err := m.Migrate(ctx, WithSteps(1))
	require.NoError(t, err)

	r.MustRegister(createPosts, c.unit(createPosts, "posts", nil))

	_, err = m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{createUsers: 1, addEmail: 2, createPosts: 2}, ledger(t, m))

	rolledBack, err := m.Rollback(ctx, WithSteps(2))
	require.NoError(t, err)
	assert.Equal(t, []string{createPosts, addEmail}, rolledBack)
	assert.Equal(t, map[string]int64{createUsers: 1}, ledger(t, m))
}

func TestMigrator_ZeroAndNegativeSteps(t *testing.T) {
	ctx := context.Background()
	c := &counter{}
	m := newMigrator(t, UseInMemorySource(newRegistry(c)))

	migrated, err := m.Migrate(ctx, WithSteps(0))
	assert.True(t, errors.Is(err, ErrNothingToMigrate))
	assert.Empty(t, migrated)
	assert.Empty(t, c.applied)

	_, err = m.Migrate(ctx, WithSteps(-1))
	assert.True(t, errors.Is(err, ErrNegativeSteps))
	assert.Empty(t, c.applied)

	_, err = m.Migrate(ctx)
	require.NoError(t, err)

	rolledBack, err := m.Rollback(ctx, WithSteps(0))
	assert.True(t, errors.Is(err, ErrNothingToRollback))
	assert.Empty(t, rolledBack)

	_, err = m.Rollback(ctx, WithSteps(-1))
	assert.True(t, errors.Is(err, ErrNegativeSteps))

	assert.Empty(t, c.reverted)
	assert.Equal(t, map[string]int64{createUsers: 1, addEmail: 1}, ledger(t, m))
}

func TestMigrator_RefreshAndStatus(t *testing.T) {
	ctx := context.Background()
	c := &counter{}
	m := newMigrator(t, UseInMemorySource(newRegistry(c)))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Status{{Name: createUsers}, {Name: addEmail}}, statuses)

	_, err = m.Migrate(ctx, WithSteps(1))
	require.NoError(t, err)
	_, err = m.Migrate(ctx)
	require.NoError(t, err)

	rolledBack, migrated, err := m.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{addEmail, createUsers}, rolledBack)
	assert.Equal(t, []string{createUsers, addEmail}, migrated)

	statuses, err = m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Status{
		{Name: createUsers, Applied: true, Batch: 3},
		{Name: addEmail, Applied: true, Batch: 3},
	}, statuses)
}

func TestMigrator_Fresh(t *testing.T) {
	ctx := context.Background()
	c := &counter{}
	m := newMigrator(t, UseInMemorySource(newRegistry(c)))

	_, err := m.Migrate(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Schema().Create(ctx, "leftovers", func(t *schema.Blueprint) {
		t.Increments("id")
	}))
	require.NoError(t, m.Schema().Connection().Statement(ctx, `create view "active_users" as select "id" from "users"`))

	migrated, err := m.Fresh(ctx, WithDropViews())
	require.NoError(t, err)
	assert.Equal(t, []string{createUsers, addEmail}, migrated)
	assert.Empty(t, c.reverted, "fresh bypasses revert")

	tables, err := m.Schema().TableListing(ctx, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"migrations", "migrations_batches", "users"}, tables)

	ok, err := m.Schema().HasView(ctx, "active_users")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrator_LocalFolderSource(t *testing.T) {
	ctx := context.Background()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "db/2024_01_01_000000_create_flights_table.up.sql", []byte(
		"CREATE TABLE flights (id INTEGER PRIMARY KEY, name VARCHAR(100));",
	), 0644))
	require.NoError(t, afero.WriteFile(fs, "db/2024_01_01_000000_create_flights_table.down.sql", []byte(
		"DROP TABLE flights;",
	), 0644))

	clock := func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC) }
	m := newMigrator(t, UseLocalFolderSource("db", WithFs(fs), WithClock(clock)))

	require.NotNil(t, m.Source())
	created, err := m.Source().Create("add airline to flights table")
	require.NoError(t, err)
	assert.Equal(t, "2024_02_01_100000_add_airline_to_flights_table", created.Name)

	migrated, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024_01_01_000000_create_flights_table", created.Name}, migrated)

	cols, err := m.Schema().ColumnListing(ctx, "flights")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols)

	rolledBack, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Len(t, rolledBack, 2)

	ok, err := m.Schema().HasTable(ctx, "flights")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrator_Install(t *testing.T) {
	ctx := context.Background()
	m := newMigrator(t, UseInMemorySource(migration.NewRegistry()))

	for _, table := range []string{"migrations", "migrations_batches"} {
		ok, err := m.Schema().HasTable(ctx, table)
		require.NoError(t, err)
		assert.False(t, ok, table)
	}

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	require.NoError(t, m.Install(ctx))
	require.NoError(t, m.Install(ctx), "install is idempotent")

	for _, table := range []string{"migrations", "migrations_batches"} {
		ok, err := m.Schema().HasTable(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}
}
