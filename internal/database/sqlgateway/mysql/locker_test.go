package mysql

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/schema"
)

type call struct {
	query string
	args  []interface{}
}

type fakeConn struct {
	schema.Connection
	calls  []call
	scalar interface{}
	err    error
}

func (c *fakeConn) Scalar(_ context.Context, query string, args ...interface{}) (interface{}, error) {
	c.calls = append(c.calls, call{query: query, args: args})
	return c.scalar, c.err
}

func TestLocker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("lock and unlock", func(t *testing.T) {
		conn := &fakeConn{scalar: []byte("1")}
		locker := NewLocker("foo", 5, false)

		require.NoError(t, locker.Lock(ctx, conn))
		require.NoError(t, locker.Unlock(ctx, conn))

		assert.Equal(t, []call{
			{query: "select get_lock(?, ?)", args: []interface{}{"foo", 5}},
			{query: "select release_lock(?)", args: []interface{}{"foo"}},
		}, conn.calls)
	})

	t.Run("defaults", func(t *testing.T) {
		conn := &fakeConn{scalar: int64(1)}
		locker := NewLocker("", 0, false)

		require.NoError(t, locker.Lock(ctx, conn))
		assert.Equal(t, []interface{}{DefaultLockKey, DefaultLockSeconds}, conn.calls[0].args)
	})

	t.Run("lock timeout", func(t *testing.T) {
		conn := &fakeConn{scalar: int64(0)}
		locker := NewLocker("foo", 1, false)

		err := locker.Lock(ctx, conn)
		require.Error(t, err)
		assert.True(t, errors.Is(err, database.ErrLockNotAcquired))
	})

	t.Run("driver failure", func(t *testing.T) {
		conn := &fakeConn{err: errors.New("connection refused")}
		locker := NewLocker("foo", 1, false)

		err := locker.Lock(ctx, conn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("no lock", func(t *testing.T) {
		conn := &fakeConn{}
		locker := NewLocker("foo", 5, true)

		require.NoError(t, locker.Lock(ctx, conn))
		require.NoError(t, locker.Unlock(ctx, conn))
		assert.Empty(t, conn.calls)
	})
}

func TestDialect(t *testing.T) {
	t.Parallel()

	d := NewDialect("app_migrations", "")

	queries := d.InitQueries()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "create table if not exists `app_migrations`")
	assert.Contains(t, queries[0], "default character set = utf8mb4")
	assert.Contains(t, queries[1], "create table if not exists `app_migrations_batches`")

	q, args := d.InsertQuery("2024_01_01_000000_create_users_table", 3)
	assert.Equal(t, "insert into `app_migrations` (`migration`, `batch`) values (?, ?)", q)
	assert.Equal(t, []interface{}{"2024_01_01_000000_create_users_table", uint64(3)}, args)

	assert.Equal(
		t,
		"select coalesce(max(`batch`), 0) from (select `batch` from `app_migrations` union all select `batch` from `app_migrations_batches`) as `allocated`",
		d.MaxBatchQuery(),
	)
}
