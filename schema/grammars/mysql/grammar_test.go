package mysql

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denismitr/forge/schema"
)

func sqlOf(queries []schema.Query) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		out = append(out, q.SQL)
	}

	return out
}

func TestGrammar_CompileBlueprint(t *testing.T) {
	t.Parallel()

	t.Run("create table with keys compiled as separate statements", func(t *testing.T) {
		bp := schema.NewBlueprint("posts", "")
		bp.Create()
		bp.ID()
		bp.UnsignedBigInteger("user_id")
		bp.Decimal("price", 8, 2).Default(0).Comment("in cents")
		bp.Foreign("user_id").References("id").On("users").CascadeOnDelete()
		bp.String("slug", 0).Unique()

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			"create table `posts` (`id` bigint unsigned not null auto_increment primary key, " +
				"`user_id` bigint unsigned not null, " +
				"`price` decimal(8, 2) not null default '0' comment 'in cents', " +
				"`slug` varchar(255) not null)",
			"alter table `posts` add constraint `posts_user_id_foreign` foreign key (`user_id`) references `users` (`id`) on delete cascade",
			"alter table `posts` add unique `posts_slug_unique`(`slug`)",
		}, sqlOf(queries))
	})

	t.Run("alter table modifies and drops", func(t *testing.T) {
		bp := schema.NewBlueprint("users", "")
		bp.String("email", 100).Change()
		bp.DropColumn("a", "b")
		bp.DropPrimary("")
		bp.DropForeign("users_team_id_foreign")
		bp.Index("email").Using("btree")

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			"alter table `users` modify `email` varchar(100) not null",
			"alter table `users` drop `a`, drop `b`",
			"alter table `users` drop primary key",
			"alter table `users` drop foreign key `users_team_id_foreign`",
			"alter table `users` add index `users_email_index` using btree(`email`)",
		}, sqlOf(queries))
	})

	t.Run("rename uses rename table", func(t *testing.T) {
		bp := schema.NewBlueprint("shop.users", "")
		bp.Rename("members")

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)
		assert.Equal(t, []string{"rename table `shop`.`users` to `members`"}, sqlOf(queries))
	})
}

func TestGrammar_CompileIntrospection(t *testing.T) {
	t.Parallel()

	g := New()

	q := g.CompileTableExists("", "users")
	assert.Contains(t, q.SQL, "coalesce(?, schema())")
	assert.Equal(t, []interface{}{nil, "users"}, q.Bindings)

	q = g.CompileTables([]string{"a", "b"})
	assert.Contains(t, q.SQL, "table_schema in (?, ?)")
	assert.Equal(t, []interface{}{"a", "b"}, q.Bindings)

	q = g.CompileTables(nil)
	assert.Contains(t, q.SQL, "table_schema not in ('information_schema'")
	assert.Empty(t, q.Bindings)

	assert.Equal(t, []string{
		"set foreign_key_checks = 0",
		"drop table `a`, `b`",
		"set foreign_key_checks = 1",
	}, sqlOf(g.CompileDropAllTables([]string{"a", "b"})))

	_, ok := interface{}(g).(schema.AllTypesDropper)
	assert.False(t, ok)
}

func TestProcessor(t *testing.T) {
	t.Parallel()

	p := NewProcessor()

	columns := p.ProcessColumns([]schema.Row{
		{"name": "id", "type_name": "bigint", "type": "bigint unsigned", "nullable": "NO", "default": nil, "extra": "auto_increment"},
		{"name": "full_name", "type_name": "varchar", "type": "varchar(255)", "nullable": "YES", "default": nil,
			"extra": "VIRTUAL GENERATED", "expression": "concat(first, ' ', last)"},
	})
	require.Len(t, columns, 2)
	assert.True(t, columns[0].AutoIncrement)
	assert.False(t, columns[0].Nullable)
	assert.True(t, columns[1].Nullable)
	require.NotNil(t, columns[1].Generation)
	assert.Equal(t, "virtual", columns[1].Generation.Type)
	assert.Equal(t, "concat(first, ' ', last)", columns[1].Generation.Expression)

	indexes := p.ProcessIndexes([]schema.Row{
		{"name": "PRIMARY", "columns": "id", "type": "BTREE", "unique": int64(1)},
		{"name": "users_email_unique", "columns": "email,tenant_id", "type": "BTREE", "unique": int64(1)},
	})
	require.Len(t, indexes, 2)
	assert.True(t, indexes[0].Primary)
	assert.Equal(t, "btree", indexes[0].Type)
	assert.False(t, indexes[1].Primary)
	assert.Equal(t, []string{"email", "tenant_id"}, indexes[1].Columns)
}

func TestGrammar_UnknownCommand(t *testing.T) {
	_, err := New().Compile(schema.NewBlueprint("users", ""), &schema.Command{Name: "truncate"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrUnsupportedOperation))
}
