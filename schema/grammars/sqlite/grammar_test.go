package sqlite

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

	t.Run("create table inlines primary and foreign keys", func(t *testing.T) {
		bp := schema.NewBlueprint("posts", "")
		bp.Create()
		bp.ID()
		bp.UnsignedBigInteger("user_id")
		bp.Enum("status", "draft", "published").Default("draft")
		bp.Foreign("user_id").References("id").On("users").CascadeOnDelete()
		bp.String("slug", 0).Unique()

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			`create table "posts" ("id" integer primary key autoincrement not null, "user_id" integer not null, ` +
				`"status" varchar check ("status" in ('draft', 'published')) not null default 'draft', ` +
				`"slug" varchar not null, foreign key("user_id") references "users"("id") on delete cascade)`,
			`create unique index "posts_slug_unique" on "posts" ("slug")`,
		}, sqlOf(queries))
	})

	t.Run("composite primary key is part of create", func(t *testing.T) {
		bp := schema.NewBlueprint("role_user", "")
		bp.Create()
		bp.Integer("role_id")
		bp.Integer("user_id")
		bp.Primary("role_id", "user_id")

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			`create table "role_user" ("role_id" integer not null, "user_id" integer not null, primary key ("role_id", "user_id"))`,
		}, sqlOf(queries))
	})

	t.Run("alter table adds columns before declared commands", func(t *testing.T) {
		bp := schema.NewBlueprint("main.users", "app_")
		bp.DropColumn("legacy", "old")
		bp.Timestamp("verified_at").Nullable().UseCurrent()
		bp.Index("verified_at").Named("verified_idx")

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			`alter table "main"."app_users" add column "verified_at" datetime default CURRENT_TIMESTAMP`,
			`alter table "main"."app_users" drop column "legacy"`,
			`alter table "main"."app_users" drop column "old"`,
			`create index "main"."verified_idx" on "app_users" ("verified_at")`,
		}, sqlOf(queries))
	})

	t.Run("single operation blueprints", func(t *testing.T) {
		tt := []struct {
			name  string
			build func(bp *schema.Blueprint)
			out   string
		}{
			{name: "drop", build: func(bp *schema.Blueprint) { bp.Drop() }, out: `drop table "users"`},
			{name: "drop if exists", build: func(bp *schema.Blueprint) { bp.DropIfExists() }, out: `drop table if exists "users"`},
			{name: "rename", build: func(bp *schema.Blueprint) { bp.Rename("members") }, out: `alter table "users" rename to "members"`},
			{name: "rename column", build: func(bp *schema.Blueprint) { bp.RenameColumn("a", "b") }, out: `alter table "users" rename column "a" to "b"`},
			{name: "drop index", build: func(bp *schema.Blueprint) { bp.DropIndex("users_email_index") }, out: `drop index "users_email_index"`},
		}

		for _, tc := range tt {
			bp := schema.NewBlueprint("users", "")
			tc.build(bp)

			queries, err := bp.ToSQL(New())
			require.NoError(t, err, tc.name)
			assert.Equal(t, []string{tc.out}, sqlOf(queries), tc.name)
		}
	})

	t.Run("operations sqlite cannot express", func(t *testing.T) {
		tt := []struct {
			name  string
			build func(bp *schema.Blueprint)
		}{
			{name: "modify column", build: func(bp *schema.Blueprint) { bp.String("email", 100).Change() }},
			{name: "add primary key later", build: func(bp *schema.Blueprint) { bp.Primary("id") }},
			{name: "add foreign key later", build: func(bp *schema.Blueprint) { bp.Foreign("user_id").References("id").On("users") }},
			{name: "drop foreign key", build: func(bp *schema.Blueprint) { bp.DropForeign("posts_user_id_foreign") }},
			{name: "drop primary key", build: func(bp *schema.Blueprint) { bp.DropPrimary("") }},
		}

		for _, tc := range tt {
			bp := schema.NewBlueprint("users", "")
			tc.build(bp)

			_, err := bp.ToSQL(New())
			require.Error(t, err, tc.name)
			assert.True(t, errors.Is(err, schema.ErrUnsupportedOperation), tc.name)
		}
	})
}

func TestGrammar_CompileIntrospection(t *testing.T) {
	t.Parallel()

	g := New()

	q := g.CompileColumns("", "users")
	assert.Contains(t, q.SQL, "pragma_table_xinfo(?, ?)")
	assert.Equal(t, []interface{}{"users", "main"}, q.Bindings)

	q = g.CompileTableExists("aux", "users")
	assert.Contains(t, q.SQL, `from "aux".sqlite_master`)
	assert.Equal(t, []interface{}{"users"}, q.Bindings)

	q = g.CompileTables([]string{"main", "aux"})
	assert.Contains(t, q.SQL, " union all ")
	assert.Contains(t, q.SQL, `'aux' as "schema"`)

	assert.Equal(t, []string{
		"pragma foreign_keys = off",
		`drop table if exists "a"`,
		`drop table if exists "b"`,
		"pragma foreign_keys = on",
	}, sqlOf(g.CompileDropAllTables([]string{"a", "b"})))
}
