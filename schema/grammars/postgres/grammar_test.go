package postgres

import (
	"testing"

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

	t.Run("create table uses serial keys and separate comments", func(t *testing.T) {
		bp := schema.NewBlueprint("public.users", "")
		bp.Create()
		bp.ID()
		bp.String("email", 0).Unique().Comment("login")
		bp.Boolean("active").Default(true)
		bp.Index("active").Using("hash")

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			`create table "public"."users" ("id" bigserial not null primary key, "email" varchar(255) not null, ` +
				`"active" boolean not null default '1')`,
			`comment on column "public"."users"."email" is 'login'`,
			`create index "users_active_index" on "public"."users" using hash ("active")`,
			`alter table "public"."users" add constraint "users_email_unique" unique ("email")`,
		}, sqlOf(queries))
	})

	t.Run("changing a column alters type nullability and default", func(t *testing.T) {
		bp := schema.NewBlueprint("users", "")
		bp.String("email", 100).Nullable().Change()

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			`alter table "users" alter column "email" type varchar(100), alter column "email" drop not null, ` +
				`alter column "email" drop default`,
		}, sqlOf(queries))
	})

	t.Run("dropping constraints", func(t *testing.T) {
		bp := schema.NewBlueprint("users", "")
		bp.DropPrimary("")
		bp.DropUnique("users_email_unique")
		bp.DropIndex("users_active_index")

		queries, err := bp.ToSQL(New())
		require.NoError(t, err)

		assert.Equal(t, []string{
			`alter table "users" drop constraint "users_pkey"`,
			`alter table "users" drop constraint "users_email_unique"`,
			`drop index "users_active_index"`,
		}, sqlOf(queries))
	})
}

func TestGrammar_CompileIntrospection(t *testing.T) {
	t.Parallel()

	g := New()

	q := g.CompileTables([]string{"public", "audit"})
	assert.Contains(t, q.SQL, "n.nspname in ($1, $2)")
	assert.Equal(t, []interface{}{"public", "audit"}, q.Bindings)

	q = g.CompileViews(nil)
	assert.Contains(t, q.SQL, `schemaname not like 'pg\_%'`)
	assert.Empty(t, q.Bindings)

	q = g.CompileViewExists("", "active_users")
	assert.Contains(t, q.SQL, "c.relkind in ('v', 'm')")
	assert.Equal(t, []interface{}{nil, "active_users"}, q.Bindings)

	assert.Equal(t, []string{
		`drop type "public"."mood" cascade`,
		`drop domain "public"."email" cascade`,
	}, sqlOf(g.CompileDropAllTypes([]schema.UserType{
		{Name: "mood", Schema: "public", Type: "enum"},
		{Name: "email", Schema: "public", Type: "domain"},
	})))
}

func TestProcessor(t *testing.T) {
	t.Parallel()

	p := NewProcessor()

	columns := p.ProcessColumns([]schema.Row{
		{"name": "id", "type_name": "int8", "type": "bigint", "nullable": false, "default": "nextval('users_id_seq'::regclass)", "generated": "", "identity": ""},
		{"name": "total", "type_name": "numeric", "type": "numeric(8,2)", "nullable": true, "default": "(price * qty)", "generated": "s", "identity": ""},
	})
	require.Len(t, columns, 2)
	assert.True(t, columns[0].AutoIncrement)
	assert.NotNil(t, columns[0].Default)
	require.NotNil(t, columns[1].Generation)
	assert.Equal(t, "stored", columns[1].Generation.Type)
	assert.Equal(t, "(price * qty)", columns[1].Generation.Expression)
	assert.Nil(t, columns[1].Default)

	types := p.ProcessTypes([]schema.Row{{"name": "mood", "schema": "public", "type": "e", "category": "E", "implicit": false}})
	require.Len(t, types, 1)
	assert.Equal(t, "enum", types[0].Type)
	assert.Equal(t, "enum", types[0].Category)
	assert.Equal(t, "public.mood", types[0].SchemaQualifiedName)

	fks := p.ProcessForeignKeys([]schema.Row{{"name": "posts_user_id_foreign", "columns": "user_id", "foreign_table": "users",
		"foreign_columns": "id", "on_update": "a", "on_delete": "c"}})
	require.Len(t, fks, 1)
	assert.Equal(t, "no action", fks[0].OnUpdate)
	assert.Equal(t, "cascade", fks[0].OnDelete)
}
