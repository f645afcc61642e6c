// Package postgres is the PostgreSQL dialect of the schema builder,
// introspecting through pg_catalog.
package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/denismitr/forge/schema"
)

// Grammar compiles PostgreSQL statements with $n placeholders.
type Grammar struct{}

var (
	_ schema.Grammar             = Grammar{}
	_ schema.TableExistsCompiler = Grammar{}
	_ schema.ViewExistsCompiler  = Grammar{}
	_ schema.AllTablesDropper    = Grammar{}
	_ schema.AllViewsDropper     = Grammar{}
	_ schema.AllTypesDropper     = Grammar{}
)

// New returns the PostgreSQL grammar.
func New() Grammar {
	return Grammar{}
}

type binder struct {
	args []interface{}
}

func (b *binder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *binder) bindAll(values []string) string {
	ps := make([]string, 0, len(values))
	for _, v := range values {
		ps = append(ps, b.bind(v))
	}

	return strings.Join(ps, ", ")
}

func (g Grammar) CompileCurrentSchema() schema.Query {
	return schema.Query{SQL: "select current_schema()"}
}

func (g Grammar) CompileTableExists(schemaName, table string) schema.Query {
	return g.relationExists(schemaName, table, "'r', 'p'")
}

func (g Grammar) CompileViewExists(schemaName, view string) schema.Query {
	return g.relationExists(schemaName, view, "'v', 'm'")
}

func (g Grammar) relationExists(schemaName, name, kinds string) schema.Query {
	return schema.Query{
		SQL: "select exists (select 1 from pg_class c, pg_namespace n where " +
			"n.nspname = coalesce($1, current_schema()) and c.relname = $2 and c.relkind in (" + kinds + ") " +
			"and n.oid = c.relnamespace)",
		Bindings: []interface{}{schema.NullableString(schemaName), name},
	}
}

func (g Grammar) schemaFilter(b *binder, column string, schemas []string) string {
	if len(schemas) == 0 {
		return fmt.Sprintf("%s not in ('pg_catalog', 'information_schema') and %s not like 'pg\\_%%'", column, column)
	}

	return fmt.Sprintf("%s in (%s)", column, b.bindAll(schemas))
}

func (g Grammar) CompileTables(schemas []string) schema.Query {
	b := &binder{}

	return schema.Query{
		SQL: "select c.relname as name, n.nspname as schema, pg_total_relation_size(c.oid) as size, " +
			"obj_description(c.oid, 'pg_class') as comment from pg_class c, pg_namespace n " +
			"where c.relkind in ('r', 'p') and n.oid = c.relnamespace and " + g.schemaFilter(b, "n.nspname", schemas) +
			" order by n.nspname, c.relname",
		Bindings: b.args,
	}
}

func (g Grammar) CompileViews(schemas []string) schema.Query {
	b := &binder{}

	return schema.Query{
		SQL: "select viewname as name, schemaname as schema, definition from pg_views where " +
			g.schemaFilter(b, "schemaname", schemas) + " order by schemaname, viewname",
		Bindings: b.args,
	}
}

func (g Grammar) CompileTypes(schemas []string) schema.Query {
	b := &binder{}

	return schema.Query{
		SQL: "select t.typname as name, n.nspname as schema, t.typtype as type, t.typcategory as category, " +
			"((t.typinput = 'array_in'::regproc and t.typoutput = 'array_out'::regproc) or t.typtype = 'm') as implicit " +
			"from pg_type t join pg_namespace n on n.oid = t.typnamespace " +
			"left join pg_class c on c.oid = t.typrelid " +
			"left join pg_type el on el.oid = t.typelem " +
			"left join pg_class ce on ce.oid = el.typrelid " +
			"where ((t.typrelid = 0 and (ce.relkind = 'c' or ce.relkind is null)) or c.relkind = 'c') " +
			"and not exists (select 1 from pg_depend d where d.objid in (t.oid, t.typelem) and d.deptype = 'e') and " +
			g.schemaFilter(b, "n.nspname", schemas),
		Bindings: b.args,
	}
}

func (g Grammar) CompileColumns(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: "select a.attname as name, t.typname as type_name, format_type(a.atttypid, a.atttypmod) as type, " +
			"(select tc.collcollate from pg_catalog.pg_collation tc where tc.oid = a.attcollation) as collation, " +
			"not a.attnotnull as nullable, " +
			"(select pg_get_expr(adbin, adrelid) from pg_attrdef where c.oid = pg_attrdef.adrelid and pg_attrdef.adnum = a.attnum) as \"default\", " +
			"col_description(c.oid, a.attnum) as comment, a.attgenerated as generated, a.attidentity as identity " +
			"from pg_attribute a, pg_class c, pg_type t, pg_namespace n " +
			"where c.relname = $2 and n.nspname = coalesce($1, current_schema()) and a.attnum > 0 " +
			"and not a.attisdropped and a.attrelid = c.oid and a.atttypid = t.oid and n.oid = c.relnamespace " +
			"order by a.attnum",
		Bindings: []interface{}{schema.NullableString(schemaName), table},
	}
}

func (g Grammar) CompileIndexes(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: "select ic.relname as name, string_agg(a.attname, ',' order by indseq.ord) as columns, " +
			"am.amname as \"type\", i.indisunique as \"unique\", i.indisprimary as \"primary\" " +
			"from pg_index i " +
			"join pg_class tc on tc.oid = i.indrelid " +
			"join pg_namespace tn on tn.oid = tc.relnamespace " +
			"join pg_class ic on ic.oid = i.indexrelid " +
			"join pg_am am on am.oid = ic.relam " +
			"join lateral unnest(i.indkey) with ordinality as indseq(num, ord) on true " +
			"left join pg_attribute a on a.attrelid = i.indrelid and a.attnum = indseq.num " +
			"where tc.relname = $2 and tn.nspname = coalesce($1, current_schema()) " +
			"group by ic.relname, am.amname, i.indisunique, i.indisprimary",
		Bindings: []interface{}{schema.NullableString(schemaName), table},
	}
}

func (g Grammar) CompileForeignKeys(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: "select c.conname as name, string_agg(la.attname, ',' order by conseq.ord) as columns, " +
			"fn.nspname as foreign_schema, fc.relname as foreign_table, " +
			"string_agg(fa.attname, ',' order by conseq.ord) as foreign_columns, " +
			"c.confupdtype as on_update, c.confdeltype as on_delete " +
			"from pg_constraint c " +
			"join pg_class tc on c.conrelid = tc.oid " +
			"join pg_namespace tn on tn.oid = tc.relnamespace " +
			"join pg_class fc on c.confrelid = fc.oid " +
			"join pg_namespace fn on fn.oid = fc.relnamespace " +
			"join lateral unnest(c.conkey) with ordinality as conseq(num, ord) on true " +
			"join pg_attribute la on la.attrelid = c.conrelid and la.attnum = conseq.num " +
			"join pg_attribute fa on fa.attrelid = c.confrelid and fa.attnum = c.confkey[conseq.ord] " +
			"where c.contype = 'f' and tc.relname = $2 and tn.nspname = coalesce($1, current_schema()) " +
			"group by c.conname, fn.nspname, fc.relname, c.confupdtype, c.confdeltype",
		Bindings: []interface{}{schema.NullableString(schemaName), table},
	}
}

func (g Grammar) CompileDropAllTables(tables []string) []schema.Query {
	return []schema.Query{{SQL: "drop table " + g.columnize(tables) + " cascade"}}
}

func (g Grammar) CompileDropAllViews(views []string) []schema.Query {
	return []schema.Query{{SQL: "drop view " + g.columnize(views) + " cascade"}}
}

func (g Grammar) CompileDropAllTypes(types []schema.UserType) []schema.Query {
	var domains, others []string
	for _, t := range types {
		name := g.wrap(t.Schema) + "." + g.wrap(t.Name)
		if t.Type == "domain" {
			domains = append(domains, name)
		} else {
			others = append(others, name)
		}
	}

	var queries []schema.Query
	if len(others) > 0 {
		queries = append(queries, schema.Query{SQL: "drop type " + strings.Join(others, ", ") + " cascade"})
	}

	if len(domains) > 0 {
		queries = append(queries, schema.Query{SQL: "drop domain " + strings.Join(domains, ", ") + " cascade"})
	}

	return queries
}

func (g Grammar) Compile(b *schema.Blueprint, c *schema.Command) ([]schema.Query, error) {
	table := g.wrapTable(b)

	switch c.Name {
	case schema.CommandCreate:
		defs := make([]string, 0, len(b.Columns()))
		for _, col := range b.Columns() {
			defs = append(defs, g.column(col))
		}
		queries := g.one("create table %s (%s)", table, strings.Join(defs, ", "))
		return append(queries, g.comments(table, b.Columns())...), nil
	case schema.CommandAdd:
		queries := g.one("alter table %s add column %s", table, g.column(c.Column))
		return append(queries, g.comments(table, []*schema.ColumnDefinition{c.Column})...), nil
	case schema.CommandChange:
		return g.change(table, c.Column), nil
	case schema.CommandDropColumn:
		drops := make([]string, 0, len(c.Columns))
		for _, col := range c.Columns {
			drops = append(drops, "drop column "+g.wrap(col))
		}
		return g.one("alter table %s %s", table, strings.Join(drops, ", ")), nil
	case schema.CommandRenameColumn:
		return g.one("alter table %s rename column %s to %s", table, g.wrap(c.From), g.wrap(c.To)), nil
	case schema.CommandPrimary:
		return g.one("alter table %s add primary key (%s)", table, g.columnize(c.Columns)), nil
	case schema.CommandUnique:
		return g.one("alter table %s add constraint %s unique (%s)", table, g.wrap(c.Index), g.columnize(c.Columns)), nil
	case schema.CommandIndex:
		using := ""
		if c.Algorithm != "" {
			using = " using " + c.Algorithm
		}
		return g.one("create index %s on %s%s (%s)", g.wrap(c.Index), table, using, g.columnize(c.Columns)), nil
	case schema.CommandDropPrimary:
		name := c.Index
		if name == "" {
			name = b.Table() + "_pkey"
		}
		return g.one("alter table %s drop constraint %s", table, g.wrap(name)), nil
	case schema.CommandDropUnique, schema.CommandDropForeign:
		return g.one("alter table %s drop constraint %s", table, g.wrap(c.Index)), nil
	case schema.CommandDropIndex:
		return g.one("drop index %s", g.wrapIndex(b, c.Index)), nil
	case schema.CommandForeign:
		return []schema.Query{{SQL: g.foreign(b, c)}}, nil
	case schema.CommandRename:
		return g.one("alter table %s rename to %s", table, g.wrap(b.Prefix()+c.To)), nil
	case schema.CommandDrop:
		return g.one("drop table %s", table), nil
	case schema.CommandDropIfExists:
		return g.one("drop table if exists %s", table), nil
	default:
		return nil, schema.Unsupported(fmt.Sprintf("the [%s] command", c.Name))
	}
}

func (g Grammar) one(format string, args ...interface{}) []schema.Query {
	return []schema.Query{{SQL: fmt.Sprintf(format, args...)}}
}

func (g Grammar) change(table string, c *schema.ColumnDefinition) []schema.Query {
	column := g.wrap(c.Name)
	changes := []string{fmt.Sprintf("alter column %s type %s", column, g.typeOf(c))}

	if c.IsNullable {
		changes = append(changes, fmt.Sprintf("alter column %s drop not null", column))
	} else {
		changes = append(changes, fmt.Sprintf("alter column %s set not null", column))
	}

	switch {
	case c.UseCurrentTimestamp:
		changes = append(changes, fmt.Sprintf("alter column %s set default CURRENT_TIMESTAMP", column))
	case c.HasDefault:
		changes = append(changes, fmt.Sprintf("alter column %s set default %s", column, schema.DefaultLiteral(c.DefaultValue)))
	default:
		changes = append(changes, fmt.Sprintf("alter column %s drop default", column))
	}

	queries := g.one("alter table %s %s", table, strings.Join(changes, ", "))
	return append(queries, g.comments(table, []*schema.ColumnDefinition{c})...)
}

func (g Grammar) comments(table string, cols []*schema.ColumnDefinition) []schema.Query {
	var queries []schema.Query
	for _, c := range cols {
		if c.CommentText == "" {
			continue
		}

		queries = append(queries, schema.Query{
			SQL: fmt.Sprintf("comment on column %s.%s is %s", table, g.wrap(c.Name), schema.QuoteString(c.CommentText)),
		})
	}

	return queries
}

func (g Grammar) foreign(b *schema.Blueprint, c *schema.Command) string {
	fk := c.Foreign
	sql := fmt.Sprintf("alter table %s add constraint %s foreign key (%s) references %s (%s)",
		g.wrapTable(b), g.wrap(c.Index), g.columnize(fk.Columns),
		g.wrap(b.Prefix()+fk.ReferencedTable), g.columnize(fk.ReferencedColumns))

	if fk.DeleteAction != "" {
		sql += " on delete " + fk.DeleteAction
	}

	if fk.UpdateAction != "" {
		sql += " on update " + fk.UpdateAction
	}

	return sql
}

func (g Grammar) column(c *schema.ColumnDefinition) string {
	sql := g.wrap(c.Name) + " " + g.typeOf(c)

	if c.StoredExpression != "" {
		sql += fmt.Sprintf(" generated always as (%s) stored", c.StoredExpression)
	}

	if c.IsNullable {
		sql += " null"
	} else {
		sql += " not null"
	}

	switch {
	case c.UseCurrentTimestamp:
		sql += " default CURRENT_TIMESTAMP"
	case c.HasDefault:
		sql += " default " + schema.DefaultLiteral(c.DefaultValue)
	}

	if c.IsAutoIncrement && isSerial(c.Type) {
		sql += " primary key"
	}

	return sql
}

func (g Grammar) typeOf(c *schema.ColumnDefinition) string {
	switch c.Type {
	case schema.TypeInteger:
		if c.IsAutoIncrement {
			return "serial"
		}
		return "integer"
	case schema.TypeBigInteger:
		if c.IsAutoIncrement {
			return "bigserial"
		}
		return "bigint"
	case schema.TypeSmallInteger:
		if c.IsAutoIncrement {
			return "smallserial"
		}
		return "smallint"
	case schema.TypeString:
		return fmt.Sprintf("varchar(%d)", c.Length)
	case schema.TypeChar:
		return fmt.Sprintf("char(%d)", c.Length)
	case schema.TypeText:
		return "text"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeDate:
		return "date"
	case schema.TypeDateTime, schema.TypeTimestamp:
		return "timestamp(0) without time zone"
	case schema.TypeDecimal:
		return fmt.Sprintf("decimal(%d, %d)", c.Precision, c.Scale)
	case schema.TypeFloat:
		return "real"
	case schema.TypeDouble:
		return "double precision"
	case schema.TypeJSON:
		return "json"
	case schema.TypeUUID:
		return "uuid"
	case schema.TypeULID:
		return "char(26)"
	case schema.TypeBinary:
		return "bytea"
	case schema.TypeEnum:
		return fmt.Sprintf("varchar(255) check (%s in (%s))", g.wrap(c.Name), schema.QuoteStrings(c.Allowed))
	default:
		return c.Type
	}
}

func isSerial(typ string) bool {
	return typ == schema.TypeInteger || typ == schema.TypeBigInteger || typ == schema.TypeSmallInteger
}

func (g Grammar) wrapTable(b *schema.Blueprint) string {
	if b.Schema() != "" {
		return g.wrap(b.Schema()) + "." + g.wrap(b.Table())
	}

	return g.wrap(b.Table())
}

func (g Grammar) wrapIndex(b *schema.Blueprint, name string) string {
	if b.Schema() != "" {
		return g.wrap(b.Schema()) + "." + g.wrap(name)
	}

	return g.wrap(name)
}

func (g Grammar) columnize(cols []string) string {
	return schema.Columnize(g.wrap, cols)
}

func (g Grammar) wrap(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
