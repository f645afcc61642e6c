// Package sqlite is the SQLite dialect of the schema builder. Introspection
// goes through sqlite_master and the table valued pragma functions.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/denismitr/forge/schema"
)

const mainSchema = "main"

// Grammar compiles SQLite statements.
type Grammar struct{}

var (
	_ schema.Grammar             = Grammar{}
	_ schema.TableExistsCompiler = Grammar{}
	_ schema.ViewExistsCompiler  = Grammar{}
	_ schema.AllTablesDropper    = Grammar{}
	_ schema.AllViewsDropper     = Grammar{}
)

// New returns the SQLite grammar.
func New() Grammar {
	return Grammar{}
}

func (g Grammar) CompileCurrentSchema() schema.Query {
	return schema.Query{SQL: "select 'main'"}
}

func (g Grammar) CompileTableExists(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: fmt.Sprintf(
			`select exists (select 1 from %s.sqlite_master where name = ? and type = 'table') as "exists"`,
			g.wrap(orMain(schemaName)),
		),
		Bindings: []interface{}{table},
	}
}

func (g Grammar) CompileViewExists(schemaName, view string) schema.Query {
	return schema.Query{
		SQL: fmt.Sprintf(
			`select exists (select 1 from %s.sqlite_master where name = ? and type = 'view') as "exists"`,
			g.wrap(orMain(schemaName)),
		),
		Bindings: []interface{}{view},
	}
}

func (g Grammar) CompileTables(schemas []string) schema.Query {
	return g.masterListing(schemas, "table",
		`name, %s as "schema", null as "size", null as "comment", null as "collation", null as "engine"`,
		`and name not like 'sqlite\_%' escape '\'`,
	)
}

func (g Grammar) CompileViews(schemas []string) schema.Query {
	return g.masterListing(schemas, "view", `name, %s as "schema", sql as "definition"`, "")
}

func (g Grammar) masterListing(schemas []string, typ, columns, filter string) schema.Query {
	if len(schemas) == 0 {
		schemas = []string{mainSchema}
	}

	selects := make([]string, 0, len(schemas))
	for _, s := range schemas {
		selects = append(selects, strings.TrimSpace(fmt.Sprintf(
			"select %s from %s.sqlite_master where type = %s %s",
			fmt.Sprintf(columns, schema.QuoteString(s)), g.wrap(s), schema.QuoteString(typ), filter,
		)))
	}

	return schema.Query{SQL: strings.Join(selects, " union all ") + " order by name"}
}

// CompileTypes yields an empty result, SQLite has no user defined types.
func (g Grammar) CompileTypes([]string) schema.Query {
	return schema.Query{
		SQL: `select null as "name", null as "schema", null as "type", null as "category", 0 as "implicit" where 0`,
	}
}

func (g Grammar) CompileColumns(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: `select name, type, not "notnull" as "nullable", dflt_value as "default", pk as "primary", hidden as "extra" ` +
			`from pragma_table_xinfo(?, ?) order by cid asc`,
		Bindings: []interface{}{table, orMain(schemaName)},
	}
}

func (g Grammar) CompileIndexes(schemaName, table string) schema.Query {
	s := orMain(schemaName)

	return schema.Query{
		SQL: `select 'primary' as name, group_concat(col) as columns, 1 as "unique", 1 as "primary" ` +
			`from (select name as col from pragma_table_info(?, ?) where pk > 0 order by pk, cid) group by name ` +
			`union select name, group_concat(col) as columns, "unique", 0 as "primary" ` +
			`from (select il.*, ii.name as col from pragma_index_list(?, ?) il, pragma_index_info(il.name, ?) ii ` +
			`where il.origin != 'pk' order by il.seq, ii.seqno) ` +
			`group by name, "unique"`,
		Bindings: []interface{}{table, s, table, s, s},
	}
}

func (g Grammar) CompileForeignKeys(schemaName, table string) schema.Query {
	s := orMain(schemaName)

	return schema.Query{
		SQL: `select group_concat("from") as columns, ? as foreign_schema, "table" as foreign_table, ` +
			`group_concat("to") as foreign_columns, on_update, on_delete ` +
			`from (select * from pragma_foreign_key_list(?, ?) order by id desc, seq) ` +
			`group by id, "table", on_update, on_delete`,
		Bindings: []interface{}{s, table, s},
	}
}

// CompileDropAllTables drops tables with foreign key enforcement switched
// off for the duration; enforcement is switched back on afterwards.
func (g Grammar) CompileDropAllTables(tables []string) []schema.Query {
	queries := []schema.Query{{SQL: "pragma foreign_keys = off"}}
	for _, t := range tables {
		queries = append(queries, schema.Query{SQL: "drop table if exists " + g.wrap(t)})
	}

	return append(queries, schema.Query{SQL: "pragma foreign_keys = on"})
}

func (g Grammar) CompileDropAllViews(views []string) []schema.Query {
	queries := make([]schema.Query, 0, len(views))
	for _, v := range views {
		queries = append(queries, schema.Query{SQL: "drop view if exists " + g.wrap(v)})
	}

	return queries
}

func (g Grammar) Compile(b *schema.Blueprint, c *schema.Command) ([]schema.Query, error) {
	table := g.wrapTable(b)

	switch c.Name {
	case schema.CommandCreate:
		return g.one("create table %s (%s%s%s)", table,
			strings.Join(g.columns(b.Columns()), ", "), g.foreignKeys(b), g.primaryKey(b)), nil
	case schema.CommandAdd:
		return g.one("alter table %s add column %s", table, g.column(c.Column)), nil
	case schema.CommandChange:
		return nil, schema.Unsupported("modifying columns")
	case schema.CommandDropColumn:
		queries := make([]schema.Query, 0, len(c.Columns))
		for _, col := range c.Columns {
			queries = append(queries, schema.Query{SQL: fmt.Sprintf("alter table %s drop column %s", table, g.wrap(col))})
		}
		return queries, nil
	case schema.CommandRenameColumn:
		return g.one("alter table %s rename column %s to %s", table, g.wrap(c.From), g.wrap(c.To)), nil
	case schema.CommandPrimary:
		if b.Creating() {
			return nil, nil
		}
		return nil, schema.Unsupported("adding a primary key to an existing table")
	case schema.CommandUnique:
		return g.one("create unique index %s on %s (%s)", g.indexName(b, c.Index), g.wrap(b.Table()), g.columnize(c.Columns)), nil
	case schema.CommandIndex:
		return g.one("create index %s on %s (%s)", g.indexName(b, c.Index), g.wrap(b.Table()), g.columnize(c.Columns)), nil
	case schema.CommandDropIndex, schema.CommandDropUnique:
		return g.one("drop index %s", g.indexName(b, c.Index)), nil
	case schema.CommandDropPrimary:
		return nil, schema.Unsupported("dropping primary keys")
	case schema.CommandForeign:
		if b.Creating() {
			return nil, nil
		}
		return nil, schema.Unsupported("adding foreign keys to an existing table")
	case schema.CommandDropForeign:
		return nil, schema.Unsupported("dropping foreign keys")
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

func (g Grammar) primaryKey(b *schema.Blueprint) string {
	for _, c := range b.Commands() {
		if c.Name == schema.CommandPrimary {
			return fmt.Sprintf(", primary key (%s)", g.columnize(c.Columns))
		}
	}

	return ""
}

func (g Grammar) foreignKeys(b *schema.Blueprint) string {
	var sql strings.Builder
	for _, c := range b.Commands() {
		if c.Name != schema.CommandForeign {
			continue
		}

		fk := c.Foreign
		sql.WriteString(fmt.Sprintf(", foreign key(%s) references %s(%s)",
			g.columnize(fk.Columns), g.wrap(b.Prefix()+fk.ReferencedTable), g.columnize(fk.ReferencedColumns)))

		if fk.DeleteAction != "" {
			sql.WriteString(" on delete " + fk.DeleteAction)
		}

		if fk.UpdateAction != "" {
			sql.WriteString(" on update " + fk.UpdateAction)
		}
	}

	return sql.String()
}

func (g Grammar) columns(cols []*schema.ColumnDefinition) []string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, g.column(c))
	}

	return defs
}

func (g Grammar) column(c *schema.ColumnDefinition) string {
	sql := g.wrap(c.Name) + " " + g.typeOf(c)

	if c.IsAutoIncrement && isSerial(c.Type) {
		sql += " primary key autoincrement"
	}

	if !c.IsNullable {
		sql += " not null"
	}

	switch {
	case c.UseCurrentTimestamp:
		sql += " default CURRENT_TIMESTAMP"
	case c.HasDefault:
		sql += " default " + schema.DefaultLiteral(c.DefaultValue)
	}

	switch {
	case c.VirtualExpression != "":
		sql += fmt.Sprintf(" as (%s)", c.VirtualExpression)
	case c.StoredExpression != "":
		sql += fmt.Sprintf(" as (%s) stored", c.StoredExpression)
	}

	return sql
}

func (g Grammar) typeOf(c *schema.ColumnDefinition) string {
	switch c.Type {
	case schema.TypeInteger, schema.TypeBigInteger, schema.TypeSmallInteger:
		return "integer"
	case schema.TypeString, schema.TypeChar, schema.TypeUUID, schema.TypeULID:
		return "varchar"
	case schema.TypeText, schema.TypeJSON:
		return "text"
	case schema.TypeBoolean:
		return "tinyint(1)"
	case schema.TypeDate:
		return "date"
	case schema.TypeDateTime, schema.TypeTimestamp:
		return "datetime"
	case schema.TypeDecimal:
		return "numeric"
	case schema.TypeFloat:
		return "float"
	case schema.TypeDouble:
		return "double"
	case schema.TypeBinary:
		return "blob"
	case schema.TypeEnum:
		return fmt.Sprintf("varchar check (%s in (%s))", g.wrap(c.Name), schema.QuoteStrings(c.Allowed))
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

// indexName places the index in the schema of its table.
func (g Grammar) indexName(b *schema.Blueprint, name string) string {
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

func orMain(s string) string {
	if s == "" {
		return mainSchema
	}

	return s
}
