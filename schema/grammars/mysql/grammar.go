// Package mysql is the MySQL and MariaDB dialect of the schema builder,
// introspecting through information_schema.
package mysql

import (
	"fmt"
	"strings"

	"github.com/denismitr/forge/schema"
)

// Grammar compiles MySQL statements.
type Grammar struct{}

var (
	_ schema.Grammar             = Grammar{}
	_ schema.TableExistsCompiler = Grammar{}
	_ schema.AllTablesDropper    = Grammar{}
	_ schema.AllViewsDropper     = Grammar{}
)

// New returns the MySQL grammar.
func New() Grammar {
	return Grammar{}
}

func (g Grammar) CompileCurrentSchema() schema.Query {
	return schema.Query{SQL: "select schema()"}
}

func (g Grammar) CompileTableExists(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: "select exists (select 1 from information_schema.tables where table_schema = coalesce(?, schema()) " +
			"and table_name = ? and table_type in ('BASE TABLE', 'SYSTEM VERSIONED')) as `exists`",
		Bindings: []interface{}{schema.NullableString(schemaName), table},
	}
}

func (g Grammar) CompileTables(schemas []string) schema.Query {
	filter, bindings := g.schemaFilter("table_schema", schemas)

	return schema.Query{
		SQL: "select table_name as `name`, table_schema as `schema`, data_length + index_length as `size`, " +
			"table_comment as `comment`, table_collation as `collation`, engine as `engine` " +
			"from information_schema.tables where table_type in ('BASE TABLE', 'SYSTEM VERSIONED') and " +
			filter + " order by table_schema, table_name",
		Bindings: bindings,
	}
}

func (g Grammar) CompileViews(schemas []string) schema.Query {
	filter, bindings := g.schemaFilter("table_schema", schemas)

	return schema.Query{
		SQL: "select table_name as `name`, table_schema as `schema`, view_definition as `definition` " +
			"from information_schema.views where " + filter + " order by table_schema, table_name",
		Bindings: bindings,
	}
}

// CompileTypes yields an empty result, MySQL has no user defined types.
func (g Grammar) CompileTypes([]string) schema.Query {
	return schema.Query{
		SQL: "select null as `name`, null as `schema`, null as `type`, null as `category`, 0 as `implicit` from dual where 1 = 0",
	}
}

func (g Grammar) schemaFilter(column string, schemas []string) (string, []interface{}) {
	if len(schemas) == 0 {
		return column + " not in ('information_schema', 'mysql', 'ndbinfo', 'performance_schema', 'sys')", nil
	}

	return fmt.Sprintf("%s in (%s)", column, schema.Placeholders(len(schemas))), schema.Strings(schemas)
}

func (g Grammar) CompileColumns(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: "select column_name as `name`, data_type as `type_name`, column_type as `type`, " +
			"collation_name as `collation`, is_nullable as `nullable`, column_default as `default`, " +
			"column_comment as `comment`, generation_expression as `expression`, extra as `extra` " +
			"from information_schema.columns where table_schema = coalesce(?, schema()) and table_name = ? " +
			"order by ordinal_position asc",
		Bindings: []interface{}{schema.NullableString(schemaName), table},
	}
}

func (g Grammar) CompileIndexes(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: "select index_name as `name`, group_concat(column_name order by seq_in_index) as `columns`, " +
			"index_type as `type`, not non_unique as `unique` " +
			"from information_schema.statistics where table_schema = coalesce(?, schema()) and table_name = ? " +
			"group by index_name, index_type, non_unique",
		Bindings: []interface{}{schema.NullableString(schemaName), table},
	}
}

func (g Grammar) CompileForeignKeys(schemaName, table string) schema.Query {
	return schema.Query{
		SQL: "select kc.constraint_name as `name`, " +
			"group_concat(kc.column_name order by kc.ordinal_position) as `columns`, " +
			"kc.referenced_table_schema as `foreign_schema`, kc.referenced_table_name as `foreign_table`, " +
			"group_concat(kc.referenced_column_name order by kc.ordinal_position) as `foreign_columns`, " +
			"rc.update_rule as `on_update`, rc.delete_rule as `on_delete` " +
			"from information_schema.key_column_usage kc join information_schema.referential_constraints rc " +
			"on kc.constraint_schema = rc.constraint_schema and kc.constraint_name = rc.constraint_name " +
			"where kc.table_schema = coalesce(?, schema()) and kc.table_name = ? and kc.referenced_table_name is not null " +
			"group by kc.constraint_name, kc.referenced_table_schema, kc.referenced_table_name, rc.update_rule, rc.delete_rule",
		Bindings: []interface{}{schema.NullableString(schemaName), table},
	}
}

func (g Grammar) CompileDropAllTables(tables []string) []schema.Query {
	return []schema.Query{
		{SQL: "set foreign_key_checks = 0"},
		{SQL: "drop table " + g.columnize(tables)},
		{SQL: "set foreign_key_checks = 1"},
	}
}

func (g Grammar) CompileDropAllViews(views []string) []schema.Query {
	return []schema.Query{{SQL: "drop view " + g.columnize(views)}}
}

func (g Grammar) Compile(b *schema.Blueprint, c *schema.Command) ([]schema.Query, error) {
	table := g.wrapTable(b)

	switch c.Name {
	case schema.CommandCreate:
		defs := make([]string, 0, len(b.Columns()))
		for _, col := range b.Columns() {
			defs = append(defs, g.column(col))
		}
		return g.one("create table %s (%s)", table, strings.Join(defs, ", ")), nil
	case schema.CommandAdd:
		return g.one("alter table %s add %s", table, g.column(c.Column)), nil
	case schema.CommandChange:
		return g.one("alter table %s modify %s", table, g.column(c.Column)), nil
	case schema.CommandDropColumn:
		drops := make([]string, 0, len(c.Columns))
		for _, col := range c.Columns {
			drops = append(drops, "drop "+g.wrap(col))
		}
		return g.one("alter table %s %s", table, strings.Join(drops, ", ")), nil
	case schema.CommandRenameColumn:
		return g.one("alter table %s rename column %s to %s", table, g.wrap(c.From), g.wrap(c.To)), nil
	case schema.CommandPrimary:
		return g.one("alter table %s add primary key %s(%s)", table, g.algorithm(c), g.columnize(c.Columns)), nil
	case schema.CommandUnique:
		return g.one("alter table %s add unique %s%s(%s)", table, g.wrap(c.Index), g.indexAlgorithm(c), g.columnize(c.Columns)), nil
	case schema.CommandIndex:
		return g.one("alter table %s add index %s%s(%s)", table, g.wrap(c.Index), g.indexAlgorithm(c), g.columnize(c.Columns)), nil
	case schema.CommandDropPrimary:
		return g.one("alter table %s drop primary key", table), nil
	case schema.CommandDropUnique, schema.CommandDropIndex:
		return g.one("alter table %s drop index %s", table, g.wrap(c.Index)), nil
	case schema.CommandForeign:
		return []schema.Query{{SQL: g.foreign(b, c)}}, nil
	case schema.CommandDropForeign:
		return g.one("alter table %s drop foreign key %s", table, g.wrap(c.Index)), nil
	case schema.CommandRename:
		return g.one("rename table %s to %s", table, g.wrap(b.Prefix()+c.To)), nil
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

func (g Grammar) algorithm(c *schema.Command) string {
	if c.Algorithm == "" {
		return ""
	}

	return "using " + c.Algorithm + " "
}

func (g Grammar) indexAlgorithm(c *schema.Command) string {
	if c.Algorithm == "" {
		return ""
	}

	return " using " + c.Algorithm
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

	if c.IsUnsigned && isNumeric(c.Type) {
		sql += " unsigned"
	}

	switch {
	case c.VirtualExpression != "":
		sql += fmt.Sprintf(" as (%s)", c.VirtualExpression)
	case c.StoredExpression != "":
		sql += fmt.Sprintf(" as (%s) stored", c.StoredExpression)
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

	if c.IsAutoIncrement && isNumeric(c.Type) {
		sql += " auto_increment primary key"
	}

	if c.CommentText != "" {
		sql += " comment " + schema.QuoteString(c.CommentText)
	}

	return sql
}

func (g Grammar) typeOf(c *schema.ColumnDefinition) string {
	switch c.Type {
	case schema.TypeInteger:
		return "int"
	case schema.TypeBigInteger:
		return "bigint"
	case schema.TypeSmallInteger:
		return "smallint"
	case schema.TypeString:
		return fmt.Sprintf("varchar(%d)", c.Length)
	case schema.TypeChar:
		return fmt.Sprintf("char(%d)", c.Length)
	case schema.TypeText:
		return "text"
	case schema.TypeBoolean:
		return "tinyint(1)"
	case schema.TypeDate:
		return "date"
	case schema.TypeDateTime:
		return "datetime"
	case schema.TypeTimestamp:
		return "timestamp"
	case schema.TypeDecimal:
		return fmt.Sprintf("decimal(%d, %d)", c.Precision, c.Scale)
	case schema.TypeFloat:
		return "float"
	case schema.TypeDouble:
		return "double"
	case schema.TypeJSON:
		return "json"
	case schema.TypeUUID:
		return "char(36)"
	case schema.TypeULID:
		return "char(26)"
	case schema.TypeBinary:
		return "blob"
	case schema.TypeEnum:
		return fmt.Sprintf("enum(%s)", schema.QuoteStrings(c.Allowed))
	default:
		return c.Type
	}
}

func isNumeric(typ string) bool {
	switch typ {
	case schema.TypeInteger, schema.TypeBigInteger, schema.TypeSmallInteger,
		schema.TypeDecimal, schema.TypeFloat, schema.TypeDouble:
		return true
	}

	return false
}

func (g Grammar) wrapTable(b *schema.Blueprint) string {
	if b.Schema() != "" {
		return g.wrap(b.Schema()) + "." + g.wrap(b.Table())
	}

	return g.wrap(b.Table())
}

func (g Grammar) columnize(cols []string) string {
	return schema.Columnize(g.wrap, cols)
}

func (g Grammar) wrap(v string) string {
	return "`" + strings.ReplaceAll(v, "`", "``") + "`"
}
