package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// Blueprint command names.
const (
	CommandCreate       = "create"
	CommandAdd          = "add"
	CommandChange       = "change"
	CommandDropColumn   = "dropColumn"
	CommandRenameColumn = "renameColumn"
	CommandPrimary      = "primary"
	CommandUnique       = "unique"
	CommandIndex        = "index"
	CommandDropPrimary  = "dropPrimary"
	CommandDropUnique   = "dropUnique"
	CommandDropIndex    = "dropIndex"
	CommandForeign      = "foreign"
	CommandDropForeign  = "dropForeign"
	CommandRename       = "rename"
	CommandDrop         = "drop"
	CommandDropIfExists = "dropIfExists"
)

// Abstract column types, mapped to dialect types by each grammar.
const (
	TypeInteger      = "integer"
	TypeBigInteger   = "bigInteger"
	TypeSmallInteger = "smallInteger"
	TypeString       = "string"
	TypeChar         = "char"
	TypeText         = "text"
	TypeBoolean      = "boolean"
	TypeDate         = "date"
	TypeDateTime     = "dateTime"
	TypeTimestamp    = "timestamp"
	TypeDecimal      = "decimal"
	TypeFloat        = "float"
	TypeDouble       = "double"
	TypeJSON         = "json"
	TypeUUID         = "uuid"
	TypeULID         = "ulid"
	TypeBinary       = "binary"
	TypeEnum         = "enum"
)

// Expression is raw SQL used verbatim, e.g. as a column default.
type Expression string

// Raw wraps sql so that grammars do not quote it.
func Raw(sql string) Expression {
	return Expression(sql)
}

// Command is one accumulated blueprint operation.
type Command struct {
	Name      string
	Index     string
	Columns   []string
	Column    *ColumnDefinition
	From      string
	To        string
	Algorithm string
	Foreign   *ForeignKeyDefinition
}

// Named overrides the generated index name.
func (c *Command) Named(name string) *Command {
	c.Index = name
	return c
}

// Using sets the index algorithm, e.g. btree or hash, where the dialect supports it.
func (c *Command) Using(algorithm string) *Command {
	c.Algorithm = algorithm
	return c
}

// ColumnDefinition describes a column to add or change.
type ColumnDefinition struct {
	Name      string
	Type      string
	Length    int
	Precision int
	Scale     int
	Allowed   []string

	IsNullable          bool
	DefaultValue        interface{}
	HasDefault          bool
	IsUnsigned          bool
	IsAutoIncrement     bool
	CommentText         string
	IsPrimary           bool
	IsUnique            bool
	IsIndex             bool
	IsChange            bool
	UseCurrentTimestamp bool
	VirtualExpression   string
	StoredExpression    string
}

func (c *ColumnDefinition) Nullable() *ColumnDefinition {
	c.IsNullable = true
	return c
}

func (c *ColumnDefinition) Default(v interface{}) *ColumnDefinition {
	c.DefaultValue = v
	c.HasDefault = true
	return c
}

func (c *ColumnDefinition) Unsigned() *ColumnDefinition {
	c.IsUnsigned = true
	return c
}

func (c *ColumnDefinition) AutoIncrement() *ColumnDefinition {
	c.IsAutoIncrement = true
	return c
}

func (c *ColumnDefinition) Comment(text string) *ColumnDefinition {
	c.CommentText = text
	return c
}

func (c *ColumnDefinition) Primary() *ColumnDefinition {
	c.IsPrimary = true
	return c
}

func (c *ColumnDefinition) Unique() *ColumnDefinition {
	c.IsUnique = true
	return c
}

func (c *ColumnDefinition) Index() *ColumnDefinition {
	c.IsIndex = true
	return c
}

// Change marks the column as an existing column to modify.
func (c *ColumnDefinition) Change() *ColumnDefinition {
	c.IsChange = true
	return c
}

// UseCurrent defaults a timestamp column to the current time.
func (c *ColumnDefinition) UseCurrent() *ColumnDefinition {
	c.UseCurrentTimestamp = true
	return c
}

// VirtualAs makes the column a virtual generated column.
func (c *ColumnDefinition) VirtualAs(expression string) *ColumnDefinition {
	c.VirtualExpression = expression
	return c
}

// StoredAs makes the column a stored generated column.
func (c *ColumnDefinition) StoredAs(expression string) *ColumnDefinition {
	c.StoredExpression = expression
	return c
}

// ForeignKeyDefinition describes a foreign key constraint.
type ForeignKeyDefinition struct {
	Columns           []string
	ReferencedColumns []string
	ReferencedTable   string
	DeleteAction      string
	UpdateAction      string

	cmd *Command
}

// References sets the referenced columns.
func (f *ForeignKeyDefinition) References(columns ...string) *ForeignKeyDefinition {
	f.ReferencedColumns = columns
	return f
}

// On sets the referenced table. The connection table prefix is applied.
func (f *ForeignKeyDefinition) On(table string) *ForeignKeyDefinition {
	f.ReferencedTable = table
	return f
}

func (f *ForeignKeyDefinition) OnDelete(action string) *ForeignKeyDefinition {
	f.DeleteAction = action
	return f
}

func (f *ForeignKeyDefinition) OnUpdate(action string) *ForeignKeyDefinition {
	f.UpdateAction = action
	return f
}

func (f *ForeignKeyDefinition) CascadeOnDelete() *ForeignKeyDefinition {
	return f.OnDelete("cascade")
}

// Named overrides the generated constraint name.
func (f *ForeignKeyDefinition) Named(name string) *ForeignKeyDefinition {
	f.cmd.Index = name
	return f
}

// Blueprint accumulates the operations on one table until it is built.
type Blueprint struct {
	schema       string
	table        string
	prefix       string
	stringLength int
	morphKeyType string

	columns  []*ColumnDefinition
	commands []*Command
}

// NewBlueprint creates a standalone blueprint, mostly useful to inspect
// compiled SQL. Builder.Create and Builder.Table create blueprints bound
// to the connection settings.
func NewBlueprint(table, prefix string) *Blueprint {
	qr, _ := ParseReference(table)

	return &Blueprint{
		schema:       qr.Schema,
		table:        qr.Name,
		prefix:       prefix,
		stringLength: DefaultStringLength,
		morphKeyType: MorphKeyInt,
	}
}

// Table returns the prefixed table name.
func (b *Blueprint) Table() string {
	return b.prefix + b.table
}

// Schema returns the schema the table lives in, empty for the dialect default.
func (b *Blueprint) Schema() string {
	return b.schema
}

// Prefix returns the connection table prefix.
func (b *Blueprint) Prefix() string {
	return b.prefix
}

// Columns returns every column declared on the blueprint.
func (b *Blueprint) Columns() []*ColumnDefinition {
	return b.columns
}

// Creating reports whether the blueprint creates its table.
func (b *Blueprint) Creating() bool {
	for _, c := range b.commands {
		if c.Name == CommandCreate {
			return true
		}
	}

	return false
}

// Commands returns the commands in the order they compile: implied column
// additions and changes first, declared commands next, then the indexes
// declared through column modifiers.
func (b *Blueprint) Commands() []*Command {
	var cmds []*Command

	if !b.Creating() {
		for _, col := range b.columns {
			name := CommandAdd
			if col.IsChange {
				name = CommandChange
			}

			cmds = append(cmds, &Command{Name: name, Column: col})
		}
	}

	cmds = append(cmds, b.commands...)

	for _, col := range b.columns {
		switch {
		case col.IsPrimary && !col.IsAutoIncrement:
			cmds = append(cmds, b.indexCommand(CommandPrimary, []string{col.Name}))
		case col.IsUnique:
			cmds = append(cmds, b.indexCommand(CommandUnique, []string{col.Name}))
		case col.IsIndex:
			cmds = append(cmds, b.indexCommand(CommandIndex, []string{col.Name}))
		}
	}

	return cmds
}

// ToSQL compiles every command with g without executing anything.
func (b *Blueprint) ToSQL(g Grammar) ([]Query, error) {
	var queries []Query
	for _, c := range b.Commands() {
		qs, err := g.Compile(b, c)
		if err != nil {
			return nil, errors.Wrapf(err, "could not compile [%s] on table [%s]", c.Name, b.Table())
		}

		queries = append(queries, qs...)
	}

	return queries, nil
}

func (b *Blueprint) addCommand(c *Command) *Command {
	b.commands = append(b.commands, c)
	return c
}

func (b *Blueprint) indexCommand(name string, columns []string) *Command {
	return &Command{Name: name, Columns: columns, Index: b.indexName(name, columns)}
}

func (b *Blueprint) indexName(kind string, columns []string) string {
	name := strings.ToLower(b.prefix + b.table + "_" + strings.Join(columns, "_") + "_" + kind)
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

// Create marks the table to be created.
func (b *Blueprint) Create() {
	b.addCommand(&Command{Name: CommandCreate})
}

// Drop drops the table.
func (b *Blueprint) Drop() {
	b.addCommand(&Command{Name: CommandDrop})
}

// DropIfExists drops the table when it exists.
func (b *Blueprint) DropIfExists() {
	b.addCommand(&Command{Name: CommandDropIfExists})
}

// Rename renames the table.
func (b *Blueprint) Rename(to string) {
	b.addCommand(&Command{Name: CommandRename, To: to})
}

// DropColumn drops one or more columns.
func (b *Blueprint) DropColumn(columns ...string) *Command {
	return b.addCommand(&Command{Name: CommandDropColumn, Columns: columns})
}

// RenameColumn renames a column.
func (b *Blueprint) RenameColumn(from, to string) *Command {
	return b.addCommand(&Command{Name: CommandRenameColumn, From: from, To: to})
}

// Primary declares a primary key.
func (b *Blueprint) Primary(columns ...string) *Command {
	return b.addCommand(b.indexCommand(CommandPrimary, columns))
}

// Unique declares a unique index.
func (b *Blueprint) Unique(columns ...string) *Command {
	return b.addCommand(b.indexCommand(CommandUnique, columns))
}

// Index declares a plain index.
func (b *Blueprint) Index(columns ...string) *Command {
	return b.addCommand(b.indexCommand(CommandIndex, columns))
}

// DropPrimary drops the primary key. An empty name lets the dialect pick its default.
func (b *Blueprint) DropPrimary(name string) *Command {
	return b.addCommand(&Command{Name: CommandDropPrimary, Index: name})
}

// DropUnique drops a unique index by name.
func (b *Blueprint) DropUnique(name string) *Command {
	return b.addCommand(&Command{Name: CommandDropUnique, Index: name})
}

// DropIndex drops a plain index by name.
func (b *Blueprint) DropIndex(name string) *Command {
	return b.addCommand(&Command{Name: CommandDropIndex, Index: name})
}

// DropIndexOn drops the plain index generated for columns.
func (b *Blueprint) DropIndexOn(columns ...string) *Command {
	return b.DropIndex(b.indexName(CommandIndex, columns))
}

// Foreign declares a foreign key on columns.
func (b *Blueprint) Foreign(columns ...string) *ForeignKeyDefinition {
	cmd := &Command{Name: CommandForeign, Columns: columns, Index: b.indexName(CommandForeign, columns)}
	fk := &ForeignKeyDefinition{Columns: columns, cmd: cmd}
	cmd.Foreign = fk
	b.addCommand(cmd)

	return fk
}

// DropForeign drops a foreign key constraint by name.
func (b *Blueprint) DropForeign(name string) *Command {
	return b.addCommand(&Command{Name: CommandDropForeign, Index: name})
}

func (b *Blueprint) addColumn(typ, name string) *ColumnDefinition {
	col := &ColumnDefinition{Name: name, Type: typ}
	b.columns = append(b.columns, col)

	return col
}

// Increments adds an auto incrementing unsigned integer primary key.
func (b *Blueprint) Increments(name string) *ColumnDefinition {
	return b.addColumn(TypeInteger, name).Unsigned().AutoIncrement()
}

// BigIncrements adds an auto incrementing unsigned big integer primary key.
func (b *Blueprint) BigIncrements(name string) *ColumnDefinition {
	return b.addColumn(TypeBigInteger, name).Unsigned().AutoIncrement()
}

// ID adds the conventional "id" big increments column.
func (b *Blueprint) ID() *ColumnDefinition {
	return b.BigIncrements("id")
}

func (b *Blueprint) Integer(name string) *ColumnDefinition {
	return b.addColumn(TypeInteger, name)
}

func (b *Blueprint) BigInteger(name string) *ColumnDefinition {
	return b.addColumn(TypeBigInteger, name)
}

func (b *Blueprint) UnsignedBigInteger(name string) *ColumnDefinition {
	return b.addColumn(TypeBigInteger, name).Unsigned()
}

func (b *Blueprint) SmallInteger(name string) *ColumnDefinition {
	return b.addColumn(TypeSmallInteger, name)
}

// String adds a varchar column. A zero length uses the builder default.
func (b *Blueprint) String(name string, length int) *ColumnDefinition {
	if length <= 0 {
		length = b.stringLength
	}

	col := b.addColumn(TypeString, name)
	col.Length = length

	return col
}

func (b *Blueprint) Char(name string, length int) *ColumnDefinition {
	if length <= 0 {
		length = b.stringLength
	}

	col := b.addColumn(TypeChar, name)
	col.Length = length

	return col
}

func (b *Blueprint) Text(name string) *ColumnDefinition {
	return b.addColumn(TypeText, name)
}

func (b *Blueprint) Boolean(name string) *ColumnDefinition {
	return b.addColumn(TypeBoolean, name)
}

func (b *Blueprint) Date(name string) *ColumnDefinition {
	return b.addColumn(TypeDate, name)
}

func (b *Blueprint) DateTime(name string) *ColumnDefinition {
	return b.addColumn(TypeDateTime, name)
}

func (b *Blueprint) Timestamp(name string) *ColumnDefinition {
	return b.addColumn(TypeTimestamp, name)
}

// Timestamps adds nullable created_at and updated_at columns.
func (b *Blueprint) Timestamps() {
	b.Timestamp("created_at").Nullable()
	b.Timestamp("updated_at").Nullable()
}

func (b *Blueprint) Decimal(name string, precision, scale int) *ColumnDefinition {
	col := b.addColumn(TypeDecimal, name)
	col.Precision, col.Scale = precision, scale

	return col
}

func (b *Blueprint) Float(name string) *ColumnDefinition {
	return b.addColumn(TypeFloat, name)
}

func (b *Blueprint) Double(name string) *ColumnDefinition {
	return b.addColumn(TypeDouble, name)
}

func (b *Blueprint) JSON(name string) *ColumnDefinition {
	return b.addColumn(TypeJSON, name)
}

func (b *Blueprint) UUID(name string) *ColumnDefinition {
	return b.addColumn(TypeUUID, name)
}

func (b *Blueprint) ULID(name string) *ColumnDefinition {
	return b.addColumn(TypeULID, name)
}

func (b *Blueprint) Binary(name string) *ColumnDefinition {
	return b.addColumn(TypeBinary, name)
}

// Enum adds a column restricted to the allowed values.
func (b *Blueprint) Enum(name string, allowed ...string) *ColumnDefinition {
	col := b.addColumn(TypeEnum, name)
	col.Allowed = allowed

	return col
}

// Morphs adds the "<name>_type" and "<name>_id" columns of a polymorphic
// relation with an index over both. The id column follows the builder morph key type.
func (b *Blueprint) Morphs(name string) {
	b.String(name+"_type", 0)

	switch b.morphKeyType {
	case MorphKeyUUID:
		b.UUID(name + "_id")
	case MorphKeyULID:
		b.ULID(name + "_id")
	default:
		b.UnsignedBigInteger(name + "_id")
	}

	b.Index(name+"_type", name+"_id")
}
