package schema

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// DefaultStringLength is the length of string columns declared without one.
const DefaultStringLength = 255

// Morph key types accepted by SetDefaultMorphKeyType.
const (
	MorphKeyInt  = "int"
	MorphKeyUUID = "uuid"
	MorphKeyULID = "ulid"
)

// Builder inspects and alters the schema behind one connection. All reads
// hit the database, nothing is cached.
type Builder struct {
	conn          Connection
	grammar       Grammar
	processor     Processor
	defaultSchema DefaultSchema
	stringLength  int
	morphKeyType  string
}

// BuilderOption configures a Builder.
type BuilderOption func(b *Builder)

// WithDefaultSchema sets the policy used for references that name no schema.
func WithDefaultSchema(policy DefaultSchema) BuilderOption {
	return func(b *Builder) {
		b.defaultSchema = policy
	}
}

// NewBuilder binds a grammar and its processor to a connection.
func NewBuilder(conn Connection, grammar Grammar, processor Processor, opts ...BuilderOption) *Builder {
	b := &Builder{
		conn:          conn,
		grammar:       grammar,
		processor:     processor,
		defaultSchema: NoDefaultSchema,
		stringLength:  DefaultStringLength,
		morphKeyType:  MorphKeyInt,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Connection returns the connection the builder runs on.
func (b *Builder) Connection() Connection {
	return b.conn
}

// Grammar returns the dialect grammar of the builder.
func (b *Builder) Grammar() Grammar {
	return b.grammar
}

// SetDefaultStringLength changes the length used by Blueprint.String when none is given.
func (b *Builder) SetDefaultStringLength(n int) {
	b.stringLength = n
}

// SetDefaultMorphKeyType sets the key type used by Blueprint.Morphs.
func (b *Builder) SetDefaultMorphKeyType(t string) error {
	switch t {
	case MorphKeyInt, MorphKeyUUID, MorphKeyULID:
		b.morphKeyType = t
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedMorphKey, "got [%s]", t)
	}
}

// CurrentSchema returns the schema the connection currently works in.
func (b *Builder) CurrentSchema(ctx context.Context) (string, error) {
	q := b.grammar.CompileCurrentSchema()

	v, err := b.conn.Scalar(ctx, q.SQL, q.Bindings...)
	if err != nil {
		return "", err
	}

	return Row{"v": v}.String("v"), nil
}

// ResolveReference splits ref into schema and name, filling the schema
// according to policy when ref names none.
func (b *Builder) ResolveReference(ctx context.Context, ref string, policy DefaultSchema) (QualifiedReference, error) {
	qr, err := ParseReference(ref)
	if err != nil {
		return QualifiedReference{}, err
	}

	if qr.Schema != "" {
		return qr, nil
	}

	switch policy.kind {
	case explicitSchema:
		qr.Schema = policy.name
	case currentSchema:
		if qr.Schema, err = b.CurrentSchema(ctx); err != nil {
			return QualifiedReference{}, err
		}
	}

	return qr, nil
}

// resolveTable resolves ref with the builder policy and applies the table prefix.
func (b *Builder) resolveTable(ctx context.Context, ref string) (QualifiedReference, error) {
	qr, err := b.ResolveReference(ctx, ref, b.defaultSchema)
	if err != nil {
		return QualifiedReference{}, err
	}

	qr.Name = b.conn.TablePrefix() + qr.Name

	return qr, nil
}

// HasTable reports whether the table exists.
func (b *Builder) HasTable(ctx context.Context, ref string) (bool, error) {
	qr, err := b.resolveTable(ctx, ref)
	if err != nil {
		return false, err
	}

	if c, ok := b.grammar.(TableExistsCompiler); ok {
		return b.probe(ctx, c.CompileTableExists(qr.Schema, qr.Name))
	}

	schemas, err := b.schemaFilter(ctx, qr)
	if err != nil {
		return false, err
	}

	tables, err := b.Tables(ctx, schemas...)
	if err != nil {
		return false, err
	}

	for _, t := range tables {
		if strings.EqualFold(t.Name, qr.Name) {
			return true, nil
		}
	}

	return false, nil
}

// HasView reports whether the view exists.
func (b *Builder) HasView(ctx context.Context, ref string) (bool, error) {
	qr, err := b.resolveTable(ctx, ref)
	if err != nil {
		return false, err
	}

	if c, ok := b.grammar.(ViewExistsCompiler); ok {
		return b.probe(ctx, c.CompileViewExists(qr.Schema, qr.Name))
	}

	schemas, err := b.schemaFilter(ctx, qr)
	if err != nil {
		return false, err
	}

	views, err := b.Views(ctx, schemas...)
	if err != nil {
		return false, err
	}

	for _, v := range views {
		if strings.EqualFold(v.Name, qr.Name) {
			return true, nil
		}
	}

	return false, nil
}

func (b *Builder) probe(ctx context.Context, q Query) (bool, error) {
	v, err := b.conn.Scalar(ctx, q.SQL, q.Bindings...)
	if err != nil {
		return false, err
	}

	return Row{"v": v}.Bool("v"), nil
}

func (b *Builder) schemaFilter(ctx context.Context, qr QualifiedReference) ([]string, error) {
	if qr.Schema != "" {
		return []string{qr.Schema}, nil
	}

	current, err := b.CurrentSchema(ctx)
	if err != nil {
		return nil, err
	}

	return []string{current}, nil
}

// Tables lists the tables of the given schemas, or of every visible schema when none are given.
func (b *Builder) Tables(ctx context.Context, schemas ...string) ([]Table, error) {
	rows, err := b.selectRows(ctx, b.grammar.CompileTables(schemas))
	if err != nil {
		return nil, err
	}

	return b.processor.ProcessTables(rows), nil
}

// TableListing returns table names, schema qualified when qualified is true.
func (b *Builder) TableListing(ctx context.Context, qualified bool, schemas ...string) ([]string, error) {
	tables, err := b.Tables(ctx, schemas...)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tables))
	for _, t := range tables {
		if qualified {
			names = append(names, t.SchemaQualifiedName)
		} else {
			names = append(names, t.Name)
		}
	}

	return names, nil
}

// Views lists the views of the given schemas.
func (b *Builder) Views(ctx context.Context, schemas ...string) ([]View, error) {
	rows, err := b.selectRows(ctx, b.grammar.CompileViews(schemas))
	if err != nil {
		return nil, err
	}

	return b.processor.ProcessViews(rows), nil
}

// Types lists the user defined types of the given schemas.
func (b *Builder) Types(ctx context.Context, schemas ...string) ([]UserType, error) {
	rows, err := b.selectRows(ctx, b.grammar.CompileTypes(schemas))
	if err != nil {
		return nil, err
	}

	return b.processor.ProcessTypes(rows), nil
}

// Columns lists the columns of a table in ordinal order.
func (b *Builder) Columns(ctx context.Context, table string) ([]Column, error) {
	qr, err := b.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := b.selectRows(ctx, b.grammar.CompileColumns(qr.Schema, qr.Name))
	if err != nil {
		return nil, err
	}

	return b.processor.ProcessColumns(rows), nil
}

// ColumnListing returns the column names of a table.
func (b *Builder) ColumnListing(ctx context.Context, table string) ([]string, error) {
	columns, err := b.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name)
	}

	return names, nil
}

// Indexes lists the indexes of a table, the primary key included.
func (b *Builder) Indexes(ctx context.Context, table string) ([]Index, error) {
	qr, err := b.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := b.selectRows(ctx, b.grammar.CompileIndexes(qr.Schema, qr.Name))
	if err != nil {
		return nil, err
	}

	return b.processor.ProcessIndexes(rows), nil
}

// IndexListing returns the index names of a table.
func (b *Builder) IndexListing(ctx context.Context, table string) ([]string, error) {
	indexes, err := b.Indexes(ctx, table)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(indexes))
	for _, i := range indexes {
		names = append(names, i.Name)
	}

	return names, nil
}

// ForeignKeys lists the foreign keys of a table.
func (b *Builder) ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	qr, err := b.resolveTable(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := b.selectRows(ctx, b.grammar.CompileForeignKeys(qr.Schema, qr.Name))
	if err != nil {
		return nil, err
	}

	return b.processor.ProcessForeignKeys(rows), nil
}

// ColumnType returns the dialect type of a column when full is true and
// the bare type name otherwise.
func (b *Builder) ColumnType(ctx context.Context, table, column string, full bool) (string, error) {
	columns, err := b.Columns(ctx, table)
	if err != nil {
		return "", err
	}

	for _, c := range columns {
		if !strings.EqualFold(c.Name, column) {
			continue
		}

		if full {
			return c.Type, nil
		}

		return c.TypeName, nil
	}

	return "", errors.Wrapf(ErrColumnNotFound, "there is no column with name [%s] on table [%s]", column, table)
}

// HasColumn reports whether the table has the column, ignoring case.
func (b *Builder) HasColumn(ctx context.Context, table, column string) (bool, error) {
	return b.HasColumns(ctx, table, column)
}

// HasColumns reports whether the table has every one of the columns.
func (b *Builder) HasColumns(ctx context.Context, table string, columns ...string) (bool, error) {
	listing, err := b.ColumnListing(ctx, table)
	if err != nil {
		return false, err
	}

	existing := make(map[string]struct{}, len(listing))
	for _, c := range listing {
		existing[strings.ToLower(c)] = struct{}{}
	}

	for _, c := range columns {
		if _, ok := existing[strings.ToLower(c)]; !ok {
			return false, nil
		}
	}

	return true, nil
}

// IndexSpec selects an index either by name or by its ordered columns.
type IndexSpec struct {
	Name    string
	Columns []string
}

// IndexNamed selects an index by name.
func IndexNamed(name string) IndexSpec {
	return IndexSpec{Name: name}
}

// IndexOn selects an index by its ordered columns.
func IndexOn(columns ...string) IndexSpec {
	return IndexSpec{Columns: columns}
}

// Index kinds understood by HasIndex besides dialect index types.
const (
	IndexKindAny     = ""
	IndexKindPrimary = "primary"
	IndexKindUnique  = "unique"
)

// HasIndex reports whether the table has an index matching spec whose kind
// satisfies the filter: primary, unique, a dialect index type such as
// btree, or IndexKindAny.
func (b *Builder) HasIndex(ctx context.Context, table string, spec IndexSpec, kind string) (bool, error) {
	indexes, err := b.Indexes(ctx, table)
	if err != nil {
		return false, err
	}

	kind = strings.ToLower(kind)
	for _, idx := range indexes {
		if !spec.matches(idx) {
			continue
		}

		switch {
		case kind == IndexKindAny,
			kind == IndexKindPrimary && idx.Primary,
			kind == IndexKindUnique && idx.Unique,
			kind == idx.Type:
			return true, nil
		}
	}

	return false, nil
}

func (s IndexSpec) matches(idx Index) bool {
	if s.Name != "" {
		return strings.EqualFold(s.Name, idx.Name)
	}

	if len(s.Columns) != len(idx.Columns) {
		return false
	}

	for i := range s.Columns {
		if s.Columns[i] != idx.Columns[i] {
			return false
		}
	}

	return true
}

// WhenTableHasColumn alters the table with fn only when the column exists.
func (b *Builder) WhenTableHasColumn(ctx context.Context, table, column string, fn func(t *Blueprint)) error {
	return b.whenColumn(ctx, table, column, true, fn)
}

// WhenTableDoesntHaveColumn alters the table with fn only when the column is missing.
func (b *Builder) WhenTableDoesntHaveColumn(ctx context.Context, table, column string, fn func(t *Blueprint)) error {
	return b.whenColumn(ctx, table, column, false, fn)
}

func (b *Builder) whenColumn(ctx context.Context, table, column string, want bool, fn func(t *Blueprint)) error {
	has, err := b.HasColumn(ctx, table, column)
	if err != nil {
		return err
	}

	if has != want {
		return nil
	}

	return b.Table(ctx, table, fn)
}

// Create creates a new table described by fn.
func (b *Builder) Create(ctx context.Context, table string, fn func(t *Blueprint)) error {
	return b.build(ctx, table, func(bp *Blueprint) {
		bp.Create()
		fn(bp)
	})
}

// Table alters an existing table.
func (b *Builder) Table(ctx context.Context, table string, fn func(t *Blueprint)) error {
	return b.build(ctx, table, fn)
}

// Drop drops a table.
func (b *Builder) Drop(ctx context.Context, table string) error {
	return b.build(ctx, table, func(bp *Blueprint) { bp.Drop() })
}

// DropIfExists drops a table when it exists.
func (b *Builder) DropIfExists(ctx context.Context, table string) error {
	return b.build(ctx, table, func(bp *Blueprint) { bp.DropIfExists() })
}

// Rename renames a table.
func (b *Builder) Rename(ctx context.Context, from, to string) error {
	return b.build(ctx, from, func(bp *Blueprint) { bp.Rename(to) })
}

// DropColumns drops columns from a table.
func (b *Builder) DropColumns(ctx context.Context, table string, columns ...string) error {
	return b.build(ctx, table, func(bp *Blueprint) { bp.DropColumn(columns...) })
}

// DropAllTables drops every table of the current schema.
func (b *Builder) DropAllTables(ctx context.Context) error {
	dropper, ok := b.grammar.(AllTablesDropper)
	if !ok {
		return Unsupported("dropping all tables")
	}

	names, err := b.currentSchemaListing(ctx, func(schemas []string) ([]string, error) {
		return b.TableListing(ctx, false, schemas...)
	})
	if err != nil {
		return err
	}

	if len(names) == 0 {
		return nil
	}

	return b.run(ctx, dropper.CompileDropAllTables(names))
}

// DropAllViews drops every view of the current schema.
func (b *Builder) DropAllViews(ctx context.Context) error {
	dropper, ok := b.grammar.(AllViewsDropper)
	if !ok {
		return Unsupported("dropping all views")
	}

	names, err := b.currentSchemaListing(ctx, func(schemas []string) ([]string, error) {
		views, err := b.Views(ctx, schemas...)
		if err != nil {
			return nil, err
		}

		names := make([]string, 0, len(views))
		for _, v := range views {
			names = append(names, v.Name)
		}

		return names, nil
	})
	if err != nil {
		return err
	}

	if len(names) == 0 {
		return nil
	}

	return b.run(ctx, dropper.CompileDropAllViews(names))
}

// DropAllTypes drops every user defined type of the current schema.
func (b *Builder) DropAllTypes(ctx context.Context) error {
	dropper, ok := b.grammar.(AllTypesDropper)
	if !ok {
		return Unsupported("dropping all types")
	}

	current, err := b.CurrentSchema(ctx)
	if err != nil {
		return err
	}

	types, err := b.Types(ctx, current)
	if err != nil {
		return err
	}

	var droppable []UserType
	for _, t := range types {
		if !t.Implicit {
			droppable = append(droppable, t)
		}
	}

	if len(droppable) == 0 {
		return nil
	}

	return b.run(ctx, dropper.CompileDropAllTypes(droppable))
}

func (b *Builder) currentSchemaListing(ctx context.Context, list func(schemas []string) ([]string, error)) ([]string, error) {
	current, err := b.CurrentSchema(ctx)
	if err != nil {
		return nil, err
	}

	return list([]string{current})
}

// Build compiles every command of the blueprint and runs the statements in
// declaration order. The first failing statement stops the build;
// statements already executed are not undone.
func (b *Builder) Build(ctx context.Context, bp *Blueprint) error {
	queries, err := bp.ToSQL(b.grammar)
	if err != nil {
		return err
	}

	return b.run(ctx, queries)
}

func (b *Builder) build(ctx context.Context, table string, fn func(bp *Blueprint)) error {
	qr, err := b.ResolveReference(ctx, table, b.defaultSchema)
	if err != nil {
		return err
	}

	bp := b.newBlueprint(qr)
	fn(bp)

	return b.Build(ctx, bp)
}

func (b *Builder) newBlueprint(qr QualifiedReference) *Blueprint {
	return &Blueprint{
		schema:       qr.Schema,
		table:        qr.Name,
		prefix:       b.conn.TablePrefix(),
		stringLength: b.stringLength,
		morphKeyType: b.morphKeyType,
	}
}

func (b *Builder) run(ctx context.Context, queries []Query) error {
	for _, q := range queries {
		if err := b.conn.Statement(ctx, q.SQL, q.Bindings...); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) selectRows(ctx context.Context, q Query) ([]Row, error) {
	return b.conn.Select(ctx, q.SQL, q.Bindings...)
}
