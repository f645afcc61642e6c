package schema

// Grammar compiles introspection queries and blueprint commands into the
// SQL of one dialect. Each dialect lives in its own package under
// schema/grammars.
type Grammar interface {
	CompileCurrentSchema() Query
	CompileTables(schemas []string) Query
	CompileViews(schemas []string) Query
	CompileTypes(schemas []string) Query
	CompileColumns(schema, table string) Query
	CompileIndexes(schema, table string) Query
	CompileForeignKeys(schema, table string) Query

	// Compile turns one blueprint command into zero or more statements.
	// Commands the dialect cannot express yield ErrUnsupportedOperation.
	Compile(b *Blueprint, c *Command) ([]Query, error)
}

// TableExistsCompiler is implemented by grammars with a native table
// existence probe. The probe returns a single truthy or falsy value.
type TableExistsCompiler interface {
	CompileTableExists(schema, table string) Query
}

// ViewExistsCompiler is the view counterpart of TableExistsCompiler.
type ViewExistsCompiler interface {
	CompileViewExists(schema, view string) Query
}

// AllTablesDropper is implemented by grammars able to drop a set of tables at once.
type AllTablesDropper interface {
	CompileDropAllTables(tables []string) []Query
}

// AllViewsDropper is implemented by grammars able to drop a set of views at once.
type AllViewsDropper interface {
	CompileDropAllViews(views []string) []Query
}

// AllTypesDropper is implemented by grammars able to drop user defined types.
type AllTypesDropper interface {
	CompileDropAllTypes(types []UserType) []Query
}

// Processor normalizes raw introspection rows into the model.
type Processor interface {
	ProcessTables(rows []Row) []Table
	ProcessViews(rows []Row) []View
	ProcessTypes(rows []Row) []UserType
	ProcessColumns(rows []Row) []Column
	ProcessIndexes(rows []Row) []Index
	ProcessForeignKeys(rows []Row) []ForeignKey
}
