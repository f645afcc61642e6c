package schema

import "strings"

// BaseProcessor maps rows that already use the canonical keys
// (name, schema, size, comment, collation, engine, definition, type,
// type_name, nullable, default, auto_increment, columns, unique, primary,
// foreign_schema, foreign_table, foreign_columns, on_update, on_delete).
// Dialect processors embed it and override what their catalog reports
// differently.
type BaseProcessor struct{}

var _ Processor = BaseProcessor{}

func (BaseProcessor) ProcessTables(rows []Row) []Table {
	tables := make([]Table, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, Table{
			Name:                r.String("name"),
			Schema:              r.String("schema"),
			SchemaQualifiedName: qualify(r.String("schema"), r.String("name")),
			Size:                r.Int("size"),
			Comment:             r.String("comment"),
			Collation:           r.String("collation"),
			Engine:              r.String("engine"),
		})
	}

	return tables
}

func (BaseProcessor) ProcessViews(rows []Row) []View {
	views := make([]View, 0, len(rows))
	for _, r := range rows {
		views = append(views, View{
			Name:                r.String("name"),
			Schema:              r.String("schema"),
			SchemaQualifiedName: qualify(r.String("schema"), r.String("name")),
			Definition:          r.String("definition"),
		})
	}

	return views
}

func (BaseProcessor) ProcessTypes(rows []Row) []UserType {
	types := make([]UserType, 0, len(rows))
	for _, r := range rows {
		types = append(types, UserType{
			Name:                r.String("name"),
			Schema:              r.String("schema"),
			SchemaQualifiedName: qualify(r.String("schema"), r.String("name")),
			Type:                r.String("type"),
			Category:            r.String("category"),
			Implicit:            r.Bool("implicit"),
		})
	}

	return types
}

func (BaseProcessor) ProcessColumns(rows []Row) []Column {
	columns := make([]Column, 0, len(rows))
	for _, r := range rows {
		columns = append(columns, Column{
			Name:          r.String("name"),
			TypeName:      r.String("type_name"),
			Type:          r.String("type"),
			Collation:     r.String("collation"),
			Nullable:      r.Bool("nullable"),
			Default:       r.NullString("default"),
			AutoIncrement: r.Bool("auto_increment"),
			Comment:       r.String("comment"),
		})
	}

	return columns
}

func (BaseProcessor) ProcessIndexes(rows []Row) []Index {
	indexes := make([]Index, 0, len(rows))
	for _, r := range rows {
		indexes = append(indexes, Index{
			Name:    strings.ToLower(r.String("name")),
			Columns: r.List("columns"),
			Type:    strings.ToLower(r.String("type")),
			Unique:  r.Bool("unique"),
			Primary: r.Bool("primary"),
		})
	}

	return indexes
}

func (BaseProcessor) ProcessForeignKeys(rows []Row) []ForeignKey {
	fks := make([]ForeignKey, 0, len(rows))
	for _, r := range rows {
		fks = append(fks, ForeignKey{
			Name:           r.String("name"),
			Columns:        r.List("columns"),
			ForeignSchema:  r.String("foreign_schema"),
			ForeignTable:   r.String("foreign_table"),
			ForeignColumns: r.List("foreign_columns"),
			OnUpdate:       strings.ToLower(r.String("on_update")),
			OnDelete:       strings.ToLower(r.String("on_delete")),
		})
	}

	return fks
}

func qualify(schema, name string) string {
	if schema == "" {
		return name
	}

	return schema + "." + name
}
