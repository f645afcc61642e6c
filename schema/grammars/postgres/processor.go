package postgres

import (
	"strings"

	"github.com/denismitr/forge/schema"
)

// Processor normalizes pg_catalog rows.
type Processor struct {
	schema.BaseProcessor
}

// NewProcessor returns the PostgreSQL result processor.
func NewProcessor() Processor {
	return Processor{}
}

var typeKinds = map[string]string{
	"b": "base",
	"c": "composite",
	"d": "domain",
	"e": "enum",
	"p": "pseudo",
	"r": "range",
	"m": "multirange",
}

var typeCategories = map[string]string{
	"A": "array",
	"B": "boolean",
	"C": "composite",
	"D": "date_time",
	"E": "enum",
	"G": "geometric",
	"I": "network_address",
	"N": "numeric",
	"P": "pseudo",
	"R": "range",
	"S": "string",
	"T": "timespan",
	"U": "user_defined",
	"V": "bit_string",
	"X": "unknown",
	"Z": "internal_use",
}

var fkActions = map[string]string{
	"a": "no action",
	"r": "restrict",
	"c": "cascade",
	"n": "set null",
	"d": "set default",
}

func (p Processor) ProcessTypes(rows []schema.Row) []schema.UserType {
	types := p.BaseProcessor.ProcessTypes(rows)
	for i := range types {
		types[i].Type = typeKinds[types[i].Type]
		types[i].Category = typeCategories[types[i].Category]
	}

	return types
}

func (p Processor) ProcessColumns(rows []schema.Row) []schema.Column {
	columns := make([]schema.Column, 0, len(rows))
	for _, r := range rows {
		def := r.NullString("default")
		generated := r.String("generated")

		col := schema.Column{
			Name:      r.String("name"),
			TypeName:  r.String("type_name"),
			Type:      r.String("type"),
			Collation: r.String("collation"),
			Nullable:  r.Bool("nullable"),
			Default:   def,
			AutoIncrement: r.String("identity") != "" ||
				(def != nil && strings.HasPrefix(*def, "nextval(")),
			Comment: r.String("comment"),
		}

		if generated == "s" || generated == "v" {
			kind := "stored"
			if generated == "v" {
				kind = "virtual"
			}

			col.Generation = &schema.Generation{Type: kind}
			if def != nil {
				col.Generation.Expression = *def
			}
			col.Default = nil
		}

		columns = append(columns, col)
	}

	return columns
}

func (p Processor) ProcessForeignKeys(rows []schema.Row) []schema.ForeignKey {
	fks := p.BaseProcessor.ProcessForeignKeys(rows)
	for i := range fks {
		fks[i].OnUpdate = fkActions[fks[i].OnUpdate]
		fks[i].OnDelete = fkActions[fks[i].OnDelete]
	}

	return fks
}
