package mysql

import (
	"strings"

	"github.com/denismitr/forge/schema"
)

// Processor normalizes information_schema rows.
type Processor struct {
	schema.BaseProcessor
}

// NewProcessor returns the MySQL result processor.
func NewProcessor() Processor {
	return Processor{}
}

func (p Processor) ProcessColumns(rows []schema.Row) []schema.Column {
	columns := make([]schema.Column, 0, len(rows))
	for _, r := range rows {
		extra := strings.ToLower(r.String("extra"))

		col := schema.Column{
			Name:          r.String("name"),
			TypeName:      strings.ToLower(r.String("type_name")),
			Type:          strings.ToLower(r.String("type")),
			Collation:     r.String("collation"),
			Nullable:      r.String("nullable") == "YES",
			Default:       r.NullString("default"),
			AutoIncrement: extra == "auto_increment",
			Comment:       r.String("comment"),
		}

		switch {
		case strings.Contains(extra, "virtual generated"):
			col.Generation = &schema.Generation{Type: "virtual", Expression: r.String("expression")}
		case strings.Contains(extra, "stored generated"):
			col.Generation = &schema.Generation{Type: "stored", Expression: r.String("expression")}
		}

		columns = append(columns, col)
	}

	return columns
}

func (p Processor) ProcessIndexes(rows []schema.Row) []schema.Index {
	indexes := p.BaseProcessor.ProcessIndexes(rows)
	for i := range indexes {
		indexes[i].Primary = indexes[i].Name == "primary"
	}

	return indexes
}
