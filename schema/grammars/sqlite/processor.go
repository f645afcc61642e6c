package sqlite

import (
	"strings"

	"github.com/denismitr/forge/schema"
)

// Processor normalizes the pragma based rows of Grammar.
type Processor struct {
	schema.BaseProcessor
}

// NewProcessor returns the SQLite result processor.
func NewProcessor() Processor {
	return Processor{}
}

func (p Processor) ProcessColumns(rows []schema.Row) []schema.Column {
	primaries := 0
	for _, r := range rows {
		if r.Int("primary") > 0 {
			primaries++
		}
	}

	columns := make([]schema.Column, 0, len(rows))
	for _, r := range rows {
		typ := strings.ToLower(r.String("type"))
		typeName := typ
		if i := strings.Index(typ, "("); i >= 0 {
			typeName = strings.TrimSpace(typ[:i])
		}

		col := schema.Column{
			Name:          r.String("name"),
			TypeName:      typeName,
			Type:          typ,
			Nullable:      r.Bool("nullable"),
			Default:       r.NullString("default"),
			AutoIncrement: primaries == 1 && r.Int("primary") > 0 && typeName == "integer",
		}

		switch r.Int("extra") {
		case 2:
			col.Generation = &schema.Generation{Type: "virtual"}
		case 3:
			col.Generation = &schema.Generation{Type: "stored"}
		}

		columns = append(columns, col)
	}

	return columns
}
