package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// QualifiedReference names a table or view, optionally inside a schema.
type QualifiedReference struct {
	Schema string
	Name   string
}

func (r QualifiedReference) String() string {
	return qualify(r.Schema, r.Name)
}

type defaultSchemaKind int

const (
	noDefaultSchema defaultSchemaKind = iota
	currentSchema
	explicitSchema
)

// DefaultSchema decides the schema of a reference that names none.
type DefaultSchema struct {
	kind defaultSchemaKind
	name string
}

var (
	// NoDefaultSchema leaves the schema empty, the dialect picks its default.
	NoDefaultSchema = DefaultSchema{kind: noDefaultSchema}

	// CurrentSchema asks the connection for its current schema.
	CurrentSchema = DefaultSchema{kind: currentSchema}
)

// ExplicitSchema uses the given schema name.
func ExplicitSchema(name string) DefaultSchema {
	return DefaultSchema{kind: explicitSchema, name: name}
}

// ParseReference splits "schema.table" without consulting the database.
// Empty segments such as "", "users." or ".users" are rejected.
func ParseReference(ref string) (QualifiedReference, error) {
	parts := strings.Split(ref, ".")

	var qr QualifiedReference
	switch len(parts) {
	case 1:
		qr = QualifiedReference{Name: parts[0]}
	case 2:
		if parts[0] == "" {
			return QualifiedReference{}, errors.Wrapf(ErrMalformedReference, "reference [%s]", ref)
		}

		qr = QualifiedReference{Schema: parts[0], Name: parts[1]}
	default:
		return QualifiedReference{}, errors.Wrapf(ErrThreePartReference, "reference [%s]", ref)
	}

	if qr.Name == "" {
		return QualifiedReference{}, errors.Wrapf(ErrMalformedReference, "reference [%s]", ref)
	}

	return qr, nil
}
