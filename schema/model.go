package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Table is a snapshot of a table as reported by the database.
type Table struct {
	Name                string
	Schema              string
	SchemaQualifiedName string
	Size                int64
	Comment             string
	Collation           string
	Engine              string
}

// View is a snapshot of a view as reported by the database.
type View struct {
	Name                string
	Schema              string
	SchemaQualifiedName string
	Definition          string
}

// UserType is a user defined type (enum, domain, composite...).
type UserType struct {
	Name                string
	Schema              string
	SchemaQualifiedName string
	Type                string
	Category            string
	Implicit            bool
}

// Generation describes a generated column.
type Generation struct {
	Type       string // virtual or stored
	Expression string
}

// Column is a snapshot of a table column.
type Column struct {
	Name          string
	TypeName      string
	Type          string
	Collation     string
	Nullable      bool
	Default       *string
	AutoIncrement bool
	Comment       string
	Generation    *Generation
}

// Index is a snapshot of a table index. Columns keep the index order.
type Index struct {
	Name    string
	Columns []string
	Type    string
	Unique  bool
	Primary bool
}

// ForeignKey is a snapshot of a foreign key constraint.
type ForeignKey struct {
	Name           string
	Columns        []string
	ForeignSchema  string
	ForeignTable   string
	ForeignColumns []string
	OnUpdate       string
	OnDelete       string
}

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// String returns the value under key as a string, empty when missing or NULL.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// NullString returns nil when the value under key is missing or NULL.
func (r Row) NullString(key string) *string {
	if v, ok := r[key]; !ok || v == nil {
		return nil
	}

	s := r.String(key)
	return &s
}

// Int returns the value under key as an integer, 0 when it is not numeric.
func (r Row) Int(key string) int64 {
	switch t := r[key].(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case nil:
		return 0
	default:
		n, err := strconv.ParseInt(strings.TrimSpace(r.String(key)), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
}

// Bool interprets driver specific truth values: 1, true, t, yes.
func (r Row) Bool(key string) bool {
	switch t := r[key].(type) {
	case bool:
		return t
	case nil:
		return false
	case string, []byte:
		switch strings.ToLower(r.String(key)) {
		case "1", "t", "true", "y", "yes":
			return true
		}
		return false
	default:
		return r.Int(key) != 0
	}
}

// List splits a comma separated value, as produced by group_concat or string_agg.
func (r Row) List(key string) []string {
	s := r.String(key)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return parts
}
