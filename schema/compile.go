package schema

import (
	"fmt"
	"strings"
)

// Helpers shared by the dialect grammars.

// QuoteString renders s as a single quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteStrings renders every value with QuoteString, comma separated.
func QuoteStrings(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, QuoteString(v))
	}

	return strings.Join(quoted, ", ")
}

// DefaultLiteral renders a column default. Expressions are kept verbatim,
// booleans become 1 or 0, everything else is quoted.
func DefaultLiteral(v interface{}) string {
	switch t := v.(type) {
	case Expression:
		return string(t)
	case bool:
		if t {
			return "'1'"
		}
		return "'0'"
	case nil:
		return "null"
	case string:
		return QuoteString(t)
	default:
		return QuoteString(fmt.Sprintf("%v", t))
	}
}

// Columnize wraps every column with wrap, comma separated.
func Columnize(wrap func(string) string, columns []string) string {
	wrapped := make([]string, 0, len(columns))
	for _, c := range columns {
		wrapped = append(wrapped, wrap(c))
	}

	return strings.Join(wrapped, ", ")
}

// Placeholders returns n comma separated question marks.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}

	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Strings converts values for use as query bindings.
func Strings(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}

	return out
}

// NullableString binds an empty string as NULL.
func NullableString(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}
