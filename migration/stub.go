package migration

import (
	"fmt"
	"strings"
)

// GuessTable extracts the table a migration description is about, following
// the create_<table>_table and <verb>_..._to|from|in_<table>_table
// conventions. The second value tells whether the migration creates the table.
func GuessTable(name string) (string, bool) {
	const suffix = "_table"

	if strings.HasPrefix(name, "create_") && strings.HasSuffix(name, suffix) {
		return strings.TrimSuffix(strings.TrimPrefix(name, "create_"), suffix), true
	}

	if !strings.HasSuffix(name, suffix) {
		return "", false
	}

	for _, sep := range []string{"_to_", "_from_", "_in_"} {
		if i := strings.LastIndex(name, sep); i >= 0 {
			return strings.TrimSuffix(name[i+len(sep):], suffix), false
		}
	}

	return "", false
}

// Stubs returns the up and down SQL templates of a new migration.
func Stubs(description string) (string, string) {
	table, create := GuessTable(Snake(description))

	switch {
	case create:
		return fmt.Sprintf("CREATE TABLE %s (\n    id INTEGER PRIMARY KEY\n);\n", table),
			fmt.Sprintf("DROP TABLE IF EXISTS %s;\n", table)
	case table != "":
		return fmt.Sprintf("-- ALTER TABLE %s ...\n", table), fmt.Sprintf("-- ALTER TABLE %s ...\n", table)
	default:
		return "-- migrate\n", "-- rollback\n"
	}
}
