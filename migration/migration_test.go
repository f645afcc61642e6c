package migration

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denismitr/forge/schema"
)

func Test_ScriptsCanBeJoinedInOne(t *testing.T) {
	tt := []struct {
		name    string
		scripts []string
		joined  string
	}{
		{
			name:    "single script with no trailing semicolon",
			scripts: []string{"CREATE foo"},
			joined:  "CREATE foo;",
		},
		{
			name:    "two scripts with one with trailing semicolon",
			scripts: []string{"CREATE TABLE foo;", "INSERT INTO foo (name) VALUES (?)"},
			joined:  "CREATE TABLE foo;\nINSERT INTO foo (name) VALUES (?);",
		},
		{
			name:    "blank scripts are skipped",
			scripts: []string{"  ", "DROP TABLE foo\n", ""},
			joined:  "DROP TABLE foo;",
		},
		{
			name:    "comment only scripts are skipped",
			scripts: []string{"-- rollback\n", "-- ALTER TABLE users ...\n\n"},
			joined:  "",
		},
		{
			name:    "no scripts at all",
			scripts: nil,
			joined:  "",
		},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.joined, JoinScripts(tc.scripts))
		})
	}
}

func Test_MigrationNamesAreParsed(t *testing.T) {
	tt := []struct {
		name        string
		version     string
		description string
		err         bool
	}{
		{name: "2024_01_01_000000_create_users_table", version: "2024_01_01_000000", description: "Create users table"},
		{name: "20240102000000_add_email_to_users_table", version: "20240102000000", description: "Add email to users table"},
		{name: "1596897167_create_foo", err: true},
		{name: "2024_01_01_000000", err: true},
		{name: "2024_01_01_000000_create users", err: true},
		{name: "create_users_table", err: true},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			version, description, err := ParseName(tc.name)
			if tc.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidName))
				assert.False(t, IsValidName(tc.name))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.version, version)
			assert.Equal(t, tc.description, description)
		})
	}
}

func Test_NewNameUsesTheClock(t *testing.T) {
	clock := func() time.Time {
		return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	}

	name := NewName(clock, "Create Users-Table")
	assert.Equal(t, "2024_03_05_140709_create_users_table", name)
	assert.True(t, IsValidName(name))
}

func Test_MigrationsAreSortedByName(t *testing.T) {
	migrations := Migrations{
		{Name: "2024_01_03_000000_c"},
		{Name: "2024_01_01_000000_a"},
		{Name: "2024_01_02_000000_b"},
	}

	sort.Sort(migrations)

	assert.Equal(t, []string{"2024_01_01_000000_a", "2024_01_02_000000_b", "2024_01_03_000000_c"}, migrations.Names())

	m, ok := migrations.Find("2024_01_02_000000_b")
	require.True(t, ok)
	assert.Equal(t, "2024_01_02_000000_b", m.Name)

	_, ok = migrations.Find("2024_01_04_000000_d")
	assert.False(t, ok)
}

func Test_FuncsWithoutDownAreNoops(t *testing.T) {
	called := 0
	u := Funcs{Up: func(ctx context.Context, s *schema.Builder) error {
		called++
		return nil
	}}

	assert.NoError(t, u.Apply(context.Background(), nil))
	assert.NoError(t, u.Revert(context.Background(), nil))
	assert.Equal(t, 1, called)
}

func Test_Registry(t *testing.T) {
	t.Run("units are returned in name order", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("2024_01_02_000000_add_email_to_users_table", Funcs{}))
		require.NoError(t, r.Register("2024_01_01_000000_create_users_table", Script{Up: []string{"CREATE TABLE users (id INTEGER)"}}))

		migrations, err := r.Migrations()
		require.NoError(t, err)
		assert.Equal(t, []string{
			"2024_01_01_000000_create_users_table",
			"2024_01_02_000000_add_email_to_users_table",
		}, migrations.Names())
		assert.Equal(t, "Create users table", migrations[0].Description)
	})

	t.Run("duplicate and invalid names are rejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("2024_01_01_000000_create_users_table", Funcs{}))

		err := r.Register("2024_01_01_000000_create_users_table", Funcs{})
		assert.True(t, errors.Is(err, ErrDuplicateMigration))

		err = r.Register("create_users_table", Funcs{})
		assert.True(t, errors.Is(err, ErrInvalidName))

		assert.Panics(t, func() {
			r.MustRegister("bogus", Funcs{})
		})

		_, ok := r.Lookup("2024_01_01_000000_create_users_table")
		assert.True(t, ok)
	})
}

func Test_StubsGuessTheTable(t *testing.T) {
	tt := []struct {
		description string
		table       string
		create      bool
		up          string
		down        string
	}{
		{
			description: "create users table",
			table:       "users",
			create:      true,
			up:          "CREATE TABLE users (\n    id INTEGER PRIMARY KEY\n);\n",
			down:        "DROP TABLE IF EXISTS users;\n",
		},
		{
			description: "add email to users table",
			table:       "users",
			up:          "-- ALTER TABLE users ...\n",
			down:        "-- ALTER TABLE users ...\n",
		},
		{
			description: "remove avatar from user_profiles_table",
			table:       "user_profiles",
			up:          "-- ALTER TABLE user_profiles ...\n",
			down:        "-- ALTER TABLE user_profiles ...\n",
		},
		{
			description: "seed countries",
			up:          "-- migrate\n",
			down:        "-- rollback\n",
		},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.description, func(t *testing.T) {
			table, create := GuessTable(Snake(tc.description))
			assert.Equal(t, tc.table, table)
			assert.Equal(t, tc.create, create)

			up, down := Stubs(tc.description)
			assert.Equal(t, tc.up, up)
			assert.Equal(t, tc.down, down)
		})
	}
}
