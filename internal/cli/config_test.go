package cli

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()

	prev := AppFs
	AppFs = afero.NewMemMapFs()
	t.Cleanup(func() { AppFs = prev })

	return AppFs
}

func TestLoadConfig(t *testing.T) {
	t.Run("values are read from the environment", func(t *testing.T) {
		fs := useMemFs(t)
		t.Setenv("FORGE_TEST_DB", "sqlite:/tmp/forge.db")

		require.NoError(t, afero.WriteFile(fs, "forge.yaml", []byte(`
version: "1"
migrations:
  database_url: "%%FORGE_TEST_DB%%"
  local_folder: "./db/migrations"
  table: "schema_migrations"
  table_prefix: "app_"
  lock: true
`), 0644))

		cfg, err := LoadConfig("forge.yaml")
		require.NoError(t, err)
		assert.Equal(t, Config{
			DatabaseURL:      "sqlite:/tmp/forge.db",
			MigrationsFolder: "./db/migrations",
			MigrationsTable:  "schema_migrations",
			TablePrefix:      "app_",
			Lock:             true,
		}, cfg)
	})

	t.Run("folder defaults", func(t *testing.T) {
		fs := useMemFs(t)
		require.NoError(t, afero.WriteFile(fs, "forge.yaml", []byte(`
migrations:
  database_url: "mysql://root@localhost:3306/app"
`), 0644))

		cfg, err := LoadConfig("forge.yaml")
		require.NoError(t, err)
		assert.Equal(t, "./database/migrations", cfg.MigrationsFolder)
		assert.False(t, cfg.Lock)
	})

	t.Run("database url is required", func(t *testing.T) {
		fs := useMemFs(t)
		t.Setenv("FORGE_TEST_DB", "")
		require.NoError(t, afero.WriteFile(fs, "forge.yaml", []byte(`
migrations:
  database_url: "%%FORGE_TEST_DB%%"
`), 0644))

		_, err := LoadConfig("forge.yaml")
		assert.True(t, errors.Is(err, ErrDatabaseURLMissing))
	})

	t.Run("missing file", func(t *testing.T) {
		useMemFs(t)

		_, err := LoadConfig("forge.yaml")
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		fs := useMemFs(t)
		require.NoError(t, afero.WriteFile(fs, "forge.yaml", []byte("migrations: ["), 0644))

		_, err := LoadConfig("forge.yaml")
		assert.Error(t, err)
	})
}

func TestInitCfg(t *testing.T) {
	useMemFs(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/app")

	require.NoError(t, InitCfg(DefaultConfigFile))
	assert.True(t, FileExists(DefaultConfigFile))

	cfg, err := LoadConfig(DefaultConfigFile)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/app", cfg.DatabaseURL)
	assert.Equal(t, "migrations", cfg.MigrationsTable)

	err = InitCfg(DefaultConfigFile)
	assert.True(t, errors.Is(err, ErrConfigAlreadyExists))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("FORGE_TEST_VALUE", "value")

	assert.Equal(t, "value", fromEnv("%%FORGE_TEST_VALUE%%"))
	assert.Equal(t, "plain", fromEnv("plain"))
	assert.Equal(t, "%%", fromEnv("%%"))
	assert.Equal(t, "%%half", fromEnv("%%half"))
}
