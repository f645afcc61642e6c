package cli

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is looked up in the working directory.
const DefaultConfigFile = "forge.yaml"

var (
	ErrConfigAlreadyExists = errors.New("configuration file already exists")
	ErrDatabaseURLMissing  = errors.New("database url was not defined")
)

// AppFs is the filesystem the configuration, the env files and the
// migrations folder are read from.
var AppFs = afero.NewOsFs()

type (
	Config struct {
		DatabaseURL      string
		MigrationsFolder string
		MigrationsTable  string
		TablePrefix      string
		Lock             bool
		PrintSQL         bool
	}

	migrations struct {
		LocalFolder string `yaml:"local_folder"`
		DatabaseURL string `yaml:"database_url"`
		Table       string `yaml:"table"`
		TablePrefix string `yaml:"table_prefix"`
		Lock        bool   `yaml:"lock"`
		PrintSQL    bool   `yaml:"print_sql"`
	}

	configFile struct {
		Version    string     `yaml:"version"`
		Migrations migrations `yaml:"migrations"`
	}
)

const configFileStub = `version: "1"
migrations:
  database_url: "%%DATABASE_URL%%"
  local_folder: "./database/migrations"
  table: "migrations"
  table_prefix: ""
  lock: false
  print_sql: false
`

// LoadEnv loads .env and then .env.local over it, when they exist.
func LoadEnv() error {
	if _, err := AppFs.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return errors.Wrap(err, "could not load .env")
		}
	}

	if _, err := AppFs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return errors.Wrap(err, "could not load .env.local")
		}
	}

	return nil
}

// LoadConfig reads a forge.yaml file. Values written as %%NAME%% are taken
// from the NAME environment variable.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	b, err := afero.ReadFile(AppFs, path)
	if err != nil {
		return cfg, errors.Wrapf(err, "could not read forge configuration file [%s]", path)
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return cfg, errors.Wrap(err, "could not parse forge configuration file")
	}

	cfg = Config{
		DatabaseURL:      fromEnv(cfgFile.Migrations.DatabaseURL),
		MigrationsFolder: fromEnv(cfgFile.Migrations.LocalFolder),
		MigrationsTable:  fromEnv(cfgFile.Migrations.Table),
		TablePrefix:      fromEnv(cfgFile.Migrations.TablePrefix),
		Lock:             cfgFile.Migrations.Lock,
		PrintSQL:         cfgFile.Migrations.PrintSQL,
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the required values and fills in the defaults.
func (cfg *Config) Validate() error {
	if cfg.DatabaseURL == "" {
		return ErrDatabaseURLMissing
	}

	if cfg.MigrationsFolder == "" {
		cfg.MigrationsFolder = "./database/migrations"
	}

	return nil
}

func fromEnv(v string) string {
	if len(v) > 4 && strings.HasPrefix(v, "%%") && strings.HasSuffix(v, "%%") {
		return os.Getenv(strings.Trim(v, "%"))
	}

	return v
}

// InitCfg writes a configuration stub to path.
func InitCfg(path string) error {
	if FileExists(path) {
		return errors.Wrapf(ErrConfigAlreadyExists, "[%s]", path)
	}

	if err := afero.WriteFile(AppFs, path, []byte(configFileStub), 0644); err != nil {
		return errors.Wrap(err, "could not create config file")
	}

	return nil
}

func FileExists(path string) bool {
	info, err := AppFs.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
