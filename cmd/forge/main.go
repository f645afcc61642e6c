package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/logrusorgru/aurora/v3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/denismitr/forge"
	"github.com/denismitr/forge/internal/cli"
)

const operationTimeout = 10 * time.Minute

type flags struct {
	config    string
	database  string
	folder    string
	steps     int
	retries   int
	dropViews bool
	printSQL  bool
	debug     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(aurora.Red("forge: "), err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "forge",
		Short:         "Run and manage database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&f.config, "config", "c", cli.DefaultConfigFile, "configuration file")
	root.PersistentFlags().StringVar(&f.database, "db", "", "database url, overrides the configuration file")
	root.PersistentFlags().StringVar(&f.folder, "folder", "", "migrations folder, overrides the configuration file")
	root.PersistentFlags().IntVar(&f.retries, "retries", 0, "times to retry an operation failing on a deadlock")
	root.PersistentFlags().BoolVar(&f.printSQL, "sql", false, "print executed sql")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "print debug messages")

	root.AddCommand(
		migrateCmd(f),
		rollbackCmd(f),
		refreshCmd(f),
		freshCmd(f),
		installCmd(f),
		statusCmd(f),
		makeMigrationCmd(f),
		initCmd(),
	)

	return root
}

func migrateCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run the pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := stepsFlag(cmd, f)
			if err != nil {
				return err
			}

			return withApp(f, func(ctx context.Context, app *cli.App) error {
				migrated, err := app.Migrate(ctx, cli.ActionConfig{Steps: steps, Retries: f.retries})
				if errors.Is(err, forge.ErrNothingToMigrate) {
					done("Nothing to migrate")
					return nil
				}

				if err != nil {
					return err
				}

				done("Migrated %d migration(s)", len(migrated))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&f.steps, "step", 0, "number of migrations to run")

	return cmd
}

func rollbackCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate:rollback",
		Short: "Roll back the last batch of migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := stepsFlag(cmd, f)
			if err != nil {
				return err
			}

			return withApp(f, func(ctx context.Context, app *cli.App) error {
				rolledBack, err := app.Rollback(ctx, cli.ActionConfig{Steps: steps, Retries: f.retries})
				if errors.Is(err, forge.ErrNothingToRollback) {
					done("Nothing to rollback")
					return nil
				}

				if err != nil {
					return err
				}

				done("Rolled back %d migration(s)", len(rolledBack))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&f.steps, "step", 0, "number of migrations to roll back")

	return cmd
}

func refreshCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate:refresh",
		Short: "Roll back all migrations and run them again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(ctx context.Context, app *cli.App) error {
				rolledBack, migrated, err := app.Refresh(ctx, cli.ActionConfig{Retries: f.retries})
				if err != nil {
					return err
				}

				done("Rolled back %d and migrated %d migration(s)", len(rolledBack), len(migrated))
				return nil
			})
		},
	}
}

func freshCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate:fresh",
		Short: "Drop all tables and run every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(ctx context.Context, app *cli.App) error {
				migrated, err := app.Fresh(ctx, cli.ActionConfig{DropViews: f.dropViews, Retries: f.retries})
				if err != nil && !errors.Is(err, forge.ErrNothingToMigrate) {
					return err
				}

				done("Migrated %d migration(s) on a fresh database", len(migrated))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&f.dropViews, "drop-views", false, "drop all views as well")

	return cmd
}

func installCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate:install",
		Short: "Create the migrations table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(ctx context.Context, app *cli.App) error {
				if err := app.Install(ctx); err != nil {
					return err
				}

				done("Migrations table is ready")
				return nil
			})
		},
	}
}

func statusCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate:status",
		Short: "Show the status of every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(ctx context.Context, app *cli.App) error {
				return app.RenderStatus(ctx, cmd.OutOrStdout())
			})
		},
	}
}

func makeMigrationCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "make:migration <description>",
		Short: "Create the files of a new migration",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(ctx context.Context, app *cli.App) error {
				m, err := app.CreateMigration(strings.Join(args, " "))
				if err != nil {
					return err
				}

				done("Created migration %s", m.Name)
				return nil
			})
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file stub",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cli.DefaultConfigFile
			if len(args) > 0 {
				path = args[0]
			}

			if err := cli.InitCfg(path); err != nil {
				return err
			}

			done("Created %s", path)
			return nil
		},
	}
}

// stepsFlag returns the --step value only when it was given on the command line.
func stepsFlag(cmd *cobra.Command, f *flags) (*int, error) {
	if !cmd.Flags().Changed("step") {
		return nil, nil
	}

	if f.steps < 0 {
		return nil, errors.Errorf("invalid --step %d: must not be negative", f.steps)
	}

	steps := f.steps
	return &steps, nil
}

func withApp(f *flags, fn func(ctx context.Context, app *cli.App) error) (err error) {
	if envErr := cli.LoadEnv(); envErr != nil {
		return envErr
	}

	cfg, cfgErr := loadConfig(f)
	if cfgErr != nil {
		return cfgErr
	}

	lg := forge.UseColorLogger(log.New(os.Stdout, "", 0), f.printSQL || cfg.PrintSQL, f.debug)

	app, closer, createErr := cli.New(cfg, lg)
	if createErr != nil {
		return createErr
	}

	defer func() {
		if closeErr := closer(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	return fn(ctx, app)
}

func loadConfig(f *flags) (cli.Config, error) {
	var cfg cli.Config

	if cli.FileExists(f.config) {
		var err error
		if cfg, err = cli.LoadConfig(f.config); err != nil && f.database == "" {
			return cfg, err
		}
	}

	if f.database != "" {
		cfg.DatabaseURL = f.database
	} else if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if f.folder != "" {
		cfg.MigrationsFolder = f.folder
	}

	return cfg, nil
}

func done(format string, args ...interface{}) {
	fmt.Println(aurora.Green("forge: "), fmt.Sprintf(format, args...))
}
