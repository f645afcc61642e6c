package cli

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/denismitr/forge"
	"github.com/denismitr/forge/concurrency"
	"github.com/denismitr/forge/internal/retry"
	"github.com/denismitr/forge/internal/source"
	"github.com/denismitr/forge/migration"
)

var ErrSourceTypeIsNotValid = errors.New("source type is not valid")

// RetryStep is the pause added between two runs retried after a deadlock.
const RetryStep = 500 * time.Millisecond

type (
	CloserFunc func() error

	ActionConfig struct {
		// Steps limits migrate and rollback when set, zero runs nothing.
		Steps     *int
		DropViews bool
		// Retries re-runs an operation that failed on a deadlock or a
		// lock timeout.
		Retries int
	}

	App struct {
		source   source.Source
		migrator *forge.Migrator
	}
)

// NewFromYaml creates the app from a forge.yaml file.
func NewFromYaml(path string, opts ...forge.OptionFunc) (*App, CloserFunc, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	return New(cfg, opts...)
}

func New(cfg Config, opts ...forge.OptionFunc) (*App, CloserFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	m, closer, err := createMigrator(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}

	return newApp(m, CloserFunc(closer))
}

func newApp(m *forge.Migrator, closer CloserFunc) (*App, CloserFunc, error) {
	s := m.Source()
	if s == nil {
		_ = closer()
		return nil, nil, ErrSourceTypeIsNotValid
	}

	return &App{source: s, migrator: m}, closer, nil
}

// CreateMigration writes the files of a new migration to the migrations folder.
func (app *App) CreateMigration(description string) (*migration.Migration, error) {
	return app.source.Create(description)
}

func (app *App) Migrate(ctx context.Context, cfg ActionConfig) ([]string, error) {
	var migrated []string
	err := app.withRetries(ctx, cfg.Retries, func() error {
		var err error
		migrated, err = app.migrator.Migrate(ctx, forge.CreateConfigurators(cfg.Steps, false)...)
		return err
	})

	return migrated, err
}

func (app *App) Rollback(ctx context.Context, cfg ActionConfig) ([]string, error) {
	var rolledBack []string
	err := app.withRetries(ctx, cfg.Retries, func() error {
		var err error
		rolledBack, err = app.migrator.Rollback(ctx, forge.CreateConfigurators(cfg.Steps, false)...)
		return err
	})

	return rolledBack, err
}

func (app *App) Refresh(ctx context.Context, cfg ActionConfig) ([]string, []string, error) {
	var rolledBack, migrated []string
	err := app.withRetries(ctx, cfg.Retries, func() error {
		var err error
		rolledBack, migrated, err = app.migrator.Refresh(ctx)
		return err
	})

	return rolledBack, migrated, err
}

func (app *App) Fresh(ctx context.Context, cfg ActionConfig) ([]string, error) {
	var migrated []string
	err := app.withRetries(ctx, cfg.Retries, func() error {
		var err error
		migrated, err = app.migrator.Fresh(ctx, forge.CreateConfigurators(nil, cfg.DropViews)...)
		return err
	})

	return migrated, err
}

func (app *App) Install(ctx context.Context) error {
	return app.migrator.Install(ctx)
}

func (app *App) Status(ctx context.Context) ([]forge.Status, error) {
	return app.migrator.Status(ctx)
}

// RenderStatus writes the status of every migration as a table.
func (app *App) RenderStatus(ctx context.Context, w io.Writer) error {
	statuses, err := app.Status(ctx)
	if err != nil {
		return err
	}

	data := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		ran, batch := "No", ""
		if s.Applied {
			ran, batch = "Yes", strconv.FormatUint(uint64(s.Batch), 10)
		}

		data = append(data, []string{s.Name, ran, batch})
	}

	if err := renderTable([]string{"Migration", "Ran?", "Batch"}, data, w); err != nil {
		return errors.Wrap(err, "could not render migrations status")
	}

	return nil
}

// withRetries runs fn again while it fails with a deadlock or a lock wait
// timeout, at most retries more times.
func (app *App) withRetries(ctx context.Context, retries int, fn func() error) error {
	if retries <= 0 {
		return fn()
	}

	var last error
	err := retry.Incremental(ctx, RetryStep, retries+1, func(attempt int) error {
		last = fn()
		if last != nil && concurrency.IsConcurrencyError(last) {
			return retry.Error(last, attempt)
		}

		return last
	})

	if last != nil {
		return last
	}

	return err
}
