package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/logger"
	"github.com/denismitr/forge/migration"
)

var (
	ErrNothingToMigrate  = errors.New("nothing to migrate")
	ErrNothingToRollback = errors.New("nothing to rollback")
	ErrLockNotAcquired   = errors.New("could not acquire the migrations lock")
)

const (
	DefaultMigrationsTable = "migrations"

	OperationMigrate  = "migrate"
	OperationRollback = "rollback"
	OperationRefresh  = "refresh"
	OperationFresh    = "fresh"
	OperationInstall  = "install"
)

type CommonOptions struct {
	MigrationsTable string
	TablePrefix     string
}

// BatchesTable is the companion table holding every allocated batch.
func (o CommonOptions) BatchesTable() string {
	return o.MigrationsTable + "_batches"
}

type (
	Batch uint

	// Record is one ledger row.
	Record struct {
		Name  string
		Batch Batch
	}

	// Status tells whether an available migration has been applied.
	Status struct {
		Name    string
		Applied bool
		Batch   Batch
	}

	// Plan limits a migrate or rollback run. Without Limited there is no
	// limit for migrate and rollback takes the last batch. A limited plan
	// takes Steps entries, none when Steps is zero. All rolls back every record.
	Plan struct {
		Steps   int
		Limited bool
		All     bool
	}
)

// Steps plans a run limited to n migrations.
func Steps(n int) Plan {
	return Plan{Steps: n, Limited: true}
}

// PartialApplyError is returned when a migration fails part way through a
// batch. Migrations applied before it stay recorded under Batch, which
// remains open and is resumed by the next run.
type PartialApplyError struct {
	Name    string
	Batch   Batch
	Applied []string
	Err     error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf(
		"migration [%s] failed in batch %d after %d applied migration(s): %v",
		e.Name, e.Batch, len(e.Applied), e.Err,
	)
}

func (e *PartialApplyError) Unwrap() error {
	return e.Err
}

type Gateway interface {
	Install(ctx context.Context) error
	Migrate(ctx context.Context, migrations migration.Migrations, p Plan) (migration.Migrations, error)
	Rollback(ctx context.Context, migrations migration.Migrations, p Plan) (migration.Migrations, error)
	Refresh(ctx context.Context, migrations migration.Migrations) (migration.Migrations, migration.Migrations, error)
	Fresh(ctx context.Context, migrations migration.Migrations, dropViews bool) (migration.Migrations, error)
	Status(ctx context.Context, migrations migration.Migrations) ([]Status, error)
	SetLogger(lg logger.Logger)
	Close() error
}

// ScheduleForMigration returns the available migrations that have no
// ledger record, in ascending name order, limited to p.Steps when the plan
// is limited.
func ScheduleForMigration(migrations migration.Migrations, applied []Record, p Plan) migration.Migrations {
	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Name] = struct{}{}
	}

	sorted := make(migration.Migrations, len(migrations))
	copy(sorted, migrations)
	sort.Sort(sorted)

	var scheduled migration.Migrations
	for i := range sorted {
		if p.Limited && len(scheduled) >= p.Steps {
			break
		}

		if _, ok := done[sorted[i].Name]; ok {
			continue
		}

		scheduled = append(scheduled, sorted[i])
	}

	return scheduled
}

// ScheduleForRollback picks the records to roll back, most recent first by
// (batch desc, name desc): every record with p.All, the p.Steps most recent
// ones with a limited plan, the whole last batch otherwise.
func ScheduleForRollback(applied []Record, p Plan) []Record {
	sorted := make([]Record, len(applied))
	copy(sorted, applied)
	SortMostRecentFirst(sorted)

	if len(sorted) == 0 || p.All {
		return sorted
	}

	if p.Limited {
		if p.Steps <= 0 {
			return nil
		}

		if p.Steps < len(sorted) {
			sorted = sorted[:p.Steps]
		}

		return sorted
	}

	last := sorted[0].Batch
	var scheduled []Record
	for _, r := range sorted {
		if r.Batch != last {
			break
		}

		scheduled = append(scheduled, r)
	}

	return scheduled
}

// SortMostRecentFirst orders records by batch then name, both descending.
func SortMostRecentFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Batch != records[j].Batch {
			return records[i].Batch > records[j].Batch
		}

		return records[i].Name > records[j].Name
	})
}

// StatusOf reports every available migration against the ledger, in
// ascending name order.
func StatusOf(migrations migration.Migrations, applied []Record) []Status {
	batches := make(map[string]Batch, len(applied))
	for _, r := range applied {
		batches[r.Name] = r.Batch
	}

	sorted := make(migration.Migrations, len(migrations))
	copy(sorted, migrations)
	sort.Sort(sorted)

	result := make([]Status, 0, len(sorted))
	for _, m := range sorted {
		b, ok := batches[m.Name]
		result = append(result, Status{Name: m.Name, Applied: ok, Batch: b})
	}

	return result
}

// Names lists record names in their current order.
func Names(records []Record) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}

	return names
}
