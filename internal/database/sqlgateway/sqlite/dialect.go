package sqlite

import (
	"fmt"

	"github.com/denismitr/forge/internal/database"
	"github.com/denismitr/forge/internal/database/sqlgateway"
)

type Options struct {
	database.CommonOptions
}

type Dialect struct {
	migrationsTable, batchesTable string
}

var _ sqlgateway.Dialect = (*Dialect)(nil)

// NewDialect expects the migrations table name with the table prefix applied.
func NewDialect(migrationsTable string) *Dialect {
	opts := database.CommonOptions{MigrationsTable: migrationsTable}

	return &Dialect{
		migrationsTable: quote(opts.MigrationsTable),
		batchesTable:    quote(opts.BatchesTable()),
	}
}

func (d Dialect) InitQueries() []string {
	const createLedger = `create table if not exists %s ("migration" varchar(255) not null primary key, "batch" integer not null)`
	const createBatches = `create table if not exists %s ("batch" integer not null primary key, "completed" integer not null default 0)`

	return []string{
		fmt.Sprintf(createLedger, d.migrationsTable),
		fmt.Sprintf(createBatches, d.batchesTable),
	}
}

func (d Dialect) ReadQuery() string {
	return fmt.Sprintf(`select "migration", "batch" from %s order by "batch" asc, "migration" asc`, d.migrationsTable)
}

func (d Dialect) InsertQuery(name string, batch database.Batch) (string, []interface{}) {
	q := fmt.Sprintf(`insert into %s ("migration", "batch") values (?, ?)`, d.migrationsTable)
	return q, []interface{}{name, uint64(batch)}
}

func (d Dialect) RemoveQuery(name string) (string, []interface{}) {
	return fmt.Sprintf(`delete from %s where "migration" = ?`, d.migrationsTable), []interface{}{name}
}

func (d Dialect) MaxBatchQuery() string {
	const maxSQL = `select coalesce(max("batch"), 0) from (select "batch" from %s union all select "batch" from %s) as "allocated"`
	return fmt.Sprintf(maxSQL, d.migrationsTable, d.batchesTable)
}

func (d Dialect) OpenBatchQuery() string {
	return fmt.Sprintf(`select max("batch") from %s where "completed" = 0`, d.batchesTable)
}

func (d Dialect) OpenBatchInsertQuery(batch database.Batch) (string, []interface{}) {
	q := fmt.Sprintf(`insert into %s ("batch", "completed") values (?, 0)`, d.batchesTable)
	return q, []interface{}{uint64(batch)}
}

func (d Dialect) CloseBatchQuery(batch database.Batch) (string, []interface{}) {
	q := fmt.Sprintf(`update %s set "completed" = 1 where "batch" = ?`, d.batchesTable)
	return q, []interface{}{uint64(batch)}
}

func (d Dialect) CloseEmptyBatchesQuery() string {
	const closeSQL = `update %s set "completed" = 1 where "completed" = 0 and "batch" not in (select "batch" from %s)`
	return fmt.Sprintf(closeSQL, d.batchesTable, d.migrationsTable)
}

func quote(table string) string {
	return `"` + table + `"`
}
