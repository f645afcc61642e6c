package sqlgateway

import (
	"github.com/denismitr/forge/internal/database"
)

// Dialect renders the ledger queries of one database. Table names are
// already prefixed and quoted by the dialect.
type Dialect interface {
	// InitQueries creates the ledger and its batches table if missing.
	InitQueries() []string
	ReadQuery() string
	InsertQuery(name string, batch database.Batch) (string, []interface{})
	RemoveQuery(name string) (string, []interface{})

	// MaxBatchQuery selects the highest batch ever allocated.
	MaxBatchQuery() string
	// OpenBatchQuery selects the batch left open by a failed run, NULL if none.
	OpenBatchQuery() string
	OpenBatchInsertQuery(batch database.Batch) (string, []interface{})
	CloseBatchQuery(batch database.Batch) (string, []interface{})
	// CloseEmptyBatchesQuery closes open batches that no longer hold records.
	CloseEmptyBatchesQuery() string
}
