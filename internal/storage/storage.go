// Package storage defines the persistence layer for collected ticks.
// A store is one self-contained relational file per collection window,
// holding the tick, trade and run-metadata tables; writes deduplicate on the
// (epoch, symbol) primary key so re-runs over overlapping windows are safe.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/johnayoung/go-tick-collector/internal/models"
)

// TickStore is the interface a storage backend must implement to persist one
// run's ticks and metadata.
type TickStore interface {
	// Initialize creates the schema if absent. Idempotent.
	Initialize(ctx context.Context) error

	// WriteMetadata upserts the run metadata describing the window this
	// store represents. Prior values are overwritten unconditionally.
	WriteMetadata(ctx context.Context, window *models.Window, fetchedAt time.Time) error

	// InsertTicks bulk-inserts ticks, ignoring rows whose (epoch, symbol)
	// key already exists. Returns the number of rows actually inserted,
	// which may be less than the number submitted.
	InsertTicks(ctx context.Context, ticks []models.Tick) (int, error)

	// SummarizeExisting reports per-instrument coverage already present in
	// the store. A store that does not exist yet yields a nil summary and
	// no error; a store that exists but cannot be read yields an error.
	SummarizeExisting(ctx context.Context) ([]SymbolSummary, error)

	// HealthCheck verifies the backend is operational.
	HealthCheck(ctx context.Context) error

	// Close releases the backend. The store must not be used afterwards.
	Close() error
}

// SymbolSummary describes existing coverage for one instrument.
type SymbolSummary struct {
	Symbol string
	Oldest time.Time
	Newest time.Time
	Count  int64
}

// String renders the summary for operator-facing progress output.
func (s SymbolSummary) String() string {
	return fmt.Sprintf("%s: %d ticks (%s to %s)", s.Symbol, s.Count,
		s.Oldest.Format("2006-01-02 15:04:05"), s.Newest.Format("2006-01-02 15:04:05"))
}

// Metadata keys written once per store.
const (
	MetaKeyStartTime = "start_time"
	MetaKeyEndTime   = "end_time"
	MetaKeyFetchedAt = "fetched_at"
	MetaKeyLabel     = "label"
)

// StorageError represents errors that occur during storage operations.
type StorageError struct {
	// Operation is the storage operation that failed (e.g. "insert", "query")
	Operation string

	// Table is the table involved in the operation, if any
	Table string

	// Err is the underlying error
	Err error
}

// Error implements the error interface for StorageError.
func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage operation %s on table %s failed: %v", e.Operation, e.Table, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the provided details.
func NewStorageError(operation, table string, err error) *StorageError {
	return &StorageError{Operation: operation, Table: table, Err: err}
}

// NewInsertError creates a StorageError for insert operations.
func NewInsertError(table string, err error) *StorageError {
	return &StorageError{Operation: "insert", Table: table, Err: err}
}

// NewQueryError creates a StorageError for query operations.
func NewQueryError(table string, err error) *StorageError {
	return &StorageError{Operation: "query", Table: table, Err: err}
}
