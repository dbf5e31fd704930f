// SQLite-backed tick store. One database file per collection window, named
// from the window label, using the pure-Go driver so the binary stays
// cgo-free.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/johnayoung/go-tick-collector/internal/models"
)

// SQLiteStore implements TickStore on a single SQLite database file.
// The file is created lazily by Initialize; SummarizeExisting can therefore
// run before any schema exists.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (or prepares to create) the store at path.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, NewStorageError("open", "", fmt.Errorf("store path cannot be empty"))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, NewStorageError("open", "", fmt.Errorf("failed to create store directory: %w", err))
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError("open", "", fmt.Errorf("failed to open SQLite database: %w", err))
	}

	// Single writer, single run.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Path returns the store file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Initialize implements TickStore.Initialize. Creates the tick, trade and
// metadata tables if absent.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			epoch INTEGER,
			quote REAL,
			symbol TEXT,
			pip_size INTEGER,
			PRIMARY KEY (epoch, symbol)
		)`,
		// Reserved for contract bookkeeping; not populated by the collector.
		`CREATE TABLE IF NOT EXISTS trades (
			contract_id INTEGER PRIMARY KEY,
			start_time TEXT NOT NULL,
			symbol TEXT NOT NULL,
			contract_type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return NewStorageError("initialize", "", err)
		}
	}

	s.logger.Info("store ready", "path", s.path)
	return nil
}

// WriteMetadata implements TickStore.WriteMetadata. Values are stored as
// RFC 3339 strings and overwrite any prior run's metadata.
func (s *SQLiteStore) WriteMetadata(ctx context.Context, window *models.Window, fetchedAt time.Time) error {
	const stmt = `INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`

	entries := [][2]string{
		{MetaKeyStartTime, window.Start.Format(time.RFC3339)},
		{MetaKeyEndTime, window.End.Format(time.RFC3339)},
		{MetaKeyFetchedAt, fetchedAt.Format(time.RFC3339)},
		{MetaKeyLabel, window.Label},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("update", "metadata", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, stmt, entry[0], entry[1]); err != nil {
			return NewStorageError("update", "metadata", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("update", "metadata", err)
	}
	return nil
}

// InsertTicks implements TickStore.InsertTicks. Rows whose (epoch, symbol)
// key already exists are silently skipped; the return value counts rows
// actually written.
func (s *SQLiteStore) InsertTicks(ctx context.Context, ticks []models.Tick) (int, error) {
	if len(ticks) == 0 {
		return 0, nil
	}

	for i, tick := range ticks {
		if err := tick.Validate(); err != nil {
			return 0, NewInsertError("ticks", fmt.Errorf("invalid tick at index %d: %w", i, err))
		}
	}

	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewInsertError("ticks", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO ticks (epoch, quote, symbol, pip_size) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, NewInsertError("ticks", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, tick := range ticks {
		res, err := stmt.ExecContext(ctx, tick.Epoch, tick.Quote, tick.Symbol, tick.PipSize)
		if err != nil {
			return 0, NewInsertError("ticks", fmt.Errorf("failed to insert %s: %w", tick.String(), err))
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, NewInsertError("ticks", err)
	}

	s.logger.Debug("stored tick batch",
		"submitted", len(ticks),
		"inserted", inserted,
		"duration", time.Since(start))

	return inserted, nil
}

// SummarizeExisting implements TickStore.SummarizeExisting. A missing store
// file is an expected clean-run condition, reported as a nil summary; an
// existing but unreadable store surfaces the underlying error.
func (s *SQLiteStore) SummarizeExisting(ctx context.Context) ([]SymbolSummary, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewQueryError("ticks", fmt.Errorf("store exists but is not readable: %w", err))
	}

	// The file may predate this run without carrying the schema yet.
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'ticks'`).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewQueryError("ticks", fmt.Errorf("store exists but is not readable: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, MIN(epoch), MAX(epoch), COUNT(*)
		FROM ticks
		GROUP BY symbol
		ORDER BY symbol`)
	if err != nil {
		return nil, NewQueryError("ticks", err)
	}
	defer rows.Close()

	var summaries []SymbolSummary
	for rows.Next() {
		var (
			symbol         string
			oldest, newest int64
			count          int64
		)
		if err := rows.Scan(&symbol, &oldest, &newest, &count); err != nil {
			return nil, NewQueryError("ticks", err)
		}
		summaries = append(summaries, SymbolSummary{
			Symbol: symbol,
			Oldest: time.Unix(oldest, 0).UTC(),
			Newest: time.Unix(newest, 0).UTC(),
			Count:  count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, NewQueryError("ticks", err)
	}

	return summaries, nil
}

// HealthCheck implements TickStore.HealthCheck.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError("health_check", "", err)
	}
	return nil
}

// Close implements TickStore.Close.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
