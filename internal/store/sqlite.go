// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite.
// ABOUTME: Provides journal and watchlist persistence with automatic schema creation.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	logger = logger.With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			note TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_journal_created
			ON journal_entries(created_at);

		CREATE TABLE IF NOT EXISTS watchlist (
			symbol TEXT PRIMARY KEY,
			note TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateJournalEntry inserts a journal entry, assigning an ID and timestamp
// when missing.
func (s *SQLiteStore) CreateJournalEntry(ctx context.Context, entry *JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, note, tags, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Note, strings.Join(entry.Tags, ","), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// SearchJournalEntries returns entries whose note or tags contain the query
// substring, newest first. An empty query matches everything. limit <= 0
// means a default of 50.
func (s *SQLiteStore) SearchJournalEntries(ctx context.Context, query string, limit int) ([]*JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note, tags, created_at FROM journal_entries
		 WHERE note LIKE ? OR tags LIKE ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		"%"+query+"%", "%"+query+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		var entry JournalEntry
		var tags string
		if err := rows.Scan(&entry.ID, &entry.Note, &tags, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if tags != "" {
			entry.Tags = strings.Split(tags, ",")
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// UpsertWatchlistItem inserts or updates a watchlist symbol.
func (s *SQLiteStore) UpsertWatchlistItem(ctx context.Context, item *WatchlistItem) error {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watchlist (symbol, note, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET note = excluded.note, updated_at = excluded.updated_at`,
		item.Symbol, item.Note, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting watchlist item: %w", err)
	}
	return nil
}

// ListWatchlistItems returns the watchlist ordered by symbol.
func (s *SQLiteStore) ListWatchlistItems(ctx context.Context) ([]*WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, note, updated_at FROM watchlist ORDER BY symbol`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying watchlist: %w", err)
	}
	defer rows.Close()

	var items []*WatchlistItem
	for rows.Next() {
		var item WatchlistItem
		if err := rows.Scan(&item.Symbol, &item.Note, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning watchlist item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// DeleteWatchlistItem removes a symbol from the watchlist.
// Returns ErrNotFound if the symbol is not present.
func (s *SQLiteStore) DeleteWatchlistItem(ctx context.Context, symbol string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("deleting watchlist item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
