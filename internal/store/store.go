// ABOUTME: Store interface and data types for tradewind persistence.
// ABOUTME: Defines journal entries and watchlist items used by the journal extension.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// JournalEntry is one trading journal note.
type JournalEntry struct {
	ID        string
	Note      string
	Tags      []string
	CreatedAt time.Time
}

// WatchlistItem is a symbol the user is tracking, with an optional note.
type WatchlistItem struct {
	Symbol    string
	Note      string
	UpdatedAt time.Time
}

// Store is the persistence interface used by the journal extension.
type Store interface {
	CreateJournalEntry(ctx context.Context, entry *JournalEntry) error
	SearchJournalEntries(ctx context.Context, query string, limit int) ([]*JournalEntry, error)

	UpsertWatchlistItem(ctx context.Context, item *WatchlistItem) error
	ListWatchlistItems(ctx context.Context) ([]*WatchlistItem, error)
	DeleteWatchlistItem(ctx context.Context, symbol string) error

	Close() error
}
