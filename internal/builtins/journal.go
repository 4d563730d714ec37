// ABOUTME: Journal extension: SQLite-backed trade journal and watchlist tools.
// ABOUTME: The init hook opens the store; the close hook releases it at shutdown.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tradewind/internal/extension"
	"tradewind/internal/store"
)

// JournalNamespace is the namespace of the journal module.
const JournalNamespace = "journal"

// JournalModule builds the journal extension. defaultPath is where the
// database lives unless the module's db_path option overrides it. The store
// opens inside the init hook so a broken database fails only this namespace.
func JournalModule(defaultPath string) *extension.Module {
	h := &journalHandlers{}
	return &extension.Module{
		Namespace: JournalNamespace,
		Tools: []*extension.Tool{
			{
				Name:            "journal_add",
				Description:     "Record a trading journal note",
				InputSchemaJSON: `{"type":"object","properties":{"note":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}}},"required":["note"]}`,
				Handler:         h.Add,
			},
			{
				Name:            "journal_search",
				Description:     "Search past journal notes",
				InputSchemaJSON: `{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"integer"}}}`,
				Handler:         h.Search,
			},
			{
				Name:            "watchlist_add",
				Description:     "Add or update a symbol on the watchlist",
				InputSchemaJSON: `{"type":"object","properties":{"symbol":{"type":"string"},"note":{"type":"string"}},"required":["symbol"]}`,
				Handler:         h.WatchlistAdd,
			},
			{
				Name:            "watchlist_remove",
				Description:     "Remove a symbol from the watchlist",
				InputSchemaJSON: `{"type":"object","properties":{"symbol":{"type":"string"}},"required":["symbol"]}`,
				Handler:         h.WatchlistRemove,
			},
			{
				Name:            "watchlist_list",
				Description:     "List watched symbols",
				InputSchemaJSON: `{"type":"object"}`,
				Handler:         h.WatchlistList,
			},
		},
		Allowed: []string{
			extension.QualifiedName(JournalNamespace, "journal_add"),
			extension.QualifiedName(JournalNamespace, "journal_search"),
			extension.QualifiedName(JournalNamespace, "watchlist_add"),
			extension.QualifiedName(JournalNamespace, "watchlist_remove"),
			extension.QualifiedName(JournalNamespace, "watchlist_list"),
		},
		Init: func(ctx context.Context, options map[string]any, hd *extension.Handle) error {
			path := hd.StringOption("db_path", defaultPath)
			s, err := store.NewSQLiteStore(path, hd.Logger())
			if err != nil {
				return fmt.Errorf("opening journal store: %w", err)
			}
			h.setStore(s)
			return nil
		},
		Close: h.close,
	}
}

type journalHandlers struct {
	mu    sync.RWMutex
	store store.Store
}

func (h *journalHandlers) setStore(s store.Store) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store = s
}

func (h *journalHandlers) getStore() (store.Store, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.store == nil {
		return nil, fmt.Errorf("journal store is not initialized")
	}
	return h.store, nil
}

func (h *journalHandlers) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.store == nil {
		return nil
	}
	err := h.store.Close()
	h.store = nil
	return err
}

type journalAddInput struct {
	Note string   `json:"note"`
	Tags []string `json:"tags"`
}

func (h *journalHandlers) Add(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in journalAddInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	s, err := h.getStore()
	if err != nil {
		return nil, err
	}
	entry := &store.JournalEntry{Note: in.Note, Tags: in.Tags}
	if err := s.CreateJournalEntry(ctx, entry); err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]string{"id": entry.ID, "status": "recorded"})
}

type journalSearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (h *journalHandlers) Search(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in journalSearchInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	s, err := h.getStore()
	if err != nil {
		return nil, err
	}
	entries, err := s.SearchJournalEntries(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"entries": entries, "count": len(entries)})
}

type watchlistAddInput struct {
	Symbol string `json:"symbol"`
	Note   string `json:"note"`
}

func (h *journalHandlers) WatchlistAdd(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in watchlistAddInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	symbol := normalizeSymbol(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return nil, errors.New("symbol must not be empty")
	}

	s, err := h.getStore()
	if err != nil {
		return nil, err
	}
	item := &store.WatchlistItem{Symbol: symbol, Note: in.Note}
	if err := s.UpsertWatchlistItem(ctx, item); err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]string{"symbol": symbol, "status": "watching"})
}

type watchlistRemoveInput struct {
	Symbol string `json:"symbol"`
}

func (h *journalHandlers) WatchlistRemove(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in watchlistRemoveInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	symbol := normalizeSymbol(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return nil, errors.New("symbol must not be empty")
	}

	s, err := h.getStore()
	if err != nil {
		return nil, err
	}
	if err := s.DeleteWatchlistItem(ctx, symbol); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s is not on the watchlist", symbol)
		}
		return nil, err
	}
	return extension.JSONResult(map[string]string{"symbol": symbol, "status": "removed"})
}

func (h *journalHandlers) WatchlistList(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	s, err := h.getStore()
	if err != nil {
		return nil, err
	}
	items, err := s.ListWatchlistItems(ctx)
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"items": items, "count": len(items)})
}
