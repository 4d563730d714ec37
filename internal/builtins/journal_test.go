// ABOUTME: Tests for the journal module over a temp-dir SQLite store.
// ABOUTME: Exercises the init hook's db_path option and every journal tool handler.

package builtins

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"tradewind/internal/extension"
)

func newReadyJournalModule(t *testing.T) *extension.Module {
	t.Helper()
	module := JournalModule(filepath.Join(t.TempDir(), "default.db"))
	path := filepath.Join(t.TempDir(), "journal.db")
	if err := runInit(t, module, map[string]any{"db_path": path}); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		if module.Close != nil {
			module.Close()
		}
	})
	return module
}

func TestJournalAddAndSearch(t *testing.T) {
	module := newReadyJournalModule(t)
	add := findHandler(module, "journal_add")
	search := findHandler(module, "journal_search")

	for _, note := range []string{
		`{"note":"bought 600000 on breakout","tags":["entry","banks"]}`,
		`{"note":"sold half position","tags":["exit"]}`,
	} {
		result, err := add(context.Background(), json.RawMessage(note))
		if err != nil {
			t.Fatalf("journal_add: %v", err)
		}
		var resp map[string]string
		if err := json.Unmarshal([]byte(result.Content[0].Text), &resp); err != nil {
			t.Fatalf("unmarshal add result: %v", err)
		}
		if resp["id"] == "" || resp["status"] != "recorded" {
			t.Errorf("unexpected add response: %v", resp)
		}
	}

	result, err := search(context.Background(), json.RawMessage(`{"query":"breakout"}`))
	if err != nil {
		t.Fatalf("journal_search: %v", err)
	}
	var found struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &found); err != nil {
		t.Fatalf("unmarshal search result: %v", err)
	}
	if found.Count != 1 {
		t.Errorf("search count = %d, want 1", found.Count)
	}

	// tag match
	result, err = search(context.Background(), json.RawMessage(`{"query":"exit"}`))
	if err != nil {
		t.Fatalf("journal_search: %v", err)
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &found); err != nil {
		t.Fatalf("unmarshal search result: %v", err)
	}
	if found.Count != 1 {
		t.Errorf("tag search count = %d, want 1", found.Count)
	}
}

func TestJournalWatchlist(t *testing.T) {
	module := newReadyJournalModule(t)
	add := findHandler(module, "watchlist_add")
	list := findHandler(module, "watchlist_list")

	if _, err := add(context.Background(), json.RawMessage(`{"symbol":"600000.SH","note":"bank"}`)); err != nil {
		t.Fatalf("watchlist_add: %v", err)
	}
	if _, err := add(context.Background(), json.RawMessage(`{"symbol":"300750"}`)); err != nil {
		t.Fatalf("watchlist_add: %v", err)
	}
	if _, err := add(context.Background(), json.RawMessage(`{"symbol":"  "}`)); err == nil {
		t.Fatal("expected error for blank symbol")
	}

	result, err := list(context.Background(), nil)
	if err != nil {
		t.Fatalf("watchlist_list: %v", err)
	}
	var resp struct {
		Count int `json:"count"`
		Items []struct {
			Symbol string `json:"symbol"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &resp); err != nil {
		t.Fatalf("unmarshal list result: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("watchlist count = %d, want 2", resp.Count)
	}
	// normalized and sorted by symbol
	if resp.Items[0].Symbol != "300750" || resp.Items[1].Symbol != "600000" {
		t.Errorf("unexpected items: %+v", resp.Items)
	}
}

func TestJournalWatchlistRemove(t *testing.T) {
	module := newReadyJournalModule(t)
	add := findHandler(module, "watchlist_add")
	remove := findHandler(module, "watchlist_remove")
	list := findHandler(module, "watchlist_list")

	if _, err := add(context.Background(), json.RawMessage(`{"symbol":"600000"}`)); err != nil {
		t.Fatalf("watchlist_add: %v", err)
	}

	result, err := remove(context.Background(), json.RawMessage(`{"symbol":"600000.SH"}`))
	if err != nil {
		t.Fatalf("watchlist_remove: %v", err)
	}
	var resp map[string]string
	if err := json.Unmarshal([]byte(result.Content[0].Text), &resp); err != nil {
		t.Fatalf("unmarshal remove result: %v", err)
	}
	if resp["symbol"] != "600000" || resp["status"] != "removed" {
		t.Errorf("unexpected remove response: %v", resp)
	}

	listed, err := list(context.Background(), nil)
	if err != nil {
		t.Fatalf("watchlist_list: %v", err)
	}
	var after struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(listed.Content[0].Text), &after); err != nil {
		t.Fatalf("unmarshal list result: %v", err)
	}
	if after.Count != 0 {
		t.Errorf("watchlist count after remove = %d, want 0", after.Count)
	}

	if _, err := remove(context.Background(), json.RawMessage(`{"symbol":"600000"}`)); err == nil {
		t.Fatal("expected error removing a symbol not on the watchlist")
	}
	if _, err := remove(context.Background(), json.RawMessage(`{"symbol":"  "}`)); err == nil {
		t.Fatal("expected error for blank symbol")
	}
}

func TestJournalHandlersRequireStore(t *testing.T) {
	module := JournalModule(filepath.Join(t.TempDir(), "never-opened.db"))
	add := findHandler(module, "journal_add")
	if _, err := add(context.Background(), json.RawMessage(`{"note":"x"}`)); err == nil {
		t.Fatal("expected error before init opens the store")
	}
}
