// ABOUTME: Catalog of compiled-in extension modules exposed through the builtin resolver.
// ABOUTME: Each factory builds a fresh module instance per resolution.

package builtins

import (
	"path/filepath"

	"tradewind/internal/extension"
)

// Defaults carries environment-derived paths the builtin modules need.
type Defaults struct {
	// DataDir is where builtin modules keep local state (journal database).
	DataDir string
}

// Resolver returns the builtin resolver with every compiled-in module
// registered:
//
//	builtin:market_data - quotes, limit-up pool, headlines
//	builtin:history     - K-lines, valuation, quarterly financials
//	builtin:broker      - order placement via the trading client
//	builtin:journal     - SQLite trade journal and watchlist
func Resolver(defaults Defaults) *extension.BuiltinResolver {
	r := extension.NewBuiltinResolver()
	r.Add("market_data", func() (*extension.Module, error) {
		return MarketModule(NewMarketClient("")), nil
	})
	r.Add("history", func() (*extension.Module, error) {
		return HistoryModule(NewHistoryClient("")), nil
	})
	r.Add("broker", func() (*extension.Module, error) {
		return BrokerModule(NewHTTPBrokerClient()), nil
	})
	r.Add("journal", func() (*extension.Module, error) {
		return JournalModule(filepath.Join(defaults.DataDir, "journal.db")), nil
	})
	return r
}
