// Package builtins provides the compiled-in reference extensions.
//
// # Overview
//
// Builtin extensions ship with the binary and resolve through
// "builtin:<name>" locations. They follow the same contract as any other
// extension module: a namespace, schema-described tools, an explicit
// allow-list, and an optional init hook.
//
// # Modules
//
// market_data (builtin:market_data) - no external state:
//
//   - quote: latest quote for a symbol
//   - limit_up_pool: the daily limit-up stock pool
//   - market_news: global market headlines
//
// history (builtin:history) - historical data keyed by prefixed codes:
//
//   - a_share_kline: historical A-share K-lines with optional adjustment
//   - index_kline: historical index K-lines
//   - valuation_daily: daily PE/PB/PS/PCF multiples
//   - stock_basic: security profiles by code or fuzzy name
//   - financial_quarterly: quarterly report families
//
// broker (builtin:broker) - init hook connects the trading client:
//
//   - place_order: buy or sell (allow-listed)
//   - cancel_order: cancel an order (allow-listed)
//   - account_balance: query funds (declared, withheld)
//   - positions: query holdings (declared, withheld)
//
// journal (builtin:journal) - init hook opens the SQLite store:
//
//   - journal_add, journal_search: trading journal notes
//   - watchlist_add, watchlist_remove, watchlist_list: tracked symbols
//
// # Options
//
// Each module reads its private configuration section:
// market_data and history need base_url, broker needs endpoint, journal
// accepts an optional db_path override.
package builtins
