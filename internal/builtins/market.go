// ABOUTME: Market data extension: quotes, the daily limit-up pool, and headline news.
// ABOUTME: Backed by an HTTP JSON client whose base URL comes from the module's options.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tradewind/internal/extension"
)

// MarketNamespace is the namespace of the market data module.
const MarketNamespace = "market_data"

// defaultMarketTimeout bounds a single upstream request.
const defaultMarketTimeout = 15 * time.Second

// MarketClient fetches market data from an HTTP JSON endpoint.
type MarketClient struct {
	baseURL string
	http    *http.Client
}

// NewMarketClient creates a client for the given base URL.
func NewMarketClient(baseURL string) *MarketClient {
	return &MarketClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultMarketTimeout},
	}
}

// Quote is the latest traded snapshot for one symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Last      float64 `json:"last"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
}

// PoolEntry is one row of the daily limit-up pool.
type PoolEntry struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Last         float64 `json:"last"`
	SealedAmount float64 `json:"sealed_amount"`
	Streak       int     `json:"streak"`
}

// NewsItem is one market headline.
type NewsItem struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"published_at"`
}

// Quote fetches the latest quote for a symbol.
func (c *MarketClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var quote Quote
	if err := c.getJSON(ctx, "/quote", url.Values{"symbol": {symbol}}, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// LimitUpPool fetches the limit-up pool for a trading day (YYYYMMDD).
func (c *MarketClient) LimitUpPool(ctx context.Context, date string) ([]PoolEntry, error) {
	var entries []PoolEntry
	if err := c.getJSON(ctx, "/pool/limit-up", url.Values{"date": {date}}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// News fetches the global market headline feed.
func (c *MarketClient) News(ctx context.Context) ([]NewsItem, error) {
	var items []NewsItem
	if err := c.getJSON(ctx, "/news", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *MarketClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("market data client is not configured")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// MarketModule builds the market_data extension around the given client.
// The init hook points the client at the configured base_url option.
func MarketModule(client *MarketClient) *extension.Module {
	h := &marketHandlers{client: client}
	return &extension.Module{
		Namespace: MarketNamespace,
		Tools: []*extension.Tool{
			{
				Name:            "quote",
				Description:     "Get the latest quote for a stock symbol",
				InputSchemaJSON: `{"type":"object","properties":{"symbol":{"type":"string","description":"6-digit stock code, e.g. 600000"}},"required":["symbol"]}`,
				Handler:         h.Quote,
			},
			{
				Name:            "limit_up_pool",
				Description:     "Get the daily limit-up stock pool",
				InputSchemaJSON: `{"type":"object","properties":{"date":{"type":"string","description":"Trading day, YYYYMMDD; defaults to today"}}}`,
				Handler:         h.LimitUpPool,
			},
			{
				Name:            "market_news",
				Description:     "Get the latest global market headlines",
				InputSchemaJSON: `{"type":"object"}`,
				Handler:         h.News,
			},
		},
		Allowed: []string{
			extension.QualifiedName(MarketNamespace, "quote"),
			extension.QualifiedName(MarketNamespace, "limit_up_pool"),
			extension.QualifiedName(MarketNamespace, "market_news"),
		},
		Init: func(ctx context.Context, options map[string]any, hd *extension.Handle) error {
			baseURL := hd.StringOption("base_url", "")
			if baseURL == "" {
				return fmt.Errorf("market_data requires a base_url option")
			}
			client.baseURL = baseURL
			hd.Logger().Info("market data client configured")
			return nil
		},
	}
}

type marketHandlers struct {
	client *MarketClient
}

type quoteInput struct {
	Symbol string `json:"symbol"`
}

func (h *marketHandlers) Quote(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in quoteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	quote, err := h.client.Quote(ctx, normalizeSymbol(in.Symbol))
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(quote)
}

type poolInput struct {
	Date string `json:"date"`
}

func (h *marketHandlers) LimitUpPool(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in poolInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	entries, err := h.client.LimitUpPool(ctx, safeTradingDate(in.Date))
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"entries": entries, "count": len(entries)})
}

func (h *marketHandlers) News(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	items, err := h.client.News(ctx)
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"items": items, "count": len(items)})
}

// safeTradingDate coerces a loosely formatted date into YYYYMMDD, falling
// back to today when the input is empty or unparseable.
func safeTradingDate(raw string) string {
	if raw == "" {
		return time.Now().Format("20060102")
	}
	for _, layout := range []string{"20060102", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("20060102")
		}
	}
	return time.Now().Format("20060102")
}
