// ABOUTME: History extension: A-share and index K-lines, daily valuation, and quarterly financials.
// ABOUTME: Codes must carry an exchange prefix (sh.600000); date ranges are coerced leniently.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tradewind/internal/extension"
)

// HistoryNamespace is the namespace of the historical data module.
const HistoryNamespace = "history"

// defaultKlineStartDate is the earliest date the upstream serves.
const defaultKlineStartDate = "1990-12-19"

// financialReportTypes are the quarterly report families the upstream knows.
var financialReportTypes = map[string]struct{}{
	"profit":    {},
	"operation": {},
	"growth":    {},
	"balance":   {},
	"cash_flow": {},
	"dupont":    {},
}

// HistoryClient fetches historical market data from an HTTP JSON endpoint.
// It reuses the market client transport; only the routes differ.
type HistoryClient struct {
	*MarketClient
}

// NewHistoryClient creates a client for the given base URL.
func NewHistoryClient(baseURL string) *HistoryClient {
	return &HistoryClient{MarketClient: NewMarketClient(baseURL)}
}

// Bar is one K-line row. Valuation columns ride along on daily bars.
type Bar struct {
	Date   string  `json:"date"`
	Code   string  `json:"code"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Amount float64 `json:"amount"`
	PctChg float64 `json:"pct_chg"`
}

// ValuationRow is one day of valuation multiples for a symbol.
type ValuationRow struct {
	Date      string  `json:"date"`
	Code      string  `json:"code"`
	Close     float64 `json:"close"`
	PETTM     float64 `json:"pe_ttm"`
	PBMRQ     float64 `json:"pb_mrq"`
	PSTTM     float64 `json:"ps_ttm"`
	PCFNcfTTM float64 `json:"pcf_ncf_ttm"`
}

// StockInfo is one security's basic profile.
type StockInfo struct {
	Code     string `json:"code"`
	CodeName string `json:"code_name"`
	IPODate  string `json:"ipo_date"`
	Type     string `json:"type"`
	Status   string `json:"status"`
}

// StockKline fetches A-share K-lines for a prefixed code.
func (c *HistoryClient) StockKline(ctx context.Context, code, start, end, frequency, adjustFlag string) ([]Bar, error) {
	var bars []Bar
	query := url.Values{
		"code":        {code},
		"start_date":  {start},
		"end_date":    {end},
		"frequency":   {frequency},
		"adjust_flag": {adjustFlag},
	}
	if err := c.getJSON(ctx, "/kline/stock", query, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// IndexKline fetches index K-lines. Indexes have no adjustment flag.
func (c *HistoryClient) IndexKline(ctx context.Context, code, start, end, frequency string) ([]Bar, error) {
	var bars []Bar
	query := url.Values{
		"code":       {code},
		"start_date": {start},
		"end_date":   {end},
		"frequency":  {frequency},
	}
	if err := c.getJSON(ctx, "/kline/index", query, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// ValuationDaily fetches daily valuation multiples.
func (c *HistoryClient) ValuationDaily(ctx context.Context, code, start, end string) ([]ValuationRow, error) {
	var rows []ValuationRow
	query := url.Values{
		"code":       {code},
		"start_date": {start},
		"end_date":   {end},
	}
	if err := c.getJSON(ctx, "/valuation/daily", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// StockBasic fetches basic security profiles, filtered by code or fuzzy name.
func (c *HistoryClient) StockBasic(ctx context.Context, code, codeName string) ([]StockInfo, error) {
	var infos []StockInfo
	query := url.Values{}
	if code != "" {
		query.Set("code", code)
	}
	if codeName != "" {
		query.Set("code_name", codeName)
	}
	if err := c.getJSON(ctx, "/stock/basic", query, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// FinancialQuarterly fetches one quarter of a financial report family. Rows
// are schemaless; the columns differ per report type.
func (c *HistoryClient) FinancialQuarterly(ctx context.Context, code, reportType string, year, quarter int) ([]map[string]any, error) {
	var rows []map[string]any
	query := url.Values{
		"code":        {code},
		"report_type": {reportType},
		"year":        {fmt.Sprint(year)},
		"quarter":     {fmt.Sprint(quarter)},
	}
	if err := c.getJSON(ctx, "/financial/quarterly", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// HistoryModule builds the history extension around the given client. The
// init hook points the client at the configured base_url option. All tools
// are allow-listed.
func HistoryModule(client *HistoryClient) *extension.Module {
	h := &historyHandlers{client: client}
	return &extension.Module{
		Namespace: HistoryNamespace,
		Tools: []*extension.Tool{
			{
				Name:            "a_share_kline",
				Description:     "Get historical A-share K-lines, daily through minute bars, with optional price adjustment",
				InputSchemaJSON: `{"type":"object","properties":{"code":{"type":"string","description":"Prefixed stock code, e.g. sh.600000"},"start_date":{"type":"string","description":"Start date YYYY-MM-DD, defaults to 1990-12-19"},"end_date":{"type":"string","description":"End date YYYY-MM-DD, defaults to today"},"frequency":{"type":"string","enum":["d","w","m","5","15","30","60"],"description":"Bar frequency, defaults to d"},"adjust_flag":{"type":"string","enum":["1","2","3"],"description":"1 forward, 2 backward, 3 unadjusted (default)"}},"required":["code"]}`,
				Handler:         h.StockKline,
			},
			{
				Name:            "index_kline",
				Description:     "Get historical index K-lines, e.g. sh.000001 or sz.399001",
				InputSchemaJSON: `{"type":"object","properties":{"code":{"type":"string","description":"Prefixed index code, e.g. sh.000001"},"start_date":{"type":"string"},"end_date":{"type":"string"},"frequency":{"type":"string","enum":["d","w","m","5","15","30","60"]}},"required":["code"]}`,
				Handler:         h.IndexKline,
			},
			{
				Name:            "valuation_daily",
				Description:     "Get daily valuation multiples (PE, PB, PS, PCF) for a symbol",
				InputSchemaJSON: `{"type":"object","properties":{"code":{"type":"string","description":"Prefixed stock code, e.g. sh.600000"},"start_date":{"type":"string"},"end_date":{"type":"string"}},"required":["code"]}`,
				Handler:         h.ValuationDaily,
			},
			{
				Name:            "stock_basic",
				Description:     "Look up security profiles by code or fuzzy name",
				InputSchemaJSON: `{"type":"object","properties":{"code":{"type":"string","description":"Prefixed code; omit to filter by name"},"code_name":{"type":"string","description":"Fuzzy security name"}}}`,
				Handler:         h.StockBasic,
			},
			{
				Name:            "financial_quarterly",
				Description:     "Get quarterly financial indicators (profit, operation, growth, balance, cash flow, DuPont)",
				InputSchemaJSON: `{"type":"object","properties":{"code":{"type":"string","description":"Prefixed stock code, e.g. sh.600000"},"year":{"type":"integer","description":"Report year, e.g. 2023"},"quarter":{"type":"integer","enum":[1,2,3,4]},"report_type":{"type":"string","enum":["profit","operation","growth","balance","cash_flow","dupont"]}},"required":["code","year","quarter","report_type"]}`,
				Handler:         h.FinancialQuarterly,
			},
		},
		Allowed: []string{
			extension.QualifiedName(HistoryNamespace, "a_share_kline"),
			extension.QualifiedName(HistoryNamespace, "index_kline"),
			extension.QualifiedName(HistoryNamespace, "valuation_daily"),
			extension.QualifiedName(HistoryNamespace, "stock_basic"),
			extension.QualifiedName(HistoryNamespace, "financial_quarterly"),
		},
		Init: func(ctx context.Context, options map[string]any, hd *extension.Handle) error {
			baseURL := hd.StringOption("base_url", "")
			if baseURL == "" {
				return fmt.Errorf("history requires a base_url option")
			}
			client.baseURL = baseURL
			hd.Logger().Info("history client configured")
			return nil
		},
	}
}

type historyHandlers struct {
	client *HistoryClient
}

type klineInput struct {
	Code       string `json:"code"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Frequency  string `json:"frequency"`
	AdjustFlag string `json:"adjust_flag"`
}

func (h *historyHandlers) StockKline(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in klineInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	code, err := ensurePrefixedCode(in.Code)
	if err != nil {
		return nil, err
	}
	frequency := in.Frequency
	if frequency == "" {
		frequency = "d"
	}
	adjustFlag := in.AdjustFlag
	if adjustFlag == "" {
		adjustFlag = "3"
	}

	bars, err := h.client.StockKline(ctx, code,
		safeRangeDate(in.StartDate, defaultKlineStartDate),
		safeRangeDate(in.EndDate, time.Now().Format("2006-01-02")),
		frequency, adjustFlag)
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"bars": bars, "count": len(bars)})
}

func (h *historyHandlers) IndexKline(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in klineInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	code, err := ensurePrefixedCode(in.Code)
	if err != nil {
		return nil, err
	}
	frequency := in.Frequency
	if frequency == "" {
		frequency = "d"
	}

	bars, err := h.client.IndexKline(ctx, code,
		safeRangeDate(in.StartDate, defaultKlineStartDate),
		safeRangeDate(in.EndDate, time.Now().Format("2006-01-02")),
		frequency)
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"bars": bars, "count": len(bars)})
}

type valuationInput struct {
	Code      string `json:"code"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *historyHandlers) ValuationDaily(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in valuationInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	code, err := ensurePrefixedCode(in.Code)
	if err != nil {
		return nil, err
	}

	rows, err := h.client.ValuationDaily(ctx, code,
		safeRangeDate(in.StartDate, defaultKlineStartDate),
		safeRangeDate(in.EndDate, time.Now().Format("2006-01-02")))
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"rows": rows, "count": len(rows)})
}

type stockBasicInput struct {
	Code     string `json:"code"`
	CodeName string `json:"code_name"`
}

func (h *historyHandlers) StockBasic(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in stockBasicInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	infos, err := h.client.StockBasic(ctx, strings.TrimSpace(in.Code), strings.TrimSpace(in.CodeName))
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"securities": infos, "count": len(infos)})
}

type financialInput struct {
	Code       string `json:"code"`
	Year       int    `json:"year"`
	Quarter    int    `json:"quarter"`
	ReportType string `json:"report_type"`
}

func (h *historyHandlers) FinancialQuarterly(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in financialInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	code, err := ensurePrefixedCode(in.Code)
	if err != nil {
		return nil, err
	}
	if _, ok := financialReportTypes[in.ReportType]; !ok {
		return nil, fmt.Errorf("unknown report_type %q", in.ReportType)
	}
	if in.Quarter < 1 || in.Quarter > 4 {
		return nil, fmt.Errorf("quarter must be 1 through 4, got %d", in.Quarter)
	}
	if in.Year == 0 {
		return nil, fmt.Errorf("year is required")
	}

	rows, err := h.client.FinancialQuarterly(ctx, code, in.ReportType, in.Year, in.Quarter)
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"rows": rows, "count": len(rows)})
}

// ensurePrefixedCode validates that a code carries its exchange prefix, as in
// sh.600000 or sz.399001. Historical data is keyed by prefixed codes, unlike
// the bare 6-digit codes the order path normalizes to.
func ensurePrefixedCode(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("code is required, e.g. sh.600000 or sz.000001")
	}
	if !strings.Contains(trimmed, ".") {
		return "", fmt.Errorf("code %q needs an exchange prefix, e.g. sh.600000", trimmed)
	}
	return trimmed, nil
}

// safeRangeDate coerces a loosely formatted date into YYYY-MM-DD, falling
// back when the input is empty or unparseable.
func safeRangeDate(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{"2006-01-02", "20060102", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return fallback
}
