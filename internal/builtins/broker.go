// ABOUTME: Broker extension: order placement against a single exclusive trading client.
// ABOUTME: The init hook connects the client; query tools are declared but withheld from dispatch.

package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradewind/internal/extension"
)

// BrokerNamespace is the namespace of the broker module.
const BrokerNamespace = "broker"

// defaultBrokerTimeout bounds a single client operation.
const defaultBrokerTimeout = 10 * time.Second

// Order is a buy or sell instruction for the trading client.
type Order struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"` // "buy" or "sell"
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// OrderReceipt is the client's acknowledgement of a placed order.
type OrderReceipt struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Balance is the account funds snapshot.
type Balance struct {
	Available float64 `json:"available"`
	Frozen    float64 `json:"frozen"`
	Total     float64 `json:"total"`
}

// Position is one holding in the account.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity int     `json:"quantity"`
	Cost     float64 `json:"cost"`
}

// BrokerClient is the trading-client connection owned exclusively by the
// broker module. Implementations are not required to be safe for concurrent
// use; the module serializes access itself.
type BrokerClient interface {
	Connect(ctx context.Context, endpoint string) error
	PlaceOrder(ctx context.Context, order Order) (*OrderReceipt, error)
	CancelOrder(ctx context.Context, orderID string) error
	Balance(ctx context.Context) (*Balance, error)
	Positions(ctx context.Context) ([]Position, error)
	Close() error
}

// HTTPBrokerClient talks to a local order-entry gateway over HTTP.
type HTTPBrokerClient struct {
	endpoint string
	http     *http.Client
}

// NewHTTPBrokerClient creates an unconnected client.
func NewHTTPBrokerClient() *HTTPBrokerClient {
	return &HTTPBrokerClient{
		http: &http.Client{Timeout: defaultBrokerTimeout},
	}
}

// Connect verifies the gateway is reachable and remembers the endpoint.
func (c *HTTPBrokerClient) Connect(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/ping", nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to trading gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trading gateway ping returned %d", resp.StatusCode)
	}
	c.endpoint = endpoint
	return nil
}

// PlaceOrder submits an order.
func (c *HTTPBrokerClient) PlaceOrder(ctx context.Context, order Order) (*OrderReceipt, error) {
	var receipt OrderReceipt
	if err := c.postJSON(ctx, "/orders", order, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// CancelOrder cancels a previously placed order.
func (c *HTTPBrokerClient) CancelOrder(ctx context.Context, orderID string) error {
	return c.postJSON(ctx, "/orders/cancel", map[string]string{"order_id": orderID}, &struct{}{})
}

// Balance fetches the account funds snapshot.
func (c *HTTPBrokerClient) Balance(ctx context.Context) (*Balance, error) {
	var balance Balance
	if err := c.getJSON(ctx, "/balance", &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// Positions fetches current holdings.
func (c *HTTPBrokerClient) Positions(ctx context.Context) ([]Position, error) {
	var positions []Position
	if err := c.getJSON(ctx, "/positions", &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// Close releases the connection. The HTTP client holds no persistent state.
func (c *HTTPBrokerClient) Close() error { return nil }

func (c *HTTPBrokerClient) postJSON(ctx context.Context, path string, in, out any) error {
	if c.endpoint == "" {
		return fmt.Errorf("trading client is not connected")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *HTTPBrokerClient) getJSON(ctx context.Context, path string, out any) error {
	if c.endpoint == "" {
		return fmt.Errorf("trading client is not connected")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *HTTPBrokerClient) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling trading gateway %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("trading gateway %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// BrokerModule builds the broker extension around the given client. Only the
// order tools are allow-listed; the account query tools stay addressable but
// are deliberately withheld from the model.
func BrokerModule(client BrokerClient) *extension.Module {
	h := &brokerHandlers{client: client}
	return &extension.Module{
		Namespace: BrokerNamespace,
		Tools: []*extension.Tool{
			{
				Name:            "place_order",
				Description:     "Place a buy or sell order through the trading client",
				InputSchemaJSON: `{"type":"object","properties":{"symbol":{"type":"string","description":"6-digit stock code"},"side":{"type":"string","enum":["buy","sell"]},"price":{"type":["number","string"],"description":"Limit price, e.g. 10.5"},"quantity":{"type":["integer","string"],"description":"Number of shares, e.g. 100"}},"required":["symbol","side","price","quantity"]}`,
				Handler:         h.PlaceOrder,
			},
			{
				Name:            "cancel_order",
				Description:     "Cancel a previously placed order",
				InputSchemaJSON: `{"type":"object","properties":{"order_id":{"type":"string"}},"required":["order_id"]}`,
				Handler:         h.CancelOrder,
			},
			{
				Name:            "account_balance",
				Description:     "Query account funds",
				InputSchemaJSON: `{"type":"object"}`,
				Handler:         h.Balance,
			},
			{
				Name:            "positions",
				Description:     "Query current holdings",
				InputSchemaJSON: `{"type":"object"}`,
				Handler:         h.Positions,
			},
		},
		Allowed: []string{
			extension.QualifiedName(BrokerNamespace, "place_order"),
			extension.QualifiedName(BrokerNamespace, "cancel_order"),
		},
		Init: func(ctx context.Context, options map[string]any, hd *extension.Handle) error {
			endpoint := hd.StringOption("endpoint", "")
			if endpoint == "" {
				return fmt.Errorf("broker requires an endpoint option")
			}
			hd.Logger().Info("connecting trading client")
			if err := client.Connect(ctx, endpoint); err != nil {
				return fmt.Errorf("connecting trading client: %w", err)
			}
			hd.Logger().Info("trading client connected")
			return nil
		},
		Close: client.Close,
	}
}

type brokerHandlers struct {
	// mu serializes all access to the single exclusive client connection.
	mu     sync.Mutex
	client BrokerClient
}

type placeOrderInput struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    any    `json:"price"`
	Quantity any    `json:"quantity"`
}

func (h *brokerHandlers) PlaceOrder(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in placeOrderInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	price, err := coercePrice(in.Price)
	if err != nil {
		return nil, err
	}
	quantity, err := coerceQuantity(in.Quantity)
	if err != nil {
		return nil, err
	}
	order := Order{
		Symbol:   normalizeSymbol(in.Symbol),
		Side:     in.Side,
		Price:    price,
		Quantity: quantity,
	}

	h.mu.Lock()
	receipt, err := h.client.PlaceOrder(ctx, order)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(receipt)
}

type cancelOrderInput struct {
	OrderID string `json:"order_id"`
}

func (h *brokerHandlers) CancelOrder(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	var in cancelOrderInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	h.mu.Lock()
	err := h.client.CancelOrder(ctx, in.OrderID)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]string{"order_id": in.OrderID, "status": "cancelled"})
}

func (h *brokerHandlers) Balance(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	h.mu.Lock()
	balance, err := h.client.Balance(ctx)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(balance)
}

func (h *brokerHandlers) Positions(ctx context.Context, input json.RawMessage) (*extension.Result, error) {
	h.mu.Lock()
	positions, err := h.client.Positions(ctx)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return extension.JSONResult(map[string]any{"positions": positions, "count": len(positions)})
}

// normalizeSymbol strips an exchange suffix and left-pads to six digits.
func normalizeSymbol(code string) string {
	if idx := strings.Index(code, "."); idx >= 0 {
		code = code[:idx]
	}
	for len(code) < 6 && code != "" {
		code = "0" + code
	}
	return code
}

func coercePrice(v any) (float64, error) {
	switch p := v.(type) {
	case float64:
		return p, nil
	case string:
		price, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid price %q", p)
		}
		return price, nil
	default:
		return 0, fmt.Errorf("invalid price type %T", v)
	}
}

func coerceQuantity(v any) (int, error) {
	switch q := v.(type) {
	case float64:
		return int(q), nil
	case string:
		quantity, err := strconv.Atoi(q)
		if err != nil {
			return 0, fmt.Errorf("invalid quantity %q", q)
		}
		return quantity, nil
	default:
		return 0, fmt.Errorf("invalid quantity type %T", v)
	}
}
