package binance

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/vadiminshakov/pulsgram/internal/entity"
)

const (
	// FuturesURL is the mainnet USDT-margined futures endpoint.
	FuturesURL = "https://fapi.binance.com"
	// TestnetFuturesURL is the futures testnet endpoint.
	TestnetFuturesURL = "https://testnet.binancefuture.com"
	// SpotURL and TestnetSpotURL cover the spot API for callers that point the
	// client at the spot market.
	SpotURL        = "https://api.binance.com"
	TestnetSpotURL = "https://testnet.binance.vision"

	// MaxLeverage is the highest leverage the exchange accepts for any pair.
	MaxLeverage = 125

	dialTimeout    = 5 * time.Second
	requestTimeout = 20 * time.Second
)

// Client is an authenticated futures REST client. The handle is safe for
// concurrent use: the underlying http.Client owns pooling and timeouts, and
// the filter table is frozen after LoadFilters.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	filters    map[entity.Symbol]entity.SymbolFilters
}

// NewClient builds a client against the given base URL. Call LoadFilters
// before placing orders.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
			},
		},
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		filters:   map[entity.Symbol]entity.SymbolFilters{},
	}
}

// LoadFilters fetches exchange metadata and freezes the per-symbol constraint
// table. Call once at startup, before the client is shared; the table is read
// without locking afterwards.
func (c *Client) LoadFilters(ctx context.Context, symbols []entity.Symbol) error {
	info, err := c.ExchangeInfo(ctx)
	if err != nil {
		return err
	}

	table, err := extractFilters(info, symbols)
	if err != nil {
		return err
	}

	c.filters = table
	return nil
}

// symbolFilters rejects per call, not per process: a symbol without loaded
// filters fails the one order that wanted it.
func (c *Client) symbolFilters(symbol entity.Symbol) (entity.SymbolFilters, error) {
	filters, ok := c.filters[symbol]
	if !ok {
		return entity.SymbolFilters{}, invalidInputf("no filters loaded for %s", symbol)
	}
	return filters, nil
}

// CommissionRate returns maker/taker fees for the symbol.
func (c *Client) CommissionRate(ctx context.Context, symbol entity.Symbol) (*CommissionRate, error) {
	body, err := c.sendSigned(ctx, http.MethodGet, "fapi/v1/commissionRate", "symbol="+symbol.String())
	if err != nil {
		return nil, err
	}

	var out CommissionRate
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccountInfo returns balances and open positions for the account.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.sendSigned(ctx, http.MethodGet, "fapi/v2/account", "")
	if err != nil {
		return nil, err
	}

	var out AccountInfo
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateListenKey opens a user-data stream and returns its key. API-key-only.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	body, err := c.sendWithKey(ctx, http.MethodPost, "fapi/v1/listenKey", "")
	if err != nil {
		return "", err
	}

	var out ListenKeyResponse
	if err := decodeResponse(body, &out); err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", &DecodeError{Err: fmt.Errorf("no listenKey in response: %s", body)}
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey extends the user-data stream validity.
func (c *Client) KeepAliveListenKey(ctx context.Context) error {
	_, err := c.sendWithKey(ctx, http.MethodPut, "fapi/v1/listenKey", "")
	return err
}

// CloseListenKey closes the user-data stream.
func (c *Client) CloseListenKey(ctx context.Context, listenKey string) error {
	_, err := c.sendWithKey(ctx, http.MethodDelete, "fapi/v1/listenKey", "listenKey="+listenKey)
	return err
}

// OpenOrders lists currently open orders for the symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol entity.Symbol) ([]OrderResponse, error) {
	body, err := c.sendSigned(ctx, http.MethodGet, "fapi/v1/openOrders", "symbol="+symbol.String())
	if err != nil {
		return nil, err
	}

	var out []OrderResponse
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder cancels a single order by id.
func (c *Client) CancelOrder(ctx context.Context, symbol entity.Symbol, orderID int64) (*OrderResponse, error) {
	query := "symbol=" + symbol.String() + "&orderId=" + strconv.FormatInt(orderID, 10)
	body, err := c.sendSigned(ctx, http.MethodDelete, "fapi/v1/order", query)
	if err != nil {
		return nil, err
	}

	var out OrderResponse
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceMarketOrder places a market order for an explicit quantity, aligned to
// the symbol's step size first.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol entity.Symbol, side entity.OrderSide, quantity float64) (*OrderResponse, error) {
	filters, err := c.symbolFilters(symbol)
	if err != nil {
		return nil, err
	}

	aligned, err := AlignQuantity(quantity, filters)
	if err != nil {
		return nil, err
	}

	return c.placeMarket(ctx, symbol, side, FormatQuantity(aligned, filters))
}

// PlaceMinimumMarketOrder places the smallest market order the exchange will
// accept for the symbol, sized off the current ticker price.
func (c *Client) PlaceMinimumMarketOrder(ctx context.Context, symbol entity.Symbol, side entity.OrderSide) (*OrderResponse, error) {
	filters, err := c.symbolFilters(symbol)
	if err != nil {
		return nil, err
	}

	price, err := c.TickerPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	quantity, err := MinViableQuantity(filters, price)
	if err != nil {
		return nil, err
	}

	return c.placeMarket(ctx, symbol, side, FormatQuantity(quantity, filters))
}

func (c *Client) placeMarket(ctx context.Context, symbol entity.Symbol, side entity.OrderSide, quantity string) (*OrderResponse, error) {
	query := fmt.Sprintf("symbol=%s&side=%s&type=MARKET&quantity=%s", symbol, side, quantity)

	body, err := c.sendSigned(ctx, http.MethodPost, "fapi/v1/order", query)
	if err != nil {
		return nil, err
	}

	var out OrderResponse
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceLimitOrder places a GTC limit order with quantity and price aligned to
// the symbol's filters.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol entity.Symbol, side entity.OrderSide, quantity, price float64) (*OrderResponse, error) {
	filters, err := c.symbolFilters(symbol)
	if err != nil {
		return nil, err
	}

	alignedQty, err := AlignQuantity(quantity, filters)
	if err != nil {
		return nil, err
	}
	alignedPrice, err := AlignPrice(price, filters)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("symbol=%s&side=%s&type=LIMIT&quantity=%s&price=%s&timeInForce=GTC",
		symbol, side, FormatQuantity(alignedQty, filters), FormatPrice(alignedPrice, filters))

	body, err := c.sendSigned(ctx, http.MethodPost, "fapi/v1/order", query)
	if err != nil {
		return nil, err
	}

	var out OrderResponse
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLeverage sets leverage for the symbol. Values outside [1, MaxLeverage]
// are rejected locally without a network call.
func (c *Client) SetLeverage(ctx context.Context, symbol entity.Symbol, leverage int) error {
	if leverage < 1 || leverage > MaxLeverage {
		return invalidInputf("leverage %d outside [1, %d]", leverage, MaxLeverage)
	}

	query := fmt.Sprintf("symbol=%s&leverage=%d", symbol, leverage)
	body, err := c.sendSigned(ctx, http.MethodPost, "fapi/v1/leverage", query)
	if err != nil {
		return err
	}

	var out struct {
		Leverage int    `json:"leverage"`
		Symbol   string `json:"symbol"`
	}
	return decodeResponse(body, &out)
}

// GetLeverage reads the current leverage for the symbol off its position risk.
func (c *Client) GetLeverage(ctx context.Context, symbol entity.Symbol) (int, error) {
	positions, err := c.PositionRisk(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, invalidInputf("no position risk returned for %s", symbol)
	}

	leverage, err := strconv.Atoi(positions[0].Leverage)
	if err != nil {
		return 0, &DecodeError{Err: err}
	}
	return leverage, nil
}

// GetPositionMode reports whether the account is in hedge mode (true) or
// one-way mode (false).
func (c *Client) GetPositionMode(ctx context.Context) (bool, error) {
	body, err := c.sendSigned(ctx, http.MethodGet, "fapi/v1/positionSide/dual", "")
	if err != nil {
		return false, err
	}

	var out PositionModeResponse
	if err := decodeResponse(body, &out); err != nil {
		return false, err
	}
	return out.DualSidePosition, nil
}

// SetPositionMode switches the account between hedge and one-way mode.
func (c *Client) SetPositionMode(ctx context.Context, dual bool) error {
	query := "dualSidePosition=" + strconv.FormatBool(dual)
	body, err := c.sendSigned(ctx, http.MethodPost, "fapi/v1/positionSide/dual", query)
	if err != nil {
		return err
	}

	var out struct {
		Code int64  `json:"code"`
		Msg  string `json:"msg"`
	}
	return decodeResponse(body, &out)
}

// PositionRisk returns position risk entries for the symbol.
func (c *Client) PositionRisk(ctx context.Context, symbol entity.Symbol) ([]PositionRisk, error) {
	body, err := c.sendSigned(ctx, http.MethodGet, "fapi/v2/positionRisk", "symbol="+symbol.String())
	if err != nil {
		return nil, err
	}

	var out []PositionRisk
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TickerPrice returns the latest traded price for the symbol. API-key-only.
func (c *Client) TickerPrice(ctx context.Context, symbol entity.Symbol) (float64, error) {
	body, err := c.sendWithKey(ctx, http.MethodGet, "fapi/v1/ticker/price", "symbol="+symbol.String())
	if err != nil {
		return 0, err
	}

	var out TickerPrice
	if err := decodeResponse(body, &out); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, &DecodeError{Err: err}
	}
	return price, nil
}

// ExchangeInfo returns the exchange trading rules and symbol metadata.
// API-key-only.
func (c *Client) ExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	body, err := c.sendWithKey(ctx, http.MethodGet, "fapi/v1/exchangeInfo", "")
	if err != nil {
		return nil, err
	}

	var out ExchangeInfo
	if err := decodeResponse(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClosePercentOfPosition closes the given percentage of the open position.
// Percentages outside (0, 100] are rejected locally. If the scaled quantity
// rounds to nothing after step alignment, the FULL position is closed instead
// of doing nothing. Note that a caller asking for a tiny slice of a small
// position can flatten it entirely.
func (c *Client) ClosePercentOfPosition(ctx context.Context, symbol entity.Symbol, percent float64) (*OrderResponse, error) {
	if percent <= 0 || percent > 100 {
		return nil, invalidInputf("percent %v outside (0, 100]", percent)
	}

	filters, err := c.symbolFilters(symbol)
	if err != nil {
		return nil, err
	}

	amount, err := c.positionAmount(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, nil
	}

	side := closeSide(amount)
	quantity := math.Abs(amount) * percent / 100

	aligned, alignErr := AlignQuantity(quantity, filters)
	if alignErr != nil || aligned <= 0 {
		return c.closeFull(ctx, symbol, amount, filters)
	}

	return c.placeMarket(ctx, symbol, side, FormatQuantity(aligned, filters))
}

// CloseFullPosition flattens the open position for the symbol: a positive
// position amount sells, a negative one buys, zero is a no-op.
func (c *Client) CloseFullPosition(ctx context.Context, symbol entity.Symbol) (*OrderResponse, error) {
	filters, err := c.symbolFilters(symbol)
	if err != nil {
		return nil, err
	}

	amount, err := c.positionAmount(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, nil
	}

	return c.closeFull(ctx, symbol, amount, filters)
}

func (c *Client) closeFull(ctx context.Context, symbol entity.Symbol, amount float64, filters entity.SymbolFilters) (*OrderResponse, error) {
	aligned, err := AlignQuantity(math.Abs(amount), filters)
	if err != nil {
		return nil, err
	}

	return c.placeMarket(ctx, symbol, closeSide(amount), FormatQuantity(aligned, filters))
}

func (c *Client) positionAmount(ctx context.Context, symbol entity.Symbol) (float64, error) {
	positions, err := c.PositionRisk(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, nil
	}

	amount, err := strconv.ParseFloat(positions[0].PositionAmt, 64)
	if err != nil {
		return 0, &DecodeError{Err: err}
	}
	return amount, nil
}

func closeSide(positionAmt float64) entity.OrderSide {
	if positionAmt > 0 {
		return entity.Sell
	}
	return entity.Buy
}
