package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/pulsgram/internal/entity"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "test-key", "test-secret")
	c.filters = map[entity.Symbol]entity.SymbolFilters{entity.BTCUSDT: btcFilters}
	return c
}

func orderJSON(status, executedQty, avgPrice string) string {
	return fmt.Sprintf(`{"orderId":123456,"symbol":"BTCUSDT","status":%q,"clientOrderId":"x",
		"executedQty":%q,"avgPrice":%q,"origQty":"0.002","side":"BUY","type":"MARKET",
		"cumQty":"0","cumQuote":"0","price":"0","updateTime":1}`, status, executedQty, avgPrice)
}

// verifySigned splits payload&signature and checks the signature covers the
// exact payload bytes under the test secret.
func verifySigned(t *testing.T, raw string) string {
	t.Helper()
	idx := strings.Index(raw, "&signature=")
	require.Positive(t, idx, "no signature in %q", raw)

	payload, signature := raw[:idx], raw[idx+len("&signature="):]
	assert.Equal(t, sign(payload, "test-secret"), signature)
	assert.Contains(t, payload, "timestamp=")
	return payload
}

func TestPlaceMarketOrderSignedRequest(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/fapi/v1/order", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		payload := verifySigned(t, string(body))
		assert.Contains(t, payload, "symbol=BTCUSDT&side=BUY&type=MARKET&quantity=0.005")

		fmt.Fprint(w, orderJSON("FILLED", "0.005", "50000.00"))
	})

	c := newTestClient(t, handler)

	resp, err := c.PlaceMarketOrder(context.Background(), entity.BTCUSDT, entity.Buy, 0.005)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), resp.OrderID)
	assert.Equal(t, "FILLED", resp.Status)
	assert.Equal(t, "0.005", resp.ExecutedQty)
}

func TestAccountInfoSignedGet(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/fapi/v2/account", r.URL.Path)

		verifySigned(t, r.URL.RawQuery)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		fmt.Fprint(w, `{"totalWalletBalance":"1000.00","availableBalance":"900.00","assets":[],"positions":[]}`)
	})

	c := newTestClient(t, handler)

	info, err := c.AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.00", info.TotalWalletBalance)
}

func TestTickerPriceUnsigned(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/ticker/price", r.URL.Path)
		assert.Equal(t, "symbol=BTCUSDT", r.URL.RawQuery)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.00"}`)
	})

	c := newTestClient(t, handler)

	price, err := c.TickerPrice(context.Background(), entity.BTCUSDT)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
}

func TestAPIErrorResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":-2019,"msg":"Margin is insufficient."}`)
	})

	c := newTestClient(t, handler)

	_, err := c.PlaceMarketOrder(context.Background(), entity.BTCUSDT, entity.Buy, 0.005)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int64(-2019), apiErr.Code)
	assert.Equal(t, "Margin is insufficient.", apiErr.Msg)
}

func TestDecodeErrorResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `this is not json`)
	})

	c := newTestClient(t, handler)

	_, err := c.AccountInfo(context.Background())
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse connections

	c := NewClient(srv.URL, "test-key", "test-secret")

	_, err := c.AccountInfo(context.Background())
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestSetLeverageBounds(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"leverage":10,"symbol":"BTCUSDT","maxNotionalValue":"1000000"}`)
	})

	c := newTestClient(t, handler)
	ctx := context.Background()

	// rejected locally, no network call
	assert.ErrorIs(t, c.SetLeverage(ctx, entity.BTCUSDT, 0), ErrInvalidInput)
	assert.ErrorIs(t, c.SetLeverage(ctx, entity.BTCUSDT, MaxLeverage+1), ErrInvalidInput)
	assert.Equal(t, int32(0), hits.Load())

	require.NoError(t, c.SetLeverage(ctx, entity.BTCUSDT, 10))
	assert.Equal(t, int32(1), hits.Load())
}

func TestClosePercentBounds(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	c := newTestClient(t, handler)
	ctx := context.Background()

	for _, percent := range []float64{0, -5, 150} {
		_, err := c.ClosePercentOfPosition(ctx, entity.BTCUSDT, percent)
		assert.ErrorIs(t, err, ErrInvalidInput, "percent %v", percent)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func positionRiskHandler(t *testing.T, positionAmt string, orderBody *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v2/positionRisk":
			fmt.Fprintf(w, `[{"symbol":"BTCUSDT","positionSide":"BOTH","positionAmt":%q,
				"entryPrice":"50000","markPrice":"50000","leverage":"10","unRealizedProfit":"0",
				"liquidationPrice":"0","notional":"0","updateTime":1}]`, positionAmt)
		case "/fapi/v1/order":
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			*orderBody = string(body)
			fmt.Fprint(w, orderJSON("FILLED", "0.005", "50000.00"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}
}

func TestClosePercentOfPosition(t *testing.T) {
	var orderBody string
	c := newTestClient(t, positionRiskHandler(t, "1.000", &orderBody))

	_, err := c.ClosePercentOfPosition(context.Background(), entity.BTCUSDT, 50)
	require.NoError(t, err)
	assert.Contains(t, orderBody, "side=SELL")
	assert.Contains(t, orderBody, "quantity=0.500")
}

func TestClosePercentShortPositionBuysBack(t *testing.T) {
	var orderBody string
	c := newTestClient(t, positionRiskHandler(t, "-1.000", &orderBody))

	_, err := c.ClosePercentOfPosition(context.Background(), entity.BTCUSDT, 50)
	require.NoError(t, err)
	assert.Contains(t, orderBody, "side=BUY")
	assert.Contains(t, orderBody, "quantity=0.500")
}

func TestClosePercentTinyFallsBackToFullClose(t *testing.T) {
	// 10% of 0.005 is 0.0005, below minQty, so the FULL position is closed
	var orderBody string
	c := newTestClient(t, positionRiskHandler(t, "0.005", &orderBody))

	_, err := c.ClosePercentOfPosition(context.Background(), entity.BTCUSDT, 10)
	require.NoError(t, err)
	assert.Contains(t, orderBody, "side=SELL")
	assert.Contains(t, orderBody, "quantity=0.005")
}

func TestCloseFullPositionNoop(t *testing.T) {
	var orderBody string
	c := newTestClient(t, positionRiskHandler(t, "0.000", &orderBody))

	resp, err := c.CloseFullPosition(context.Background(), entity.BTCUSDT)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Empty(t, orderBody)
}

func TestPlaceMinimumMarketOrder(t *testing.T) {
	var orderBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/ticker/price":
			fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.00"}`)
		case "/fapi/v1/order":
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			orderBody = string(body)
			fmt.Fprint(w, orderJSON("NEW", "0", "0"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	c := newTestClient(t, handler)

	resp, err := c.PlaceMinimumMarketOrder(context.Background(), entity.BTCUSDT, entity.Buy)
	require.NoError(t, err)
	assert.Equal(t, "NEW", resp.Status)

	// minNotional 100 at price 50000 -> 0.002, formatted with step precision
	assert.Contains(t, orderBody, "quantity=0.002")
	assert.Contains(t, orderBody, "side=BUY")
}

func TestOrderForUnknownSymbolRejectedLocally(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	c := newTestClient(t, handler) // only BTCUSDT filters loaded

	_, err := c.PlaceMinimumMarketOrder(context.Background(), entity.ETHUSDT, entity.Buy)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int32(0), hits.Load())
}

func TestListenKeyLifecycle(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/listenKey", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		assert.NotContains(t, r.URL.RawQuery, "signature")

		switch r.Method {
		case http.MethodPost:
			fmt.Fprint(w, `{"listenKey":"abc123"}`)
		case http.MethodPut, http.MethodDelete:
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	c := newTestClient(t, handler)
	ctx := context.Background()

	key, err := c.CreateListenKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	require.NoError(t, c.KeepAliveListenKey(ctx))
	require.NoError(t, c.CloseListenKey(ctx, key))
}

func TestLoadFilters(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		fmt.Fprint(w, `{"symbols":[
			{"symbol":"BTCUSDT","filters":[
				{"filterType":"LOT_SIZE","stepSize":"0.001","minQty":"0.001"},
				{"filterType":"PRICE_FILTER","tickSize":"0.10"},
				{"filterType":"MIN_NOTIONAL","notional":"100"}]},
			{"symbol":"ETHUSDT","filters":[
				{"filterType":"LOT_SIZE","stepSize":"0.01","minQty":"0.01"},
				{"filterType":"PRICE_FILTER","tickSize":"0.01"}]}]}`)
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "test-key", "test-secret")

	err := c.LoadFilters(context.Background(), []entity.Symbol{entity.BTCUSDT, entity.ETHUSDT})
	require.NoError(t, err)

	filters, err := c.symbolFilters(entity.BTCUSDT)
	require.NoError(t, err)
	assert.Equal(t, 100.0, filters.MinNotional)

	filters, err = c.symbolFilters(entity.ETHUSDT)
	require.NoError(t, err)
	assert.Equal(t, 0.0, filters.MinNotional)

	_, err = c.symbolFilters(entity.SOLUSDT)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPositionMode(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/positionSide/dual", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			verifySigned(t, r.URL.RawQuery)
			fmt.Fprint(w, `{"dualSidePosition":true}`)
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			payload := verifySigned(t, string(body))
			assert.Contains(t, payload, "dualSidePosition=false")
			fmt.Fprint(w, `{"code":200,"msg":"success"}`)
		}
	})

	c := newTestClient(t, handler)
	ctx := context.Background()

	dual, err := c.GetPositionMode(ctx)
	require.NoError(t, err)
	assert.True(t, dual)

	require.NoError(t, c.SetPositionMode(ctx, false))
}
