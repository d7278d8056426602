package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CoinPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(append([]Option{WithBaseURL(srv.URL), WithRateLimit(100, 0)}, opts...)...)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestSign(t *testing.T) {
	c := NewClient(WithCredentials("key", "secret"))
	assert.Equal(t, "6244d11c958f45ac56733152cb3cb1831d23a2b3709b3a88b8b42a072aceb410",
		c.Sign("symbol=BTCUSDT&timestamp=1700000000000"))
}

func TestGetKlines(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "60m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[[1700000000000,"100.5","101","99","100.8","12.5",1700003599999,"1250"],
			[1700003600000,"100.8","102.2","100.1","102","7",1700007199999,"700"]]`))
	})

	candles, err := c.GetKlines(context.Background(), "btcusdt", "1h", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, models.Candle{
		Symbol:   "BTCUSDT",
		OpenTime: time.UnixMilli(1700000000000).UTC(),
		Open:     100.5, High: 101, Low: 99, Close: 100.8, Volume: 12.5,
	}, candles[0])
	assert.Equal(t, 102.0, candles[1].Close)
}

func TestGetKlinesRejectsShortRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1700000000000,"100.5"]]`))
	})
	_, err := c.GetKlines(context.Background(), "BTCUSDT", "1m", 1)
	assert.Error(t, err)
}

func TestTickers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v3/ticker/price":
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"2500.25"}`))
		case r.URL.Query().Get("symbol") != "":
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","lastPrice":"2500.25","priceChangePercent":"3.5","volume":"1200","quoteVolume":"3000000","highPrice":"2550","lowPrice":"2400"}`))
		default:
			_, _ = w.Write([]byte(`[{"symbol":"ETHUSDT","lastPrice":"2500"},{"symbol":"BTCUSDT","lastPrice":"60000"},{"lastPrice":"1"}]`))
		}
	})
	ctx := context.Background()

	price, err := c.GetTickerPrice(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2500.25, price)

	tk, err := c.GetTicker24h(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3.5, tk.PriceChangePercent)
	assert.Equal(t, 3000000.0, tk.QuoteVolume)
	assert.Equal(t, 2400.0, tk.LowPrice)

	all, err := c.ListTickers24h(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTCUSDT", all[1].Symbol)
}

func TestSignedRequest(t *testing.T) {
	verify := NewClient(WithCredentials("key", "secret"))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get(apiKeyHeader))
		raw := r.URL.RawQuery
		idx := strings.Index(raw, "&signature=")
		if idx < 0 {
			t.Errorf("no signature in %q", raw)
			return
		}
		assert.Equal(t, verify.Sign(raw[:idx]), raw[idx+len("&signature="):])
		assert.Equal(t, "1700000000000", r.URL.Query().Get("timestamp"))
		assert.Equal(t, "5000", r.URL.Query().Get("recvWindow"))
		_, _ = w.Write([]byte(`{"balances":[{"asset":"USDT","free":"1500.5","locked":"10"},{"asset":"BTC","free":"0.25","locked":"0"}]}`))
	}, WithCredentials("key", "secret"))

	acct, err := c.GetAccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500.5, acct.Free("USDT"))
	assert.Equal(t, 0.25, acct.Free("BTC"))
	assert.Equal(t, 0.0, acct.Free("ETH"))
}

func TestSignedRequiresCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request")
	})
	_, err := c.GetAccountInfo(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestPlaceOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.500000", q.Get("quantity"))
		assert.Empty(t, q.Get("price"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":"C02__1","side":"BUY","type":"MARKET","transactTime":1700000000000,"price":"0","executedQty":"0.5","cummulativeQuoteQty":"50"}`))
	}, WithCredentials("key", "secret"))

	ack, err := c.PlaceOrder(context.Background(), models.OrderRequest{
		Symbol: "BTCUSDT", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Quantity: "0.500000",
	})
	require.NoError(t, err)
	assert.Equal(t, "C02__1", ack.OrderID)
	assert.Equal(t, models.OrderSideBuy, ack.Side)
	assert.Equal(t, 100.0, ack.Price)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), ack.CreatedAt)
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":30004,"msg":"Insufficient position"}`))
	}, WithCredentials("key", "secret"))

	err := c.CancelOrder(context.Background(), "BTCUSDT", "1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, int64(30004), apiErr.Code)
	assert.Equal(t, "Insufficient position", apiErr.Msg)
}
