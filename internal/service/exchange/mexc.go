package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/service/ratelimit"
	pkghttp "CoinPull/pkg/http"
	"CoinPull/pkg/logger"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL    = "https://api.mexc.com"
	DefaultRecvWindow = 5000

	apiKeyHeader = "X-MEXC-APIKEY"
	limiterKey   = "mexc"
)

var ErrMissingCredentials = errors.New("mexc api credentials are not configured")

// APIError is a non-2xx answer from the exchange.
type APIError struct {
	Status int
	Code   int64
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mexc http %d: code=%d msg=%s", e.Status, e.Code, e.Msg)
}

// Client is the MEXC spot REST v3 client.
type Client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	recvWindow int
	timeout    time.Duration
	burst      float64
	perSecond  float64

	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger
	now     func() time.Time
}

var _ domsvc.ExchangeClient = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithCredentials(apiKey, secretKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
		c.secretKey = secretKey
	}
}

func WithRecvWindow(ms int) Option {
	return func(c *Client) {
		if ms > 0 {
			c.recvWindow = ms
		}
	}
}

// WithTimeout bounds every call, including the wait for a rate limit token.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit sets the client side token bucket. perSecond <= 0 disables it.
func WithRateLimit(burst, perSecond float64) Option {
	return func(c *Client) {
		c.burst = burst
		c.perSecond = perSecond
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a MEXC client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		recvWindow: DefaultRecvWindow,
		timeout:    10 * time.Second,
		burst:      10,
		perSecond:  10,
		limiter:    ratelimit.New(),
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = pkghttp.NewClient(pkghttp.WithTimeout(c.timeout))
	return c
}

// HasCredentials reports whether signed endpoints can be called.
func (c *Client) HasCredentials() bool { return c.apiKey != "" && c.secretKey != "" }

// GetKlines returns chronological candles. interval is a timeframe such as 1m or 1h.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", domrepo.NormalizeTimeframe(interval).ExchangeInterval())
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.public(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, err
	}
	return parseKlines(strings.ToUpper(symbol), body)
}

func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	body, err := c.public(ctx, "/api/v3/ticker/price", q)
	if err != nil {
		return 0, err
	}
	price := gjson.GetBytes(body, "price").Float()
	if price <= 0 {
		return 0, fmt.Errorf("mexc ticker price %s: no price in response", symbol)
	}
	return price, nil
}

func (c *Client) GetTicker24h(ctx context.Context, symbol string) (models.Ticker24h, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	body, err := c.public(ctx, "/api/v3/ticker/24hr", q)
	if err != nil {
		return models.Ticker24h{}, err
	}
	res := gjson.ParseBytes(body)
	if res.IsArray() {
		res = res.Get("0")
	}
	if !res.Exists() {
		return models.Ticker24h{}, fmt.Errorf("mexc ticker 24h %s: empty response", symbol)
	}
	return parseTicker(res), nil
}

func (c *Client) ListTickers24h(ctx context.Context) ([]models.Ticker24h, error) {
	body, err := c.public(ctx, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, fmt.Errorf("mexc tickers: expected array")
	}
	arr := res.Array()
	out := make([]models.Ticker24h, 0, len(arr))
	for _, r := range arr {
		t := parseTicker(r)
		if t.Symbol == "" {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) GetAccountInfo(ctx context.Context) (models.AccountInfo, error) {
	body, err := c.signed(ctx, pkghttp.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return models.AccountInfo{}, err
	}
	return parseAccount(body), nil
}

func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(req.Symbol))
	q.Set("side", string(req.Side))
	typ := req.Type
	if typ == "" {
		typ = models.OrderTypeMarket
	}
	q.Set("type", string(typ))
	q.Set("quantity", req.Quantity)
	if typ == models.OrderTypeLimit {
		if req.Price == "" {
			return models.OrderAck{}, fmt.Errorf("mexc order %s: limit order without price", req.Symbol)
		}
		q.Set("price", req.Price)
	}
	body, err := c.signed(ctx, pkghttp.MethodPost, "/api/v3/order", q)
	if err != nil {
		return models.OrderAck{}, err
	}
	ack := parseOrder(gjson.ParseBytes(body))
	if ack.OrderID == "" {
		return models.OrderAck{}, fmt.Errorf("mexc order %s: no order id in response", req.Symbol)
	}
	c.log.Info("order placed",
		logger.String("symbol", ack.Symbol),
		logger.String("side", string(ack.Side)),
		logger.String("order_id", ack.OrderID),
		logger.String("quantity", req.Quantity))
	return ack, nil
}

func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]models.OrderAck, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	body, err := c.signed(ctx, pkghttp.MethodGet, "/api/v3/openOrders", q)
	if err != nil {
		return nil, err
	}
	arr := gjson.ParseBytes(body).Array()
	out := make([]models.OrderAck, 0, len(arr))
	for _, r := range arr {
		out = append(out, parseOrder(r))
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("orderId", orderID)
	_, err := c.signed(ctx, pkghttp.MethodDelete, "/api/v3/order", q)
	return err
}

// Sign returns the hex HMAC-SHA256 of payload under the secret key.
func (c *Client) Sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) public(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.do(ctx, pkghttp.MethodGet, u, nil)
}

// signed appends timestamp and recvWindow, then the signature over the encoded query.
func (c *Client) signed(ctx context.Context, method, path string, q url.Values) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	q.Set("recvWindow", strconv.Itoa(c.recvWindow))
	query := q.Encode()
	u := c.baseURL + path + "?" + query + "&signature=" + c.Sign(query)
	return c.do(ctx, method, u, map[string]string{
		apiKeyHeader:   c.apiKey,
		"Content-Type": "application/json",
	})
}

func (c *Client) do(ctx context.Context, method, u string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx, limiterKey, c.burst, c.perSecond); err != nil {
		return nil, fmt.Errorf("mexc rate limit: %w", err)
	}

	resp, err := c.http.Do(ctx, &pkghttp.RequestOptions{Method: method, URL: u, Headers: headers})
	if err != nil {
		return nil, err
	}
	body := resp.Body
	if !resp.OK() {
		apiErr := &APIError{Status: resp.StatusCode, Code: gjson.GetBytes(body, "code").Int(), Msg: gjson.GetBytes(body, "msg").String()}
		if apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(body))
		}
		c.log.Warn("mexc request failed", logger.String("method", method), logger.Int("status", resp.StatusCode), logger.String("msg", apiErr.Msg))
		return nil, apiErr
	}
	return body, nil
}
