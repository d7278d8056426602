package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/pkg/util"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("paper account: insufficient funds")
	ErrOrderNotOpen      = errors.New("paper account: order is not open")
)

// Paper serves the signed endpoints from an in-process account and
// delegates market data to a live client. Orders fill immediately:
// MARKET at the current ticker price, LIMIT at the limit price.
// Selling more base than held leaves a negative balance, which is how
// short positions are carried.
type Paper struct {
	market domsvc.ExchangeClient
	quote  string

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	seq      int64
	now      func() time.Time
}

var _ domsvc.ExchangeClient = (*Paper)(nil)

// NewPaper seeds an account with balances. An empty map seeds 10000 of quote.
func NewPaper(market domsvc.ExchangeClient, quote string, balances map[string]float64) *Paper {
	if quote == "" {
		quote = "USDT"
	}
	p := &Paper{
		market:   market,
		quote:    strings.ToUpper(quote),
		balances: make(map[string]decimal.Decimal),
		now:      time.Now,
	}
	for asset, v := range balances {
		p.balances[strings.ToUpper(asset)] = decimal.NewFromFloat(v)
	}
	if len(p.balances) == 0 {
		p.balances[p.quote] = decimal.NewFromInt(10000)
	}
	return p
}

func (p *Paper) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return p.market.GetKlines(ctx, symbol, interval, limit)
}

func (p *Paper) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	return p.market.GetTickerPrice(ctx, symbol)
}

func (p *Paper) GetTicker24h(ctx context.Context, symbol string) (models.Ticker24h, error) {
	return p.market.GetTicker24h(ctx, symbol)
}

func (p *Paper) ListTickers24h(ctx context.Context) ([]models.Ticker24h, error) {
	return p.market.ListTickers24h(ctx)
}

func (p *Paper) GetAccountInfo(_ context.Context) (models.AccountInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	assets := make([]string, 0, len(p.balances))
	for a := range p.balances {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	acct := models.AccountInfo{Balances: make([]models.Balance, 0, len(assets))}
	for _, a := range assets {
		acct.Balances = append(acct.Balances, models.Balance{Asset: a, Free: p.balances[a].InexactFloat64()})
	}
	return acct, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	symbol := strings.ToUpper(req.Symbol)
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || !qty.IsPositive() {
		return models.OrderAck{}, fmt.Errorf("paper order %s: invalid quantity %q", symbol, req.Quantity)
	}

	var price decimal.Decimal
	switch req.Type {
	case models.OrderTypeLimit:
		price, err = decimal.NewFromString(req.Price)
		if err != nil || !price.IsPositive() {
			return models.OrderAck{}, fmt.Errorf("paper order %s: invalid price %q", symbol, req.Price)
		}
	default:
		last, err := p.market.GetTickerPrice(ctx, symbol)
		if err != nil {
			return models.OrderAck{}, fmt.Errorf("paper order %s: price: %w", symbol, err)
		}
		price = decimal.NewFromFloat(last)
	}

	base := util.BaseAsset(symbol, p.quote)
	notional := price.Mul(qty)

	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.Side {
	case models.OrderSideBuy:
		if p.balances[p.quote].LessThan(notional) {
			return models.OrderAck{}, ErrInsufficientFunds
		}
		p.balances[p.quote] = p.balances[p.quote].Sub(notional)
		p.balances[base] = p.balances[base].Add(qty)
	case models.OrderSideSell:
		p.balances[base] = p.balances[base].Sub(qty)
		p.balances[p.quote] = p.balances[p.quote].Add(notional)
	default:
		return models.OrderAck{}, fmt.Errorf("paper order %s: unknown side %q", symbol, req.Side)
	}

	p.seq++
	return models.OrderAck{
		OrderID:     fmt.Sprintf("paper-%d", p.seq),
		Symbol:      symbol,
		Side:        req.Side,
		Status:      "FILLED",
		Price:       price.InexactFloat64(),
		ExecutedQty: qty.InexactFloat64(),
		CreatedAt:   p.now().UTC(),
	}, nil
}

// GetOpenOrders is always empty since paper orders fill on placement.
func (p *Paper) GetOpenOrders(_ context.Context, _ string) ([]models.OrderAck, error) {
	return []models.OrderAck{}, nil
}

func (p *Paper) CancelOrder(_ context.Context, _ string, _ string) error {
	return ErrOrderNotOpen
}

// Select returns the live client when trading live, otherwise a paper account over it.
func Select(live bool, client *Client, quote string, balances map[string]float64) domsvc.ExchangeClient {
	if live {
		return client
	}
	return NewPaper(client, quote, balances)
}
