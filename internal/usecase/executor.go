package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	applogger "CoinPull/pkg/logger"
)

// ExecutorConfig sizes and gates orders.
type ExecutorConfig struct {
	PositionSizePct   float64
	MaxLeverage       float64
	MinConfidence     float64
	MinBalance        float64
	QuantityPrecision int32
	QuoteAsset        string
	CallTimeout       time.Duration
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		PositionSizePct:   33.33,
		MaxLeverage:       5,
		MinConfidence:     70,
		MinBalance:        50,
		QuantityPrecision: 6,
		QuoteAsset:        "USDT",
		CallTimeout:       10 * time.Second,
	}
}

// TradeExecutor turns approved signals into filled orders and hands them to the lifecycle.
// Executions are serialized.
type TradeExecutor struct {
	mu        sync.Mutex
	exchange  domsvc.ExchangeClient
	positions *PositionManager
	metrics   drepo.Metrics
	logger    *applogger.Logger
	cfg       ExecutorConfig
	enabled   atomic.Bool
	newID     func() string
}

func NewTradeExecutor(exchange domsvc.ExchangeClient, positions *PositionManager, metrics drepo.Metrics, logger *applogger.Logger, cfg ExecutorConfig) *TradeExecutor {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	e := &TradeExecutor{
		exchange:  exchange,
		positions: positions,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		newID:     func() string { return uuid.NewString() },
	}
	e.enabled.Store(true)
	return e
}

// SetEnabled toggles execution. A disabled executor rejects new signals;
// an execution already past the gate completes.
func (e *TradeExecutor) SetEnabled(v bool) { e.enabled.Store(v) }

func (e *TradeExecutor) Enabled() bool { return e.enabled.Load() }

// Leverage picks the leverage tier for a confidence, capped at MaxLeverage.
func (e *TradeExecutor) Leverage(confidence float64) float64 {
	lev := 1.0
	switch {
	case confidence >= 85:
		lev = 3
	case confidence >= 80:
		lev = 2
	}
	if e.cfg.MaxLeverage > 0 && lev > e.cfg.MaxLeverage {
		lev = e.cfg.MaxLeverage
	}
	return lev
}

// Quantity floors notional/price to the configured precision.
func (e *TradeExecutor) Quantity(notional, price float64) decimal.Decimal {
	if price <= 0 {
		return decimal.Zero
	}
	q := decimal.NewFromFloat(notional).Div(decimal.NewFromFloat(price))
	return q.RoundFloor(e.cfg.QuantityPrecision)
}

// Execute places a market order for sig. Any failure is an *models.OrderExecutionError
// and leaves no position or trade behind.
func (e *TradeExecutor) Execute(ctx context.Context, sig models.Signal) (models.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbol := strings.ToUpper(sig.Symbol)
	sig.Symbol = symbol
	fail := func(reason models.OrderFailureReason, err error) (models.Trade, error) {
		e.metrics.RecordError("execute_" + string(reason))
		return models.Trade{}, models.NewOrderError(reason, symbol, err)
	}

	if !e.Enabled() {
		return fail(models.ReasonTradingDisabled, models.ErrTradingDisabled)
	}
	if !sig.IsActionable() {
		return fail(models.ReasonHoldSignal, nil)
	}
	if sig.Confidence < e.cfg.MinConfidence {
		return fail(models.ReasonLowConfidence, fmt.Errorf("confidence %.1f < %.1f", sig.Confidence, e.cfg.MinConfidence))
	}
	if err := e.positions.CanOpen(symbol); err != nil {
		if errors.Is(err, models.ErrPositionExists) {
			return fail(models.ReasonPositionExists, err)
		}
		return fail(models.ReasonMaxPositions, err)
	}

	price, err := e.price(ctx, symbol)
	if err != nil {
		return fail(models.ReasonPriceUnavailable, err)
	}
	balance, err := e.balance(ctx)
	if err != nil {
		return fail(models.ReasonBalanceUnavailable, err)
	}
	if balance < e.cfg.MinBalance {
		return fail(models.ReasonInsufficientBalance, fmt.Errorf("free %s %.2f < %.2f", e.cfg.QuoteAsset, balance, e.cfg.MinBalance))
	}

	leverage := e.Leverage(sig.Confidence)
	notional := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(e.cfg.PositionSizePct)).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(leverage))
	// spot orders cannot exceed the free balance
	if free := decimal.NewFromFloat(balance); notional.GreaterThan(free) {
		notional = free
	}
	qty := e.Quantity(notional.InexactFloat64(), price)
	if !qty.IsPositive() {
		return fail(models.ReasonLotSize, fmt.Errorf("notional %s at price %.8f rounds to zero", notional.StringFixed(2), price))
	}

	side := models.SideForAction(sig.Action)
	ack, err := e.place(ctx, models.OrderRequest{
		Symbol:   symbol,
		Side:     side.EntrySide(),
		Type:     models.OrderTypeMarket,
		Quantity: qty.String(),
	})
	if err != nil {
		return fail(models.ReasonOrderRejected, err)
	}

	fillPrice, fillQty := price, qty.InexactFloat64()
	if ack.Price > 0 {
		fillPrice = ack.Price
	}
	if ack.ExecutedQty > 0 {
		fillQty = ack.ExecutedQty
	}

	trade, err := e.positions.Open(ctx, OpenRequest{
		TradeID:  e.newID(),
		Signal:   sig,
		Price:    fillPrice,
		Quantity: fillQty,
		Leverage: leverage,
		OrderID:  ack.OrderID,
	})
	if err != nil {
		e.compensate(ctx, symbol, side, fillQty)
		return fail(models.ReasonRecordFailed, err)
	}

	e.logger.Info("order executed",
		applogger.String("symbol", symbol),
		applogger.String("side", string(side)),
		applogger.String("order_id", ack.OrderID),
		applogger.String("quantity", qty.String()),
		applogger.Float64("price", fillPrice),
		applogger.Float64("leverage", leverage),
	)
	return trade, nil
}

func (e *TradeExecutor) price(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	p, err := e.exchange.GetTickerPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if p <= 0 {
		return 0, fmt.Errorf("non-positive price %.8f", p)
	}
	return p, nil
}

func (e *TradeExecutor) balance(ctx context.Context) (float64, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	acct, err := e.exchange.GetAccountInfo(ctx)
	if err != nil {
		return 0, err
	}
	return acct.Free(e.cfg.QuoteAsset), nil
}

func (e *TradeExecutor) place(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	return e.exchange.PlaceOrder(ctx, req)
}

// compensate unwinds a filled entry the lifecycle refused to record.
func (e *TradeExecutor) compensate(ctx context.Context, symbol string, side models.Side, qty float64) {
	_, err := e.place(ctx, models.OrderRequest{
		Symbol:   symbol,
		Side:     side.ExitSide(),
		Type:     models.OrderTypeMarket,
		Quantity: decimal.NewFromFloat(qty).RoundFloor(e.cfg.QuantityPrecision).String(),
	})
	if err != nil {
		e.logger.Error("compensating order failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
}

func (e *TradeExecutor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}
