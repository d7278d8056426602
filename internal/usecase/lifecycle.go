package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	applogger "CoinPull/pkg/logger"
)

// LifecycleConfig holds the exit rules and the position cap.
type LifecycleConfig struct {
	MaxPositions       int
	MaxHold            time.Duration
	TakeProfitPct      float64
	StopLossPct        float64 // positive; a position closes below -StopLossPct
	ReversalConfidence float64
	OrderTimeout       time.Duration
	QuantityPrecision  int32
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		MaxPositions:       3,
		MaxHold:            168 * time.Hour,
		TakeProfitPct:      15,
		StopLossPct:        8,
		ReversalConfidence: 75,
		OrderTimeout:       10 * time.Second,
		QuantityPrecision:  6,
	}
}

// FeedbackSink receives the outcome of every closed trade.
type FeedbackSink interface {
	ApplyFeedback(o models.TradeOutcome) models.WeightsConfig
}

// OpenRequest carries a filled entry order into the lifecycle.
type OpenRequest struct {
	TradeID  string
	Signal   models.Signal
	Price    float64
	Quantity float64
	Leverage float64
	OrderID  string
}

// PositionManager exclusively owns open positions and their trades.
// Every mutation runs under its lock; closes are additionally serialized so
// the exit order is never placed twice for one position.
type PositionManager struct {
	mu        sync.RWMutex
	positions map[string]*models.Position
	trades    map[string]*models.Trade // open trades by symbol

	closeMu sync.Mutex

	exits    domsvc.OrderPlacer
	signals  domsvc.SignalSource
	feedback FeedbackSink
	recorder *TradeRecorder
	store    drepo.TradeStore
	metrics  drepo.Metrics
	logger   *applogger.Logger
	cfg      LifecycleConfig
	now      func() time.Time
}

func NewPositionManager(
	exits domsvc.OrderPlacer,
	signals domsvc.SignalSource,
	feedback FeedbackSink,
	recorder *TradeRecorder,
	store drepo.TradeStore,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	cfg LifecycleConfig,
) *PositionManager {
	return &PositionManager{
		positions: map[string]*models.Position{},
		trades:    map[string]*models.Trade{},
		exits:     exits,
		signals:   signals,
		feedback:  feedback,
		recorder:  recorder,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CanOpen reports whether a new position on symbol would respect the caps.
func (m *PositionManager) CanOpen(symbol string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canOpenLocked(symbol)
}

func (m *PositionManager) canOpenLocked(symbol string) error {
	if _, ok := m.positions[symbol]; ok {
		return fmt.Errorf("%s: %w", symbol, models.ErrPositionExists)
	}
	if len(m.positions) >= m.cfg.MaxPositions {
		return fmt.Errorf("%d open: %w", len(m.positions), models.ErrMaxPositions)
	}
	return nil
}

// Open creates the position and its OPEN trade atomically.
func (m *PositionManager) Open(ctx context.Context, req OpenRequest) (models.Trade, error) {
	sig := req.Signal
	if !sig.IsActionable() {
		return models.Trade{}, fmt.Errorf("open %s: action %s is not tradable", sig.Symbol, sig.Action)
	}
	if req.Price <= 0 || req.Quantity <= 0 {
		return models.Trade{}, fmt.Errorf("open %s: price and quantity must be positive", sig.Symbol)
	}
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = 1
	}

	now := m.now()
	side := models.SideForAction(sig.Action)
	trade := models.Trade{
		ID:           req.TradeID,
		Symbol:       sig.Symbol,
		Action:       sig.Action,
		Side:         side,
		EntryPrice:   req.Price,
		Quantity:     req.Quantity,
		Leverage:     leverage,
		EntryTime:    now,
		Status:       models.TradeOpen,
		Confidence:   sig.Confidence,
		Reasoning:    sig.Reasoning,
		Scores:       sig.Scores,
		EntryOrderID: req.OrderID,
		Version:      1,
	}
	pos := &models.Position{
		TradeID:    trade.ID,
		Symbol:     trade.Symbol,
		Side:       side,
		Quantity:   trade.Quantity,
		EntryPrice: trade.EntryPrice,
		Leverage:   leverage,
		EntryTime:  now,
	}
	pos.Reprice(req.Price, now)

	m.mu.Lock()
	if err := m.canOpenLocked(sig.Symbol); err != nil {
		m.mu.Unlock()
		return models.Trade{}, err
	}
	m.positions[sig.Symbol] = pos
	m.trades[sig.Symbol] = &trade
	open := len(m.positions)
	m.mu.Unlock()

	m.metrics.RecordTradeOpened(trade.Symbol, side)
	m.metrics.RecordOpenPositions(open)
	m.record(ctx, EventTradeOpened, trade)

	m.logger.Info("position opened",
		applogger.String("trade_id", trade.ID),
		applogger.String("symbol", trade.Symbol),
		applogger.String("side", string(side)),
		applogger.Float64("price", trade.EntryPrice),
		applogger.Float64("quantity", trade.Quantity),
		applogger.Float64("confidence", trade.Confidence),
	)
	return trade, nil
}

// UpdatePrice reprices the open position of symbol, if any.
func (m *PositionManager) UpdatePrice(symbol string, price float64, at time.Time) bool {
	if price <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[symbol]
	if !ok {
		return false
	}
	pos.Reprice(price, at)
	return true
}

// PriceSource returns a last price for a symbol.
type PriceSource interface {
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}

// RefreshPrices polls the last price of every open position. Symbols whose
// price cannot be fetched keep their previous price.
func (m *PositionManager) RefreshPrices(ctx context.Context, prices PriceSource, timeout time.Duration) map[string]string {
	failed := map[string]string{}
	for _, sym := range m.Symbols() {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		price, err := prices.GetTickerPrice(cctx, sym)
		cancel()
		if err != nil {
			m.metrics.RecordError("price_refresh")
			failed[sym] = err.Error()
			continue
		}
		m.UpdatePrice(sym, price, m.now())
		m.metrics.RecordLastPrice(sym, price)
	}
	return failed
}

// RunPriceFeed drains ticks into the open positions until ctx ends or ticks closes.
func (m *PositionManager) RunPriceFeed(ctx context.Context, ticks <-chan models.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			at := t.Timestamp
			if at.IsZero() {
				at = m.now()
			}
			m.UpdatePrice(t.Symbol, t.Price, at)
		}
	}
}

// ExitFor returns the first exit rule matched by the position, in priority
// order: max hold time, take profit, stop loss, signal reversal.
func (m *PositionManager) ExitFor(ctx context.Context, pos models.Position) (models.ExitReason, bool) {
	switch {
	case m.cfg.MaxHold > 0 && pos.Age(m.now()) > m.cfg.MaxHold:
		return models.ExitMaxHoldTime, true
	case pos.UnrealizedPnLPct > m.cfg.TakeProfitPct:
		return models.ExitTakeProfit, true
	case pos.UnrealizedPnLPct < -m.cfg.StopLossPct:
		return models.ExitStopLoss, true
	}
	if m.signals == nil {
		return "", false
	}

	sig, err := m.signals.Generate(ctx, pos.Symbol)
	if err != nil {
		m.logger.Warn("reversal check skipped", applogger.String("symbol", pos.Symbol), applogger.Error(err))
		return "", false
	}
	entry := models.ActionBuy
	if pos.Side == models.SideShort {
		entry = models.ActionSell
	}
	if sig.Action == entry.Opposite() && sig.Confidence > m.cfg.ReversalConfidence {
		return models.ExitSignalReversal, true
	}
	return "", false
}

// EvaluateExits closes every position matching an exit rule. A failed close
// leaves the position open and is reported in the error map.
func (m *PositionManager) EvaluateExits(ctx context.Context) ([]models.Trade, map[string]string) {
	var closed []models.Trade
	failed := map[string]string{}
	for _, pos := range m.Positions() {
		reason, ok := m.ExitFor(ctx, pos)
		if !ok {
			continue
		}
		t, err := m.Close(ctx, pos.Symbol, reason)
		if err != nil {
			failed[pos.Symbol] = err.Error()
			continue
		}
		closed = append(closed, t)
	}
	return closed, failed
}

// Close exits the position on symbol at the exit order fill price, marks the
// trade CLOSED and feeds the outcome back into the weights.
func (m *PositionManager) Close(ctx context.Context, symbol string, reason models.ExitReason) (models.Trade, error) {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	m.mu.RLock()
	p, ok := m.positions[symbol]
	var pos models.Position
	if ok {
		pos = *p
	}
	m.mu.RUnlock()
	if !ok {
		return models.Trade{}, fmt.Errorf("%s: %w", symbol, models.ErrPositionNotFound)
	}

	exitPrice := pos.CurrentPrice
	var orderID string
	if m.exits != nil {
		ack, err := m.placeExit(ctx, pos)
		if err != nil {
			m.metrics.RecordError("exit_order")
			return models.Trade{}, models.NewOrderError(models.ReasonOrderRejected, symbol, err)
		}
		orderID = ack.OrderID
		if ack.Price > 0 {
			exitPrice = ack.Price
		}
	}
	if exitPrice <= 0 {
		exitPrice = pos.EntryPrice
	}

	now := m.now()
	m.mu.Lock()
	tp := m.trades[symbol]
	tp.ExitPrice = exitPrice
	tp.ExitTime = &now
	tp.Status = models.TradeClosed
	tp.ExitOrderID = orderID
	tp.ExitReason = reason
	tp.RealizedPnL = models.PnL(tp.Side, tp.EntryPrice, exitPrice, tp.Quantity)
	tp.RealizedPnLPct = models.ProfitPct(tp.Side, tp.EntryPrice, exitPrice)
	tp.Version++
	trade := *tp
	delete(m.trades, symbol)
	delete(m.positions, symbol)
	open := len(m.positions)
	m.mu.Unlock()

	m.record(ctx, EventTradeClosed, trade)
	m.metrics.RecordTradeClosed(symbol, reason, trade.RealizedPnLPct)
	m.metrics.RecordOpenPositions(open)

	if m.feedback != nil {
		w := m.feedback.ApplyFeedback(trade.Outcome())
		m.metrics.RecordWeights(w)
	}

	m.logger.Info("position closed",
		applogger.String("trade_id", trade.ID),
		applogger.String("symbol", symbol),
		applogger.String("reason", string(reason)),
		applogger.Float64("exit_price", exitPrice),
		applogger.Float64("profit_pct", trade.RealizedPnLPct),
	)
	return trade, nil
}

func (m *PositionManager) placeExit(ctx context.Context, pos models.Position) (models.OrderAck, error) {
	if m.cfg.OrderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.OrderTimeout)
		defer cancel()
	}
	return m.exits.PlaceOrder(ctx, models.OrderRequest{
		Symbol:   pos.Symbol,
		Side:     pos.Side.ExitSide(),
		Type:     models.OrderTypeMarket,
		Quantity: strconv.FormatFloat(pos.Quantity, 'f', int(m.cfg.QuantityPrecision), 64),
	})
}

// Restore reloads OPEN trades from the store. Trades beyond the position cap stay in the store untouched.
func (m *PositionManager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	open, err := m.store.OpenTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore positions: %w", err)
	}
	sort.Slice(open, func(i, j int) bool { return open[i].EntryTime.Before(open[j].EntryTime) })

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range open {
		t := open[i]
		if err := m.canOpenLocked(t.Symbol); err != nil {
			m.logger.Warn("skipping restored trade", applogger.String("trade_id", t.ID), applogger.Error(err))
			continue
		}
		pos := &models.Position{
			TradeID:    t.ID,
			Symbol:     t.Symbol,
			Side:       t.Side,
			Quantity:   t.Quantity,
			EntryPrice: t.EntryPrice,
			Leverage:   t.Leverage,
			EntryTime:  t.EntryTime,
		}
		pos.Reprice(t.EntryPrice, m.now())
		m.positions[t.Symbol] = pos
		m.trades[t.Symbol] = &t
		n++
	}
	m.metrics.RecordOpenPositions(len(m.positions))
	return n, nil
}

// Positions returns copies of the open positions sorted by symbol.
func (m *PositionManager) Positions() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Position returns the open position of symbol.
func (m *PositionManager) Position(symbol string) (models.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[symbol]
	if !ok {
		return models.Position{}, fmt.Errorf("%s: %w", symbol, models.ErrPositionNotFound)
	}
	return *p, nil
}

// OpenTrades returns copies of the OPEN trades.
func (m *PositionManager) OpenTrades() []models.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols lists the symbols with an open position.
func (m *PositionManager) Symbols() []string {
	ps := m.Positions()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Symbol
	}
	return out
}

func (m *PositionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// record never fails the state change; the order is already on the exchange.
func (m *PositionManager) record(ctx context.Context, event string, t models.Trade) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(ctx, event, t); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("trade record failed",
			applogger.String("trade_id", t.ID),
			applogger.String("event", event),
			applogger.Error(err),
		)
	}
}
