package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/repository"
	"CoinPull/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, models.Action, float64)         {}
func (nopMetrics) RecordTradeOpened(string, models.Side)               {}
func (nopMetrics) RecordTradeClosed(string, models.ExitReason, float64) {}
func (nopMetrics) RecordOpenPositions(int)                             {}
func (nopMetrics) RecordWeights(models.WeightsConfig)                  {}
func (nopMetrics) RecordScan(int, int, int)                            {}
func (nopMetrics) RecordMessageSent(string, string)                    {}
func (nopMetrics) RecordError(string)                                  {}
func (nopMetrics) RecordLastPrice(string, float64)                     {}
func (nopMetrics) RecordLatency(string, float64)                       {}

type mockExchange struct{ mock.Mock }

func (m *mockExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	c, _ := args.Get(0).([]models.Candle)
	return c, args.Error(1)
}

func (m *mockExchange) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockExchange) GetTicker24h(ctx context.Context, symbol string) (models.Ticker24h, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(models.Ticker24h), args.Error(1)
}

func (m *mockExchange) ListTickers24h(ctx context.Context) ([]models.Ticker24h, error) {
	args := m.Called(ctx)
	t, _ := args.Get(0).([]models.Ticker24h)
	return t, args.Error(1)
}

func (m *mockExchange) GetAccountInfo(ctx context.Context) (models.AccountInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AccountInfo), args.Error(1)
}

func (m *mockExchange) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.OrderAck), args.Error(1)
}

func (m *mockExchange) GetOpenOrders(ctx context.Context, symbol string) ([]models.OrderAck, error) {
	args := m.Called(ctx, symbol)
	o, _ := args.Get(0).([]models.OrderAck)
	return o, args.Error(1)
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return m.Called(ctx, symbol, orderID).Error(0)
}

// fakeOrders fills every order at a fixed price and records it.
type fakeOrders struct {
	mu    sync.Mutex
	price float64
	err   error
	reqs  []models.OrderRequest
}

func (f *fakeOrders) PlaceOrder(_ context.Context, req models.OrderRequest) (models.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return models.OrderAck{}, f.err
	}
	return models.OrderAck{OrderID: "ord-" + req.Symbol, Symbol: req.Symbol, Side: req.Side, Price: f.price}, nil
}

// stubSignals returns a fixed signal per symbol.
type stubSignals struct {
	mu      sync.Mutex
	signals map[string]models.Signal
	err     error
	calls   int
}

func (s *stubSignals) Generate(_ context.Context, symbol string) (models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return models.Signal{}, s.err
	}
	if sig, ok := s.signals[symbol]; ok {
		return sig, nil
	}
	return models.Signal{Symbol: symbol, Action: models.ActionHold, Confidence: 50}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func buySignal(symbol string, confidence float64) models.Signal {
	return models.Signal{
		Symbol:     symbol,
		Action:     models.ActionBuy,
		Confidence: confidence,
		FinalScore: confidence,
		Scores:     models.CategoryScores{Technical: 80, Fundamental: 60, Sentiment: 50, Momentum: 70},
	}
}

type managerDeps struct {
	orders  *fakeOrders
	signals *stubSignals
	store   *repository.MemoryTradeStore
	clock   *clock
}

func newTestManager(cfg LifecycleConfig, feedback FeedbackSink) (*PositionManager, managerDeps) {
	d := managerDeps{
		orders:  &fakeOrders{},
		signals: &stubSignals{signals: map[string]models.Signal{}},
		store:   repository.NewMemoryTradeStore(),
		clock:   newClock(),
	}
	rec := NewTradeRecorder(nil, d.store, nopMetrics{}, BackendMemory)
	m := NewPositionManager(d.orders, d.signals, feedback, rec, d.store, nopMetrics{}, logger.Nop(), cfg)
	m.now = d.clock.Now
	return m, d
}

func uptrendCandles(symbol string, n int) []models.Candle {
	out := make([]models.Candle, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := 100 * math.Pow(1.01, float64(i))
		out[i] = models.Candle{
			Symbol:   symbol,
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     c,
			High:     c * 1.01,
			Low:      c * 0.99,
			Close:    c,
			Volume:   1000,
		}
	}
	return out
}
