package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
	"CoinPull/pkg/logger"
)

func usdt(free float64) models.AccountInfo {
	return models.AccountInfo{Balances: []models.Balance{{Asset: "USDT", Free: free}}}
}

func newTestExecutor(ex *mockExchange) (*TradeExecutor, *PositionManager) {
	m, _ := newTestManager(DefaultLifecycleConfig(), nil)
	e := NewTradeExecutor(ex, m, nopMetrics{}, logger.Nop(), DefaultExecutorConfig())
	e.newID = func() string { return "trade-1" }
	return e, m
}

func reasonOf(t *testing.T, err error) models.OrderFailureReason {
	t.Helper()
	var oe *models.OrderExecutionError
	require.ErrorAs(t, err, &oe)
	return oe.Reason
}

func TestExecuteOpensPosition(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetTickerPrice", mock.Anything, "BTCUSDT").Return(50000.0, nil)
	ex.On("GetAccountInfo", mock.Anything).Return(usdt(10000), nil)
	ex.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r models.OrderRequest) bool {
		return r.Symbol == "BTCUSDT" && r.Side == models.OrderSideBuy && r.Type == models.OrderTypeMarket
	})).Return(models.OrderAck{OrderID: "o-1", Price: 50010}, nil)

	e, m := newTestExecutor(ex)
	tr, err := e.Execute(context.Background(), buySignal("btcusdt", 82))
	require.NoError(t, err)

	assert.Equal(t, "trade-1", tr.ID)
	assert.Equal(t, "BTCUSDT", tr.Symbol)
	assert.Equal(t, 2.0, tr.Leverage)
	assert.Equal(t, 50010.0, tr.EntryPrice)
	assert.Equal(t, "o-1", tr.EntryOrderID)
	// 10000 * 33.33% * 2 = 6666 USDT at 50000
	assert.InDelta(t, 0.13332, tr.Quantity, 1e-12)
	assert.Equal(t, 1, m.Count())

	req := ex.Calls[2].Arguments.Get(1).(models.OrderRequest)
	assert.Equal(t, "0.13332", req.Quantity)
	ex.AssertExpectations(t)
}

func TestExecuteCapsNotionalAtFreeBalance(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetTickerPrice", mock.Anything, "ETHUSDT").Return(100.0, nil)
	ex.On("GetAccountInfo", mock.Anything).Return(usdt(1000), nil)
	ex.On("PlaceOrder", mock.Anything, mock.Anything).Return(models.OrderAck{OrderID: "o"}, nil)

	e, _ := newTestExecutor(ex)
	tr, err := e.Execute(context.Background(), buySignal("ETHUSDT", 90))
	require.NoError(t, err)
	// 1000 * 33.33% * 3 = 999.9 stays under the free balance
	assert.InDelta(t, 9.999, tr.Quantity, 1e-12)
	assert.Equal(t, 3.0, tr.Leverage)
}

func TestExecuteGates(t *testing.T) {
	hold := buySignal("BTCUSDT", 90)
	hold.Action = models.ActionHold

	cases := []struct {
		name   string
		sig    models.Signal
		setup  func(*mockExchange)
		reason models.OrderFailureReason
	}{
		{name: "hold", sig: hold, reason: models.ReasonHoldSignal},
		{name: "low confidence", sig: buySignal("BTCUSDT", 69.9), reason: models.ReasonLowConfidence},
		{
			name: "price unavailable",
			sig:  buySignal("BTCUSDT", 80),
			setup: func(ex *mockExchange) {
				ex.On("GetTickerPrice", mock.Anything, "BTCUSDT").Return(0.0, errors.New("timeout"))
			},
			reason: models.ReasonPriceUnavailable,
		},
		{
			name: "insufficient balance",
			sig:  buySignal("BTCUSDT", 80),
			setup: func(ex *mockExchange) {
				ex.On("GetTickerPrice", mock.Anything, "BTCUSDT").Return(100.0, nil)
				ex.On("GetAccountInfo", mock.Anything).Return(usdt(49), nil)
			},
			reason: models.ReasonInsufficientBalance,
		},
		{
			name: "lot size",
			sig:  buySignal("BTCUSDT", 80),
			setup: func(ex *mockExchange) {
				ex.On("GetTickerPrice", mock.Anything, "BTCUSDT").Return(1e9, nil)
				ex.On("GetAccountInfo", mock.Anything).Return(usdt(60), nil)
			},
			reason: models.ReasonLotSize,
		},
		{
			name: "order rejected",
			sig:  buySignal("BTCUSDT", 80),
			setup: func(ex *mockExchange) {
				ex.On("GetTickerPrice", mock.Anything, "BTCUSDT").Return(100.0, nil)
				ex.On("GetAccountInfo", mock.Anything).Return(usdt(1000), nil)
				ex.On("PlaceOrder", mock.Anything, mock.Anything).Return(models.OrderAck{}, errors.New("rejected"))
			},
			reason: models.ReasonOrderRejected,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &mockExchange{}
			if tc.setup != nil {
				tc.setup(ex)
			}
			e, m := newTestExecutor(ex)
			_, err := e.Execute(context.Background(), tc.sig)
			assert.Equal(t, tc.reason, reasonOf(t, err))
			assert.Equal(t, 0, m.Count(), "no position may remain after a failure")
			ex.AssertExpectations(t)
		})
	}
}

func TestExecuteDisabled(t *testing.T) {
	e, _ := newTestExecutor(&mockExchange{})
	e.SetEnabled(false)
	_, err := e.Execute(context.Background(), buySignal("BTCUSDT", 90))
	assert.Equal(t, models.ReasonTradingDisabled, reasonOf(t, err))
	assert.ErrorIs(t, err, models.ErrTradingDisabled)
}

func TestExecuteExistingPosition(t *testing.T) {
	e, m := newTestExecutor(&mockExchange{})
	_, err := m.Open(context.Background(), OpenRequest{TradeID: "x", Signal: buySignal("BTCUSDT", 80), Price: 1, Quantity: 1})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), buySignal("BTCUSDT", 90))
	assert.Equal(t, models.ReasonPositionExists, reasonOf(t, err))
	assert.ErrorIs(t, err, models.ErrPositionExists)
}

func TestLeverageTiers(t *testing.T) {
	e, _ := newTestExecutor(&mockExchange{})
	assert.Equal(t, 1.0, e.Leverage(79.9))
	assert.Equal(t, 2.0, e.Leverage(80))
	assert.Equal(t, 3.0, e.Leverage(85))

	e.cfg.MaxLeverage = 2
	assert.Equal(t, 2.0, e.Leverage(95))
}

func TestQuantityFloorsToPrecision(t *testing.T) {
	e, _ := newTestExecutor(&mockExchange{})
	assert.Equal(t, "0.333333", e.Quantity(1, 3).String())
	assert.Equal(t, "0", e.Quantity(1, 0).String())

	e.cfg.QuantityPrecision = 2
	assert.Equal(t, "0.66", e.Quantity(2, 3).String())
}
