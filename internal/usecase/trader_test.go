package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
	"CoinPull/pkg/cache"
	"CoinPull/pkg/logger"
)

func newTestTrader(t *testing.T, signals *stubSignals, lock cache.Service) (*Trader, *mockExchange, *PositionManager) {
	t.Helper()
	ex := &mockExchange{}
	ex.On("GetTickerPrice", mock.Anything, mock.Anything).Return(100.0, nil)
	ex.On("GetAccountInfo", mock.Anything).Return(usdt(10000), nil)
	ex.On("PlaceOrder", mock.Anything, mock.Anything).Return(models.OrderAck{OrderID: "o"}, nil)

	e, m := newTestExecutor(ex)
	tr := NewTrader(signals, e, m, ex, lock, nopMetrics{}, logger.Nop(), TraderConfig{
		Symbols:           []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		MaxTradesPerCycle: 1,
	})
	return tr, ex, m
}

func TestRunCycleOpensApprovedSignals(t *testing.T) {
	signals := &stubSignals{signals: map[string]models.Signal{
		"BTCUSDT": buySignal("BTCUSDT", 60),
		"ETHUSDT": buySignal("ETHUSDT", 82),
		"SOLUSDT": buySignal("SOLUSDT", 90),
	}}
	tr, _, m := newTestTrader(t, signals, nil)

	rep, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Opened, 1)
	assert.Equal(t, "ETHUSDT", rep.Opened[0].Symbol)
	assert.Equal(t, 2, rep.Evaluated, "max trades per cycle stops the loop")
	assert.Contains(t, rep.Skipped["BTCUSDT"], string(models.ReasonLowConfidence))
	assert.Equal(t, []string{"ETHUSDT"}, m.Symbols())

	// the next cycle skips the symbol that already has a position
	rep, err = tr.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Opened, 1)
	assert.Equal(t, "SOLUSDT", rep.Opened[0].Symbol)
	assert.Equal(t, 2, m.Count())

	st := tr.Status()
	assert.True(t, st.Enabled)
	assert.False(t, st.Running)
	assert.Equal(t, 2, st.OpenPositions)
	require.NotNil(t, st.LastCycle)
}

func TestRunCycleStopped(t *testing.T) {
	signals := &stubSignals{signals: map[string]models.Signal{"BTCUSDT": buySignal("BTCUSDT", 90)}}
	tr, _, m := newTestTrader(t, signals, nil)
	tr.Stop()

	rep, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Stopped)
	assert.Empty(t, rep.Opened)
	assert.Equal(t, 0, signals.calls)
	assert.Equal(t, 0, m.Count())

	tr.Start()
	rep, err = tr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Opened, 1)
}

func TestRunCycleClosesExitsFirst(t *testing.T) {
	signals := &stubSignals{signals: map[string]models.Signal{}}
	tr, ex, m := newTestTrader(t, signals, nil)
	_, err := m.Open(context.Background(), OpenRequest{TradeID: "x", Signal: buySignal("BTCUSDT", 80), Price: 80, Quantity: 1})
	require.NoError(t, err)

	// the refreshed price of 100 is +25%
	rep, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Closed, 1)
	assert.Equal(t, models.ExitTakeProfit, rep.Closed[0].ExitReason)
	assert.Equal(t, 0, m.Count())
	ex.AssertCalled(t, "GetTickerPrice", mock.Anything, "BTCUSDT")
}

func TestRunCycleHonorsSharedLock(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	ok, err := mc.TryLock(context.Background(), "trading:cycle", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	tr, _, _ := newTestTrader(t, &stubSignals{}, mc)
	_, err = tr.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleRunning)

	require.NoError(t, mc.Unlock(context.Background(), "trading:cycle"))
	_, err = tr.RunCycle(context.Background())
	assert.NoError(t, err)
}
