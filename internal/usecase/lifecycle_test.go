package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/services/composer"
)

func openBTC(t *testing.T, m *PositionManager) models.Trade {
	t.Helper()
	tr, err := m.Open(context.Background(), OpenRequest{
		TradeID:  "t-btc",
		Signal:   buySignal("BTCUSDT", 82),
		Price:    100,
		Quantity: 1,
		Leverage: 2,
		OrderID:  "entry-1",
	})
	require.NoError(t, err)
	return tr
}

func TestOpenCreatesPositionAndTrade(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	tr := openBTC(t, m)

	assert.Equal(t, models.TradeOpen, tr.Status)
	assert.Equal(t, models.SideLong, tr.Side)
	assert.Equal(t, uint64(1), tr.Version)

	pos, err := m.Position("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "t-btc", pos.TradeID)
	assert.Equal(t, 100.0, pos.CurrentPrice)

	stored, err := d.store.OpenTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "t-btc", stored[0].ID)
}

func TestOpenRejectsDuplicateSymbol(t *testing.T) {
	m, _ := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)

	_, err := m.Open(context.Background(), OpenRequest{TradeID: "t2", Signal: buySignal("BTCUSDT", 90), Price: 101, Quantity: 1})
	assert.ErrorIs(t, err, models.ErrPositionExists)
	assert.Equal(t, 1, m.Count())
}

func TestOpenRespectsMaxPositions(t *testing.T) {
	m, _ := newTestManager(DefaultLifecycleConfig(), nil)
	for i, sym := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		_, err := m.Open(context.Background(), OpenRequest{TradeID: fmt.Sprint(i), Signal: buySignal(sym, 80), Price: 10, Quantity: 1})
		require.NoError(t, err)
	}
	_, err := m.Open(context.Background(), OpenRequest{TradeID: "x", Signal: buySignal("ADAUSDT", 80), Price: 10, Quantity: 1})
	assert.ErrorIs(t, err, models.ErrMaxPositions)
	assert.ErrorIs(t, m.CanOpen("ADAUSDT"), models.ErrMaxPositions)
}

func TestTakeProfitClosesAtSixteenPercent(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)

	require.True(t, m.UpdatePrice("BTCUSDT", 116, d.clock.Now()))
	closed, failed := m.EvaluateExits(context.Background())
	require.Empty(t, failed)
	require.Len(t, closed, 1)

	tr := closed[0]
	assert.Equal(t, models.ExitTakeProfit, tr.ExitReason)
	assert.Equal(t, models.TradeClosed, tr.Status)
	assert.InDelta(t, 16.0, tr.RealizedPnLPct, 1e-9)
	assert.InDelta(t, 16.0, tr.RealizedPnL, 1e-9)
	assert.Equal(t, uint64(2), tr.Version)
	assert.Equal(t, 0, m.Count())

	require.Len(t, d.orders.reqs, 1)
	assert.Equal(t, models.OrderSideSell, d.orders.reqs[0].Side)
	assert.Equal(t, "1.000000", d.orders.reqs[0].Quantity)
}

func TestStopLossClosesAtMinusNine(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)

	m.UpdatePrice("BTCUSDT", 91, d.clock.Now())
	closed, _ := m.EvaluateExits(context.Background())
	require.Len(t, closed, 1)
	assert.Equal(t, models.ExitStopLoss, closed[0].ExitReason)
	assert.InDelta(t, -9.0, closed[0].RealizedPnLPct, 1e-9)
}

func TestExitOrderFillPriceWins(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)
	d.orders.price = 117

	m.UpdatePrice("BTCUSDT", 116, d.clock.Now())
	tr, err := m.Close(context.Background(), "BTCUSDT", models.ExitManual)
	require.NoError(t, err)
	assert.Equal(t, 117.0, tr.ExitPrice)
	assert.Equal(t, "ord-BTCUSDT", tr.ExitOrderID)
}

func TestNoExitInsideBands(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)

	m.UpdatePrice("BTCUSDT", 105, d.clock.Now())
	closed, failed := m.EvaluateExits(context.Background())
	assert.Empty(t, closed)
	assert.Empty(t, failed)
	assert.Equal(t, 1, m.Count())
}

func TestMaxHoldTimeExit(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)

	d.clock.Advance(169 * time.Hour)
	reason, ok := m.ExitFor(context.Background(), mustPosition(t, m, "BTCUSDT"))
	require.True(t, ok)
	assert.Equal(t, models.ExitMaxHoldTime, reason)
}

func TestSignalReversalExit(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)

	d.signals.signals["BTCUSDT"] = models.Signal{Symbol: "BTCUSDT", Action: models.ActionSell, Confidence: 75}
	_, ok := m.ExitFor(context.Background(), mustPosition(t, m, "BTCUSDT"))
	assert.False(t, ok, "confidence at the threshold must not reverse")

	d.signals.signals["BTCUSDT"] = models.Signal{Symbol: "BTCUSDT", Action: models.ActionSell, Confidence: 76}
	reason, ok := m.ExitFor(context.Background(), mustPosition(t, m, "BTCUSDT"))
	require.True(t, ok)
	assert.Equal(t, models.ExitSignalReversal, reason)
}

func TestFailedExitOrderKeepsPosition(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)
	d.orders.err = errors.New("exchange down")

	_, err := m.Close(context.Background(), "BTCUSDT", models.ExitManual)
	var oe *models.OrderExecutionError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, models.ReasonOrderRejected, oe.Reason)
	assert.Equal(t, 1, m.Count())

	_, err = m.Close(context.Background(), "ETHUSDT", models.ExitManual)
	assert.ErrorIs(t, err, models.ErrPositionNotFound)
}

func TestCloseFeedsWeights(t *testing.T) {
	comp, err := composer.New(models.DefaultWeights(), models.DefaultFeedbackPolicy(), composer.DefaultThresholds())
	require.NoError(t, err)
	m, d := newTestManager(DefaultLifecycleConfig(), comp)
	openBTC(t, m)

	m.UpdatePrice("BTCUSDT", 116, d.clock.Now())
	_, err = m.Close(context.Background(), "BTCUSDT", models.ExitTakeProfit)
	require.NoError(t, err)

	w := comp.Weights()
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	assert.Greater(t, w.Technical, models.DefaultWeights().Technical)
}

func TestShortPositionProfitsOnFall(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	sig := buySignal("ETHUSDT", 80)
	sig.Action = models.ActionSell
	_, err := m.Open(context.Background(), OpenRequest{TradeID: "s", Signal: sig, Price: 100, Quantity: 2})
	require.NoError(t, err)

	m.UpdatePrice("ETHUSDT", 84, d.clock.Now())
	pos := mustPosition(t, m, "ETHUSDT")
	assert.InDelta(t, 16.0, pos.UnrealizedPnLPct, 1e-9)
	assert.InDelta(t, 32.0, pos.UnrealizedPnL, 1e-9)

	tr, err := m.Close(context.Background(), "ETHUSDT", models.ExitTakeProfit)
	require.NoError(t, err)
	assert.Equal(t, models.OrderSideBuy, d.orders.reqs[0].Side)
	assert.InDelta(t, 16.0, tr.RealizedPnLPct, 1e-9)
}

func TestRestoreReloadsOpenTrades(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	ctx := context.Background()
	base := d.clock.Now().Add(-time.Hour)
	require.NoError(t, d.store.SaveTrade(ctx, models.Trade{ID: "a", Symbol: "BTCUSDT", Side: models.SideLong, EntryPrice: 100, Quantity: 1, EntryTime: base, Status: models.TradeOpen, Version: 1}))
	require.NoError(t, d.store.SaveTrade(ctx, models.Trade{ID: "b", Symbol: "ETHUSDT", Side: models.SideShort, EntryPrice: 10, Quantity: 3, EntryTime: base, Status: models.TradeOpen, Version: 1}))
	require.NoError(t, d.store.SaveTrade(ctx, models.Trade{ID: "c", Symbol: "SOLUSDT", Side: models.SideLong, EntryPrice: 10, Quantity: 3, EntryTime: base, Status: models.TradeClosed, Version: 2}))

	n, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, m.Symbols())

	m.UpdatePrice("BTCUSDT", 116, d.clock.Now())
	closed, _ := m.EvaluateExits(ctx)
	require.Len(t, closed, 1)
	assert.Equal(t, "a", closed[0].ID)
	assert.Equal(t, uint64(2), closed[0].Version)
}

func TestRunPriceFeedRepricesPositions(t *testing.T) {
	m, d := newTestManager(DefaultLifecycleConfig(), nil)
	openBTC(t, m)

	ticks := make(chan models.PriceTick, 2)
	ticks <- models.PriceTick{Symbol: "BTCUSDT", Price: 110, Timestamp: d.clock.Now()}
	ticks <- models.PriceTick{Symbol: "XRPUSDT", Price: 1, Timestamp: d.clock.Now()}
	close(ticks)
	m.RunPriceFeed(context.Background(), ticks)

	pos := mustPosition(t, m, "BTCUSDT")
	assert.Equal(t, 110.0, pos.CurrentPrice)
	assert.InDelta(t, 10.0, pos.UnrealizedPnLPct, 1e-9)
}

func mustPosition(t *testing.T, m *PositionManager, symbol string) models.Position {
	t.Helper()
	p, err := m.Position(symbol)
	require.NoError(t, err)
	return p
}
