package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/services/analysis"
	"CoinPull/internal/services/composer"
	"CoinPull/internal/services/scoring"
	"CoinPull/internal/services/trend"
	"CoinPull/pkg/cache"
	"CoinPull/pkg/logger"
)

type capturePublisher struct {
	mu      sync.Mutex
	signals []models.Signal
}

func (p *capturePublisher) PublishSignal(_ context.Context, s models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, s)
	return nil
}

func (p *capturePublisher) published() []models.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Signal(nil), p.signals...)
}
func (p *capturePublisher) PublishTrade(context.Context, string, models.Trade) error { return nil }
func (p *capturePublisher) Close() error                                              { return nil }

func newTestGenerator(t *testing.T, ex *mockExchange) (*SignalGenerator, *capturePublisher) {
	t.Helper()
	scorer := scoring.NewScorer(scoring.Config{Tiers: scoring.DefaultTiers()})
	an := analysis.NewAnalyzer(trend.NewAnalyzer(trend.DefaultSettings()), scorer)
	comp, err := composer.New(models.DefaultWeights(), models.DefaultFeedbackPolicy(), composer.DefaultThresholds())
	require.NoError(t, err)

	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	pub := &capturePublisher{}
	g := NewSignalGenerator(ex, an, scorer, nil, comp, mc, pub, nopMetrics{}, logger.Nop(), DefaultSignalConfig())
	g.now = newClock().Now
	return g, pub
}

func TestGenerateUptrendIsBuy(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetKlines", mock.Anything, "BTCUSDT", mock.Anything, 200).Return(uptrendCandles("BTCUSDT", 100), nil).Once()

	g, pub := newTestGenerator(t, ex)
	sig, err := g.Generate(context.Background(), "btcusdt")
	require.NoError(t, err)

	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.GreaterOrEqual(t, sig.Confidence, 65.0)
	assert.Greater(t, sig.Scores.Technical, 60.0)
	assert.Greater(t, sig.Scores.Momentum, 60.0)
	assert.Equal(t, 50.0, sig.Scores.Sentiment)
	assert.InDelta(t, 66.6, sig.FinalScore, 0.5)
	assert.False(t, sig.Insufficient)
	require.Len(t, pub.published(), 1)

	again, err := g.Generate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, sig.FinalScore, again.FinalScore)
	ex.AssertNumberOfCalls(t, "GetKlines", 1)
	assert.Len(t, pub.published(), 1, "cached signals are not republished")

	stats := g.Statistics()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Buy)
	assert.InDelta(t, sig.Confidence, stats.ConfidenceByAction[models.ActionBuy], 1e-9)
}

// Without the tier bonus the same uptrend stays below the buy threshold.
func TestGenerateUptrendLongTailIsHold(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetKlines", mock.Anything, "XYZUSDT", mock.Anything, 200).Return(uptrendCandles("XYZUSDT", 100), nil).Once()

	g, _ := newTestGenerator(t, ex)
	sig, err := g.Generate(context.Background(), "XYZUSDT")
	require.NoError(t, err)

	assert.Equal(t, models.ActionHold, sig.Action)
	assert.InDelta(t, 62.85, sig.FinalScore, 0.5)
	assert.InDelta(t, 55.0, sig.Scores.Fundamental, 1e-9)
	assert.Less(t, sig.FinalScore, 65.0)
}

func TestGenerateInsufficientDataIsNeutral(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetKlines", mock.Anything, "NEWUSDT", mock.Anything, 200).Return(uptrendCandles("NEWUSDT", 20), nil)

	g, _ := newTestGenerator(t, ex)
	sig, err := g.Generate(context.Background(), "NEWUSDT")
	require.NoError(t, err)
	assert.True(t, sig.Insufficient)
	assert.Equal(t, 50.0, sig.Scores.Technical)
}

func TestGenerateExchangeFailure(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetKlines", mock.Anything, "BTCUSDT", mock.Anything, 200).Return(nil, errors.New("503"))

	g, _ := newTestGenerator(t, ex)
	_, err := g.Generate(context.Background(), "BTCUSDT")
	var ext *models.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "exchange", ext.Service)
}

func TestClearCacheForcesRecompute(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetKlines", mock.Anything, "BTCUSDT", mock.Anything, 200).Return(uptrendCandles("BTCUSDT", 100), nil)

	g, _ := newTestGenerator(t, ex)
	_, err := g.Generate(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	n, err := g.ClearCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = g.Generate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	ex.AssertNumberOfCalls(t, "GetKlines", 2)
}

func TestBatchGenerateCollectsFailures(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetKlines", mock.Anything, "BTCUSDT", mock.Anything, 200).Return(uptrendCandles("BTCUSDT", 100), nil)
	ex.On("GetKlines", mock.Anything, "NEWUSDT", mock.Anything, 200).Return(uptrendCandles("NEWUSDT", 20), nil)
	ex.On("GetKlines", mock.Anything, "BADUSDT", mock.Anything, 200).Return(nil, errors.New("unknown symbol"))

	g, _ := newTestGenerator(t, ex)
	res := g.BatchGenerate(context.Background(), []string{"BTCUSDT", "NEWUSDT", "BADUSDT"}, 0)

	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Errors, "BADUSDT")
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "BTCUSDT", res.Opportunities[0].Symbol)
}
