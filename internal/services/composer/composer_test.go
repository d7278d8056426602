package composer

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
)

func newComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := New(models.DefaultWeights(), models.DefaultFeedbackPolicy(), DefaultThresholds())
	require.NoError(t, err)
	return c
}

var at = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestComposeUniformBullishIsDeterministicBuy(t *testing.T) {
	c := newComposer(t)
	scores := models.CategoryScores{Technical: 80, Fundamental: 80, Sentiment: 80, Momentum: 80}

	first := c.Compose("BTCUSDT", scores, 100, at)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Compose("BTCUSDT", scores, 100, at))
	}

	assert.InDelta(t, 80, first.FinalScore, 1e-9)
	assert.Equal(t, models.ActionBuy, first.Action)
	// zero dispersion lifts 80 by 10%
	assert.InDelta(t, 88, first.Confidence, 1e-9)
	assert.Equal(t, models.StrengthStrong, first.Strength)
	assert.Equal(t, models.RiskLow, first.RiskLevel)
}

func TestComposeActions(t *testing.T) {
	c := newComposer(t)

	sell := c.Compose("X", models.CategoryScores{Technical: 20, Fundamental: 20, Sentiment: 30, Momentum: 30}, 1, at)
	assert.Equal(t, models.ActionSell, sell.Action)
	// final 24, std 5: 76 * 1.1
	assert.InDelta(t, 24, sell.FinalScore, 1e-9)
	assert.InDelta(t, 83.6, sell.Confidence, 1e-9)

	hold := c.Compose("X", models.NeutralScores(), 1, at)
	assert.Equal(t, models.ActionHold, hold.Action)
	assert.InDelta(t, 55, hold.Confidence, 1e-9)
	assert.Equal(t, models.StrengthModerate, hold.Strength)
}

func TestComposeDispersionPenalty(t *testing.T) {
	c := newComposer(t)
	// final = 0.35*100 + 0.25*100 + 0.2*40 + 0.2*40 = 76, std 30
	s := c.Compose("X", models.CategoryScores{Technical: 100, Fundamental: 100, Sentiment: 40, Momentum: 40}, 1, at)
	assert.Equal(t, models.ActionBuy, s.Action)
	assert.InDelta(t, 76*0.8, s.Confidence, 1e-9)
}

func TestComposeConfidenceCeiling(t *testing.T) {
	c := newComposer(t)
	s := c.Compose("X", models.CategoryScores{Technical: 100, Fundamental: 100, Sentiment: 100, Momentum: 100}, 1, at)
	assert.Equal(t, 95.0, s.Confidence)
}

func TestComposeConfidenceBounded(t *testing.T) {
	c := newComposer(t)
	for tech := 0.0; tech <= 100; tech += 10 {
		for mom := 0.0; mom <= 100; mom += 25 {
			s := c.Compose("X", models.CategoryScores{Technical: tech, Fundamental: 100 - tech, Sentiment: 50, Momentum: mom}, 1, at)
			assert.GreaterOrEqual(t, s.Confidence, 0.0)
			assert.LessOrEqual(t, s.Confidence, 95.0)
		}
	}
}

func TestReasoning(t *testing.T) {
	r := Reasoning(models.CategoryScores{Technical: 70, Fundamental: 50, Sentiment: 30, Momentum: 50})
	assert.Contains(t, r, "strongest factor technical (70.0)")
	assert.Contains(t, r, "weakest sentiment (30.0)")
	assert.Contains(t, r, "technical indicators are bullish")
	assert.Contains(t, r, "negative news weighs on sentiment")

	assert.Contains(t, Reasoning(models.NeutralScores()), "mixed signals")
}

func TestApplyFeedbackKeepsUnitSum(t *testing.T) {
	c := newComposer(t)
	var seen []models.WeightsConfig
	c.OnWeightsUpdate(func(w models.WeightsConfig) { seen = append(seen, w) })

	outcomes := []models.TradeOutcome{
		{Scores: models.CategoryScores{Technical: 90, Fundamental: 50, Sentiment: 50, Momentum: 50}, ProfitPct: 16},
		{Scores: models.CategoryScores{Technical: 50, Fundamental: 50, Sentiment: 90, Momentum: 50}, ProfitPct: -9},
		{Scores: models.CategoryScores{Technical: 50, Fundamental: 50, Sentiment: 50, Momentum: 90}, ProfitPct: 3},
	}
	for i := 0; i < 20; i++ {
		w := c.ApplyFeedback(outcomes[i%len(outcomes)])
		assert.InDelta(t, 1.0, w.Sum(), 1e-6)
		require.NoError(t, w.Validate())
	}
	assert.Len(t, seen, 20)
	assert.Equal(t, c.Weights(), seen[len(seen)-1])
}

func TestApplyFeedbackConcurrentWithCompose(t *testing.T) {
	c := newComposer(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.ApplyFeedback(models.TradeOutcome{Scores: models.CategoryScores{Technical: 90}, ProfitPct: 1})
		}()
		go func() {
			defer wg.Done()
			s := c.Compose("X", models.NeutralScores(), 1, at)
			assert.False(t, math.IsNaN(s.FinalScore))
		}()
	}
	wg.Wait()
	assert.InDelta(t, 1.0, c.Weights().Sum(), 1e-6)
}

func TestNewRejectsInvertedThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.Buy, th.Sell = 40, 60
	_, err := New(models.DefaultWeights(), models.DefaultFeedbackPolicy(), th)
	assert.Error(t, err)
}

func TestNewRenormalizes(t *testing.T) {
	c, err := New(models.WeightsConfig{Technical: 2, Fundamental: 1, Sentiment: 1, Momentum: 0}, models.DefaultFeedbackPolicy(), DefaultThresholds())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.Weights().Technical, 1e-9)
}
