package analysis

import (
	"math"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/services/scoring"
	"CoinPull/internal/services/trend"
)

func uptrend(n int) []models.Candle {
	out := make([]models.Candle, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := 100 * math.Pow(1.01, float64(i))
		out[i] = models.Candle{
			Symbol:   "BTCUSDT",
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

func newAnalyzer() *Analyzer {
	return NewAnalyzer(trend.NewAnalyzer(trend.DefaultSettings()), scoring.NewScorer(scoring.Config{Tiers: scoring.DefaultTiers()}))
}

func TestComprehensiveInsufficientData(t *testing.T) {
	snap := newAnalyzer().Comprehensive("BTCUSDT", uptrend(10))
	if !snap.Insufficient {
		t.Fatalf("expected insufficient flag")
	}
	if snap.TechnicalScore != 50 {
		t.Fatalf("expected neutral technical score, got %v", snap.TechnicalScore)
	}
	if snap.RSI != 50 || snap.StochK != 50 || snap.MACD != 0 {
		t.Fatalf("expected neutral defaults, got rsi=%v stoch=%v macd=%v", snap.RSI, snap.StochK, snap.MACD)
	}
	if snap.Votes.Overall != models.ActionHold {
		t.Fatalf("expected HOLD vote, got %s", snap.Votes.Overall)
	}
}

func TestComprehensiveEmptySeries(t *testing.T) {
	snap := newAnalyzer().Comprehensive("BTCUSDT", nil)
	if !snap.Insufficient || snap.TechnicalScore != 50 {
		t.Fatalf("expected neutral snapshot, got %+v", snap)
	}
}

func TestComprehensiveUptrend(t *testing.T) {
	snap := newAnalyzer().Comprehensive("BTCUSDT", uptrend(100))
	if snap.Insufficient {
		t.Fatalf("unexpected insufficient flag")
	}
	if snap.RSI != 100 {
		t.Fatalf("expected rsi 100 for a lossless series, got %v", snap.RSI)
	}
	if snap.MACD <= snap.MACDSignal {
		t.Fatalf("expected macd above signal")
	}
	if snap.Trend.Direction != models.TrendBullish {
		t.Fatalf("expected bullish trend, got %s", snap.Trend.Direction)
	}
	if snap.Advanced == nil {
		t.Fatalf("expected advanced indicators")
	}
	if snap.Price <= snap.Advanced.SAR {
		t.Fatalf("expected SAR below price, got %v vs %v", snap.Advanced.SAR, snap.Price)
	}
	if snap.TechnicalScore <= 60 {
		t.Fatalf("expected technical score above 60, got %v", snap.TechnicalScore)
	}
	if snap.Votes.Trend != models.ActionBuy || snap.Votes.MACD != models.ActionBuy {
		t.Fatalf("expected bullish votes, got %+v", snap.Votes)
	}
	if len(snap.Fibonacci) == 0 {
		t.Fatalf("expected fibonacci levels")
	}
}
