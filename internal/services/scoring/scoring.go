// Package scoring maps market inputs to bounded 0-100 category scores.
// Every scorer starts at 50 and applies additive rules, clamped at the end.
package scoring

import (
	"math"
	"strings"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/services/features"
	"CoinPull/pkg/util"
)

// MinBars is the shortest series scored; shorter series read neutral.
const MinBars = 50

// Tiers is the market-cap lookup used as a liquidity proxy for quote pairs.
type Tiers struct {
	Top    []string `yaml:"top" json:"top"`
	Second []string `yaml:"second" json:"second"`
}

// DefaultTiers returns BTC/ETH/BNB and ADA/XRP/SOL/DOT.
func DefaultTiers() Tiers {
	return Tiers{
		Top:    []string{"BTC", "ETH", "BNB"},
		Second: []string{"ADA", "XRP", "SOL", "DOT"},
	}
}

// Config configures the scorers.
type Config struct {
	QuoteAsset string
	Tiers      Tiers
}

// Scorer computes the four category scores.
type Scorer struct {
	quote  string
	top    map[string]struct{}
	second map[string]struct{}
}

func NewScorer(cfg Config) *Scorer {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &Scorer{
		quote:  strings.ToUpper(cfg.QuoteAsset),
		top:    set(cfg.Tiers.Top),
		second: set(cfg.Tiers.Second),
	}
}

func set(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[strings.ToUpper(x)] = struct{}{}
	}
	return m
}

// Clamp bounds a score to [0, 100].
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return models.NeutralScore
	}
	return math.Max(0, math.Min(100, v))
}

// Technical scores the comprehensive snapshot: RSI extremes, MACD vs signal,
// price vs SMA20 and Bollinger breakouts, then oscillator confirmations.
// A confirmation only counts when it agrees with the bias of the core rules.
func (s *Scorer) Technical(t models.TechnicalSnapshot) float64 {
	if t.Insufficient {
		return models.NeutralScore
	}
	score := models.NeutralScore
	switch {
	case t.RSI < 30:
		score += 15
	case t.RSI > 70:
		score -= 15
	}
	switch {
	case t.MACD > t.MACDSignal:
		score += 10
	case t.MACD < t.MACDSignal:
		score -= 10
	}
	if t.SMA20 > 0 {
		switch {
		case t.Price > t.SMA20:
			score += 10
		case t.Price < t.SMA20:
			score -= 10
		}
	}
	if t.BBUpper > t.BBLower {
		switch {
		case t.Price > t.BBUpper:
			score -= 5
		case t.Price < t.BBLower:
			score += 5
		}
	}

	bias := score - models.NeutralScore
	for _, v := range confirmations(t) {
		if bias == 0 || (bias > 0) == (v > 0) {
			score += v
		}
	}
	return Clamp(score)
}

func confirmations(t models.TechnicalSnapshot) []float64 {
	var votes []float64
	switch {
	case t.StochK < 20 && t.StochD < 20:
		votes = append(votes, 8)
	case t.StochK > 80 && t.StochD > 80:
		votes = append(votes, -8)
	}
	switch {
	case t.StochKPrev <= t.StochDPrev && t.StochK > t.StochD:
		votes = append(votes, 5)
	case t.StochKPrev >= t.StochDPrev && t.StochK < t.StochD:
		votes = append(votes, -5)
	}
	a := t.Advanced
	if a == nil {
		return votes
	}
	switch {
	case a.WilliamsR < -80:
		votes = append(votes, 6)
	case a.WilliamsR > -20:
		votes = append(votes, -6)
	}
	switch {
	case a.CCI > 100:
		votes = append(votes, 6)
	case a.CCI < -100:
		votes = append(votes, -6)
	}
	switch {
	case a.MFI < 20:
		votes = append(votes, 6)
	case a.MFI > 80:
		votes = append(votes, -6)
	}
	if a.SAR > 0 {
		switch {
		case t.Price > a.SAR:
			votes = append(votes, 5)
		case t.Price < a.SAR:
			votes = append(votes, -5)
		}
	}
	return votes
}

// Fundamental scores volume activity, realized volatility, trend strength
// and the market-cap tier of the base asset.
func (s *Scorer) Fundamental(symbol string, series features.Series, tr models.TrendAnalysis) float64 {
	if series.Len() < MinBars {
		return models.NeutralScore
	}
	score := models.NeutralScore

	switch ratio := features.VolumeRatio(series.Volume, 24, 168); {
	case ratio > 1.5:
		score += 20
	case ratio < 0.5:
		score -= 10
	}

	vol := features.SampleStd(features.Tail(features.PctReturns(series.Close), 24)) * 100
	switch {
	case vol >= 2 && vol <= 5:
		score += 10
	case vol > 15:
		score -= 15
	case vol > 10:
		score -= 5
	}

	if tr.Direction == models.TrendBullish {
		switch tr.Strength {
		case models.TrendVeryStrong:
			score += 15
		case models.TrendStrong:
			score += 10
		case models.TrendModerate:
			score += 5
		}
	}

	score += s.tierAdjustment(symbol)
	return Clamp(score)
}

func (s *Scorer) tierAdjustment(symbol string) float64 {
	sym := strings.ToUpper(symbol)
	if !strings.HasSuffix(sym, s.quote) {
		return 0
	}
	base := util.BaseAsset(sym, s.quote)
	if _, ok := s.top[base]; ok {
		return 10
	}
	if _, ok := s.second[base]; ok {
		return 5
	}
	return -5
}

// Sentiment maps a [-1, 1] sentiment score onto [0, 100] and bumps it by the
// headline keyword hits of the symbol, capped at 30 either way.
func (s *Scorer) Sentiment(r models.SentimentResult) float64 {
	score := r.Score*50 + 50
	switch pos, neg := r.PositiveHeadlines, r.NegativeHeadlines; {
	case pos > neg:
		score += math.Min(10*float64(pos), 30)
	case neg > pos:
		score -= math.Min(10*float64(neg), 30)
	}
	return Clamp(score)
}

// Momentum scores the 24-bar move, its agreement with the 72-bar move and the
// recent volume against the whole series.
func (s *Scorer) Momentum(series features.Series) float64 {
	if series.Len() < MinBars {
		return models.NeutralScore
	}
	score := models.NeutralScore
	short := features.PercentChange(series.Close, 24)
	mid := features.PercentChange(series.Close, 72)
	switch {
	case short > 5:
		score += 20
	case short > 2:
		score += 10
	case short < -5:
		score -= 20
	case short < -2:
		score -= 10
	}
	if (short > 0 && mid > 0) || (short < 0 && mid < 0) {
		score += 10
	} else {
		score -= 5
	}
	switch ratio := features.VolumeRatio(series.Volume, 24, series.Len()); {
	case ratio > 1.5:
		score += 15
	case ratio < 0.5:
		score -= 10
	}
	return Clamp(score)
}
