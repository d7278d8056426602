// Package analysis builds the comprehensive technical snapshot of a series.
package analysis

import (
	"CoinPull/internal/domain/models"
	"CoinPull/internal/services/features"
	"CoinPull/internal/services/indicators"
	"CoinPull/internal/services/scoring"
	"CoinPull/internal/services/trend"
)

// Analyzer computes indicators, trend and levels, and scores the result.
type Analyzer struct {
	trend    *trend.Analyzer
	scorer   *scoring.Scorer
	advanced indicators.AdvancedSettings
}

func NewAnalyzer(tr *trend.Analyzer, scorer *scoring.Scorer) *Analyzer {
	return &Analyzer{trend: tr, scorer: scorer, advanced: indicators.DefaultAdvancedSettings()}
}

// Comprehensive returns the technical snapshot of the last bar. Series shorter
// than scoring.MinBars produce the neutral snapshot with a technical score of 50.
func (a *Analyzer) Comprehensive(symbol string, candles []models.Candle) models.TechnicalSnapshot {
	s := features.Extract(candles)
	return a.Snapshot(symbol, s)
}

// Snapshot is Comprehensive over an already extracted series.
func (a *Analyzer) Snapshot(symbol string, s features.Series) models.TechnicalSnapshot {
	n := s.Len()
	price := 0.0
	if n > 0 {
		price = s.Close[n-1]
	}
	if n < scoring.MinBars {
		return models.NeutralSnapshot(symbol, n, price)
	}

	snap := models.TechnicalSnapshot{
		Symbol: symbol,
		Bars:   n,
		Price:  price,
		Volume: s.Volume[n-1],
		SMA10:  indicators.LastOr(indicators.SMA(s.Close, 10), price),
		SMA20:  indicators.LastOr(indicators.SMA(s.Close, 20), price),
		SMA50:  indicators.LastOr(indicators.SMA(s.Close, 50), price),
		EMA12:  indicators.LastOr(indicators.EMA(s.Close, 12), price),
		EMA26:  indicators.LastOr(indicators.EMA(s.Close, 26), price),
		RSI:    indicators.LastOr(indicators.RSI(s.Close, 14), models.NeutralScore),
		ATR:    indicators.LastOr(indicators.ATR(s.High, s.Low, s.Close, 14), 0),
	}

	if m, ok := indicators.MACD(s.Close, 12, 26, 9); ok {
		snap.MACD = indicators.LastOr(m.MACD, 0)
		snap.MACDSignal = indicators.LastOr(m.Signal, 0)
		snap.MACDHist = indicators.LastOr(m.Histogram, 0)
	}

	snap.BBPercentB = 0.5
	if bb, ok := indicators.Bollinger(s.Close, 20, 2); ok {
		snap.BBUpper = indicators.LastOr(bb.Upper, price)
		snap.BBMiddle = indicators.LastOr(bb.Middle, price)
		snap.BBLower = indicators.LastOr(bb.Lower, price)
		snap.BBBandwidth = indicators.LastOr(bb.Bandwidth, 0)
		snap.BBPercentB = indicators.LastOr(bb.PercentB, 0.5)
	}

	snap.StochK, snap.StochD = models.NeutralScore, models.NeutralScore
	snap.StochKPrev, snap.StochDPrev = models.NeutralScore, models.NeutralScore
	if st, ok := indicators.Stochastic(s.High, s.Low, s.Close, 14, 3); ok {
		snap.StochK = indicators.LastOr(st.K, models.NeutralScore)
		snap.StochD = indicators.LastOr(st.D, models.NeutralScore)
		snap.StochKPrev = indicators.Prev(st.K, snap.StochK)
		snap.StochDPrev = indicators.Prev(st.D, snap.StochD)
	}

	if adx, ok := indicators.ADX(s.High, s.Low, s.Close, 14); ok {
		snap.ADX = indicators.LastOr(adx.ADX, 0)
		snap.PlusDI = indicators.LastOr(adx.PlusDI, 0)
		snap.MinusDI = indicators.LastOr(adx.MinusDI, 0)
	}

	snap.Trend = a.trend.Trend(s)
	snap.Levels = a.trend.Levels(s)
	snap.Fibonacci = a.trend.Fibonacci(s)
	snap.Advanced = indicators.Advanced(s.High, s.Low, s.Close, s.Volume, a.advanced)
	snap.Votes = votes(snap)
	snap.TechnicalScore = a.scorer.Technical(snap)
	return snap
}

func votes(t models.TechnicalSnapshot) models.IndicatorVotes {
	v := models.IndicatorVotes{
		RSI:       models.ActionHold,
		MACD:      models.ActionHold,
		Bollinger: models.ActionHold,
		Trend:     models.ActionHold,
	}
	switch {
	case t.RSI < 30:
		v.RSI = models.ActionBuy
	case t.RSI > 70:
		v.RSI = models.ActionSell
	}
	switch {
	case t.MACD > t.MACDSignal:
		v.MACD = models.ActionBuy
	case t.MACD < t.MACDSignal:
		v.MACD = models.ActionSell
	}
	if t.BBUpper > t.BBLower {
		switch {
		case t.Price < t.BBLower:
			v.Bollinger = models.ActionBuy
		case t.Price > t.BBUpper:
			v.Bollinger = models.ActionSell
		}
	}
	switch t.Trend.Direction {
	case models.TrendBullish:
		v.Trend = models.ActionBuy
	case models.TrendBearish:
		v.Trend = models.ActionSell
	}
	buy, sell := 0, 0
	for _, a := range []models.Action{v.RSI, v.MACD, v.Bollinger, v.Trend} {
		switch a {
		case models.ActionBuy:
			buy++
		case models.ActionSell:
			sell++
		}
	}
	v.Overall = models.ActionHold
	switch {
	case buy > sell:
		v.Overall = models.ActionBuy
	case sell > buy:
		v.Overall = models.ActionSell
	}
	return v
}
