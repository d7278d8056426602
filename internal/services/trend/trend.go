// Package trend derives trend direction, strength and price levels from a candle series.
package trend

import (
	"math"
	"sort"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/services/features"
	"CoinPull/internal/services/indicators"
)

// Settings tunes the trend and level detection.
type Settings struct {
	ShortPeriod   int
	LongPeriod    int
	ADXPeriod     int
	MomentumBars  int
	MomentumBand  float64 // relative move treated as flat, e.g. 0.01
	LevelWindow   int
	LevelTol      float64 // relative clustering tolerance
	MinTouches    int
	MaxLevels     int
	FibonacciBars int
}

// DefaultSettings returns SMA 10/20, ADX 14, 5-bar momentum and 20-bar level window.
func DefaultSettings() Settings {
	return Settings{
		ShortPeriod:   10,
		LongPeriod:    20,
		ADXPeriod:     14,
		MomentumBars:  5,
		MomentumBand:  0.01,
		LevelWindow:   20,
		LevelTol:      0.02,
		MinTouches:    2,
		MaxLevels:     10,
		FibonacciBars: 50,
	}
}

// Analyzer computes trend verdicts.
type Analyzer struct {
	cfg Settings
}

func NewAnalyzer(cfg Settings) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Trend combines the short/long SMA crossover, price vs short EMA and the
// short momentum into a score in [-3, 3], then grades its strength from ADX and the MA gap.
func (a *Analyzer) Trend(s features.Series) models.TrendAnalysis {
	n := s.Len()
	if n < a.cfg.LongPeriod {
		return models.TrendAnalysis{Direction: models.TrendUnknown, Strength: models.TrendWeak}
	}
	price := s.Close[n-1]
	short := indicators.LastOr(indicators.SMA(s.Close, a.cfg.ShortPeriod), price)
	long := indicators.LastOr(indicators.SMA(s.Close, a.cfg.LongPeriod), price)
	ema := indicators.LastOr(indicators.EMA(s.Close, a.cfg.ShortPeriod), price)

	score := 0
	score += sign(short > long)
	score += sign(price > ema)
	if n >= a.cfg.MomentumBars {
		base := s.Close[n-a.cfg.MomentumBars]
		if base > 0 {
			switch m := (price - base) / base; {
			case m > a.cfg.MomentumBand:
				score++
			case m < -a.cfg.MomentumBand:
				score--
			}
		}
	}

	out := models.TrendAnalysis{Score: score, Direction: models.TrendNeutral}
	switch {
	case score >= 2:
		out.Direction = models.TrendBullish
	case score <= -2:
		out.Direction = models.TrendBearish
	}

	if r, ok := indicators.ADX(s.High, s.Low, s.Close, a.cfg.ADXPeriod); ok {
		out.ADX = indicators.LastOr(r.ADX, 0)
	}
	if price > 0 {
		out.MAGapPct = math.Abs(short-long) / price * 100
	}
	out.Strength, out.Confidence = grade(out.ADX, out.MAGapPct)
	return out
}

func sign(b bool) int {
	if b {
		return 1
	}
	return -1
}

func grade(adx, gap float64) (models.TrendStrength, float64) {
	switch {
	case adx > 30 && gap > 5:
		return models.TrendVeryStrong, 0.9
	case adx > 25 || gap > 3:
		return models.TrendStrong, 0.7
	case adx > 20 || gap > 2:
		return models.TrendModerate, 0.5
	default:
		return models.TrendWeak, 0.3
	}
}

// Levels finds strict local extrema that equal the centered rolling max/min and
// clusters them within the relative tolerance. Clusters need MinTouches members.
func (a *Analyzer) Levels(s features.Series) models.SupportResistance {
	out := models.SupportResistance{Resistance: []float64{}, Support: []float64{}}
	w := a.cfg.LevelWindow
	n := s.Len()
	if w < 2 || n < 2*w {
		return out
	}
	var highs, lows []float64
	for i := w; i < n-w; i++ {
		lo, hi := i-w/2, i+w-w/2-1
		maxH, minL := s.High[lo], s.Low[lo]
		for j := lo; j <= hi; j++ {
			maxH = math.Max(maxH, s.High[j])
			minL = math.Min(minL, s.Low[j])
		}
		if s.High[i] == maxH && s.High[i] > s.High[i-1] && s.High[i] > s.High[i+1] {
			highs = append(highs, s.High[i])
		}
		if s.Low[i] == minL && s.Low[i] < s.Low[i-1] && s.Low[i] < s.Low[i+1] {
			lows = append(lows, s.Low[i])
		}
	}
	res := cluster(highs, a.cfg.LevelTol, a.cfg.MinTouches)
	sup := cluster(lows, a.cfg.LevelTol, a.cfg.MinTouches)
	sort.Sort(sort.Reverse(sort.Float64Slice(res)))
	sort.Float64s(sup)
	out.Resistance = head(res, a.cfg.MaxLevels)
	out.Support = head(sup, a.cfg.MaxLevels)
	return out
}

// cluster groups sorted levels that stay within tol of the group's first level
// and returns the mean of each group with at least minTouches members.
func cluster(levels []float64, tol float64, minTouches int) []float64 {
	out := []float64{}
	if len(levels) == 0 {
		return out
	}
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)
	for i := 0; i < len(sorted); {
		j := i + 1
		sum := sorted[i]
		for j < len(sorted) && sorted[i] > 0 && math.Abs(sorted[j]-sorted[i])/sorted[i] <= tol {
			sum += sorted[j]
			j++
		}
		if j-i >= minTouches {
			out = append(out, sum/float64(j-i))
		}
		i = j
	}
	return out
}

func head(xs []float64, n int) []float64 {
	if n > 0 && len(xs) > n {
		return xs[:n]
	}
	return xs
}

var fibRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1, 1.618, 2.618}

// Fibonacci returns retracement and extension levels measured down from the
// high of the last FibonacciBars bars.
func (a *Analyzer) Fibonacci(s features.Series) []models.FibLevel {
	n := s.Len()
	if n == 0 {
		return nil
	}
	from := 0
	if a.cfg.FibonacciBars > 0 && n > a.cfg.FibonacciBars {
		from = n - a.cfg.FibonacciBars
	}
	hi, lo := s.High[from], s.Low[from]
	for i := from; i < n; i++ {
		hi = math.Max(hi, s.High[i])
		lo = math.Min(lo, s.Low[i])
	}
	diff := hi - lo
	out := make([]models.FibLevel, 0, len(fibRatios))
	for _, r := range fibRatios {
		out = append(out, models.FibLevel{Ratio: r * 100, Price: hi - r*diff})
	}
	return out
}
