// Package indicators implements the technical indicators used by the scorers.
//
// Every function is pure and returns a series aligned with its input: index i
// of the output belongs to bar i, and bars without enough history hold NaN.
// When the input is shorter than the required period the result is nil, and
// callers substitute a neutral default through LastOr.
package indicators

import "math"

// Last returns the last defined value of a series.
func Last(xs []float64) (float64, bool) {
	for i := len(xs) - 1; i >= 0; i-- {
		if !math.IsNaN(xs[i]) && !math.IsInf(xs[i], 0) {
			return xs[i], true
		}
	}
	return 0, false
}

// LastOr returns the last defined value or def.
func LastOr(xs []float64, def float64) float64 {
	if v, ok := Last(xs); ok {
		return v
	}
	return def
}

// Prev returns the defined value just before the last one, or def.
func Prev(xs []float64, def float64) float64 {
	seen := false
	for i := len(xs) - 1; i >= 0; i-- {
		if math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) {
			continue
		}
		if seen {
			return xs[i]
		}
		seen = true
	}
	return def
}

func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the arithmetic mean over a trailing window of n bars.
// A window containing an undefined value is undefined.
func SMA(xs []float64, n int) []float64 {
	if n <= 0 || len(xs) < n {
		return nil
	}
	out := undefined(len(xs))
	for i := n - 1; i < len(xs); i++ {
		sum := 0.0
		valid := true
		for _, x := range xs[i-n+1 : i+1] {
			if math.IsNaN(x) {
				valid = false
				break
			}
			sum += x
		}
		if valid {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// ema smooths with alpha = 2/(n+1), seeded by the first defined value.
// Leading undefined values stay undefined; later gaps carry the previous value.
func ema(xs []float64, n int) []float64 {
	out := undefined(len(xs))
	alpha := 2.0 / float64(n+1)
	prev := math.NaN()
	for i, x := range xs {
		switch {
		case math.IsNaN(x):
			out[i] = prev
		case math.IsNaN(prev):
			prev = x
			out[i] = x
		default:
			prev = alpha*x + (1-alpha)*prev
			out[i] = prev
		}
	}
	return out
}

// EMA is the exponential moving average with weight 2/(n+1).
func EMA(xs []float64, n int) []float64 {
	if n <= 0 || len(xs) < n {
		return nil
	}
	return ema(xs, n)
}

// StdDev is the rolling sample standard deviation over n bars.
func StdDev(xs []float64, n int) []float64 {
	if n <= 1 || len(xs) < n {
		return nil
	}
	out := undefined(len(xs))
	for i := n - 1; i < len(xs); i++ {
		w := xs[i-n+1 : i+1]
		mean := 0.0
		for _, x := range w {
			mean += x
		}
		mean /= float64(n)
		ss := 0.0
		for _, x := range w {
			ss += (x - mean) * (x - mean)
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// RSI is the relative strength index with EMA smoothed gains and losses.
// A window without losses reads 100.
func RSI(closes []float64, n int) []float64 {
	if n <= 0 || len(closes) < n+1 {
		return nil
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := ema(gains, n)
	avgLoss := ema(losses, n)
	out := undefined(len(closes))
	for i := 1; i < len(closes); i++ {
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDResult holds the three MACD series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow), its EMA(signal) and the histogram.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow {
		return MACDResult{}, false
	}
	f := ema(closes, fast)
	s := ema(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	sig := ema(line, signal)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}, true
}

// BollingerResult holds the bands and the derived %B and bandwidth.
type BollingerResult struct {
	Upper     []float64
	Middle    []float64
	Lower     []float64
	PercentB  []float64
	Bandwidth []float64
}

// Bollinger computes SMA(n) +/- k standard deviations.
func Bollinger(closes []float64, n int, k float64) (BollingerResult, bool) {
	mid := SMA(closes, n)
	sd := StdDev(closes, n)
	if mid == nil || sd == nil {
		return BollingerResult{}, false
	}
	r := BollingerResult{
		Upper:     undefined(len(closes)),
		Middle:    mid,
		Lower:     undefined(len(closes)),
		PercentB:  undefined(len(closes)),
		Bandwidth: undefined(len(closes)),
	}
	for i := n - 1; i < len(closes); i++ {
		r.Upper[i] = mid[i] + k*sd[i]
		r.Lower[i] = mid[i] - k*sd[i]
		width := r.Upper[i] - r.Lower[i]
		if width == 0 {
			r.PercentB[i] = 0.5
		} else {
			r.PercentB[i] = (closes[i] - r.Lower[i]) / width
		}
		if mid[i] != 0 {
			r.Bandwidth[i] = width / mid[i]
		}
	}
	return r, true
}

// StochasticResult holds %K and %D.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes %K over n bars and %D = SMA(%K, d).
// A flat window reads 50.
func Stochastic(high, low, close []float64, n, d int) (StochasticResult, bool) {
	if n <= 0 || d <= 0 || len(close) < n+d-1 || len(high) != len(close) || len(low) != len(close) {
		return StochasticResult{}, false
	}
	k := undefined(len(close))
	for i := n - 1; i < len(close); i++ {
		hi, lo := high[i], low[i]
		for j := i - n + 1; j <= i; j++ {
			hi = math.Max(hi, high[j])
			lo = math.Min(lo, low[j])
		}
		if hi == lo {
			k[i] = 50
			continue
		}
		k[i] = 100 * (close[i] - lo) / (hi - lo)
	}
	return StochasticResult{K: k, D: SMA(k, d)}, true
}

// TrueRange returns max(high-low, |high-prev close|, |low-prev close|); bar 0 uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	tr := make([]float64, len(close))
	for i := range close {
		tr[i] = high[i] - low[i]
		if i == 0 {
			continue
		}
		tr[i] = math.Max(tr[i], math.Abs(high[i]-close[i-1]))
		tr[i] = math.Max(tr[i], math.Abs(low[i]-close[i-1]))
	}
	return tr
}

// ATR is the EMA of the true range.
func ATR(high, low, close []float64, n int) []float64 {
	if n <= 0 || len(close) < n+1 || len(high) != len(close) || len(low) != len(close) {
		return nil
	}
	return ema(TrueRange(high, low, close), n)
}

// ADXResult holds the average directional index and the directional indicators.
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX computes +DI/-DI from EMA smoothed directional movement and ADX = EMA(DX, n).
// It needs at least 2n bars.
func ADX(high, low, close []float64, n int) (ADXResult, bool) {
	if n <= 0 || len(close) < 2*n || len(high) != len(close) || len(low) != len(close) {
		return ADXResult{}, false
	}
	plusDM := make([]float64, len(close))
	minusDM := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	atr := ema(TrueRange(high, low, close), n)
	sp := ema(plusDM, n)
	sm := ema(minusDM, n)
	r := ADXResult{
		PlusDI:  make([]float64, len(close)),
		MinusDI: make([]float64, len(close)),
	}
	dx := make([]float64, len(close))
	for i := range close {
		if atr[i] > 0 {
			r.PlusDI[i] = 100 * sp[i] / atr[i]
			r.MinusDI[i] = 100 * sm[i] / atr[i]
		}
		if sum := r.PlusDI[i] + r.MinusDI[i]; sum > 0 {
			dx[i] = 100 * math.Abs(r.PlusDI[i]-r.MinusDI[i]) / sum
		}
	}
	r.ADX = ema(dx, n)
	return r, true
}
