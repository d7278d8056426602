package features

import (
	"math"

	"CoinPull/internal/domain/models"
)

// Series holds the column view of a candle slice.
type Series struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Extract splits candles into parallel columns.
func Extract(candles []models.Candle) Series {
	s := Series{
		Open:   make([]float64, len(candles)),
		High:   make([]float64, len(candles)),
		Low:    make([]float64, len(candles)),
		Close:  make([]float64, len(candles)),
		Volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Open[i] = c.Open
		s.High[i] = c.High
		s.Low[i] = c.Low
		s.Close[i] = c.Close
		s.Volume[i] = c.Volume
	}
	return s
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Close) }

// PctReturns computes simple bar-over-bar returns (C_t - C_{t-1}) / C_{t-1}.
func PctReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

// Tail returns the last n values, or all of them when fewer exist.
func Tail(xs []float64, n int) []float64 {
	if n <= 0 || n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStd returns the n-1 standard deviation, 0 when fewer than two values.
func SampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// PopulationStd returns the n standard deviation, 0 for an empty slice.
func PopulationStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// PercentChange returns the % move from the close `bars` back to the last close.
// When the series is shorter, the first close is used as the base.
func PercentChange(closes []float64, bars int) float64 {
	if len(closes) < 2 {
		return 0
	}
	base := 0
	if bars > 0 && bars < len(closes) {
		base = len(closes) - bars
	}
	if closes[base] == 0 {
		return 0
	}
	return (closes[len(closes)-1] - closes[base]) / closes[base] * 100
}

// VolumeRatio returns mean(last recent bars) / mean(last history bars).
func VolumeRatio(volumes []float64, recent, history int) float64 {
	base := Mean(Tail(volumes, history))
	if base == 0 {
		return 1
	}
	return Mean(Tail(volumes, recent)) / base
}
