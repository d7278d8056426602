package models

import (
	"fmt"
	"math"
)

// Category is one scoring axis of a signal.
type Category string

const (
	CategoryTechnical   Category = "technical"
	CategoryFundamental Category = "fundamental"
	CategorySentiment   Category = "sentiment"
	CategoryMomentum    Category = "momentum"
)

// Categories lists every category in canonical order. Ties resolve in this order.
var Categories = []Category{CategoryTechnical, CategoryFundamental, CategorySentiment, CategoryMomentum}

// CategoryScores holds the four 0-100 category scores of a signal.
type CategoryScores struct {
	Technical   float64 `json:"technical" yaml:"technical"`
	Fundamental float64 `json:"fundamental" yaml:"fundamental"`
	Sentiment   float64 `json:"sentiment" yaml:"sentiment"`
	Momentum    float64 `json:"momentum" yaml:"momentum"`
}

// NeutralScores returns all four categories at 50.
func NeutralScores() CategoryScores {
	return CategoryScores{NeutralScore, NeutralScore, NeutralScore, NeutralScore}
}

func (s CategoryScores) Get(c Category) float64 {
	switch c {
	case CategoryTechnical:
		return s.Technical
	case CategoryFundamental:
		return s.Fundamental
	case CategorySentiment:
		return s.Sentiment
	case CategoryMomentum:
		return s.Momentum
	}
	return 0
}

// Values returns the scores in canonical category order.
func (s CategoryScores) Values() []float64 {
	return []float64{s.Technical, s.Fundamental, s.Sentiment, s.Momentum}
}

// Strongest returns the category with the highest score.
func (s CategoryScores) Strongest() Category {
	best := Categories[0]
	for _, c := range Categories[1:] {
		if s.Get(c) > s.Get(best) {
			best = c
		}
	}
	return best
}

// Weakest returns the category with the lowest score.
func (s CategoryScores) Weakest() Category {
	worst := Categories[0]
	for _, c := range Categories[1:] {
		if s.Get(c) < s.Get(worst) {
			worst = c
		}
	}
	return worst
}

// WeightsConfig is the blend applied to category scores. It is a value:
// every update returns a new config and the caller decides where to keep it.
type WeightsConfig struct {
	Technical   float64 `json:"technical" yaml:"technical" default:"0.35" validate:"gte=0"`
	Fundamental float64 `json:"fundamental" yaml:"fundamental" default:"0.25" validate:"gte=0"`
	Sentiment   float64 `json:"sentiment" yaml:"sentiment" default:"0.20" validate:"gte=0"`
	Momentum    float64 `json:"momentum" yaml:"momentum" default:"0.20" validate:"gte=0"`
}

// WeightsTolerance bounds the drift allowed around a unit sum.
const WeightsTolerance = 1e-6

// DefaultWeights returns the initial session weights.
func DefaultWeights() WeightsConfig {
	return WeightsConfig{Technical: 0.35, Fundamental: 0.25, Sentiment: 0.20, Momentum: 0.20}
}

func (w WeightsConfig) Get(c Category) float64 {
	switch c {
	case CategoryTechnical:
		return w.Technical
	case CategoryFundamental:
		return w.Fundamental
	case CategorySentiment:
		return w.Sentiment
	case CategoryMomentum:
		return w.Momentum
	}
	return 0
}

func (w WeightsConfig) with(c Category, v float64) WeightsConfig {
	switch c {
	case CategoryTechnical:
		w.Technical = v
	case CategoryFundamental:
		w.Fundamental = v
	case CategorySentiment:
		w.Sentiment = v
	case CategoryMomentum:
		w.Momentum = v
	}
	return w
}

func (w WeightsConfig) Sum() float64 {
	return w.Technical + w.Fundamental + w.Sentiment + w.Momentum
}

// Normalize rescales the weights to sum to 1. A zero config falls back to the defaults.
func (w WeightsConfig) Normalize() WeightsConfig {
	sum := w.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return DefaultWeights()
	}
	return WeightsConfig{
		Technical:   w.Technical / sum,
		Fundamental: w.Fundamental / sum,
		Sentiment:   w.Sentiment / sum,
		Momentum:    w.Momentum / sum,
	}
}

// Validate checks non-negativity and the unit sum.
func (w WeightsConfig) Validate() error {
	for _, c := range Categories {
		if v := w.Get(c); v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s weight %.4f", ErrInvalidWeights, c, v)
		}
	}
	if math.Abs(w.Sum()-1) > WeightsTolerance {
		return fmt.Errorf("%w: weights sum to %.6f", ErrInvalidWeights, w.Sum())
	}
	return nil
}

// Score blends category scores into a final 0-100 score.
func (w WeightsConfig) Score(s CategoryScores) float64 {
	total := 0.0
	for _, c := range Categories {
		total += s.Get(c) * w.Get(c)
	}
	return total
}

// FeedbackPolicy controls the adaptive nudge applied after a trade closes.
type FeedbackPolicy struct {
	SuccessStep float64 `json:"success_step" yaml:"success_step" default:"0.1" validate:"gt=0"`
	FailureStep float64 `json:"failure_step" yaml:"failure_step" default:"0.05" validate:"gt=0"`
	MinWeight   float64 `json:"min_weight" yaml:"min_weight" default:"0.1" validate:"gte=0"`
	MaxWeight   float64 `json:"max_weight" yaml:"max_weight" default:"0.6" validate:"gtfield=MinWeight,lte=1"`
}

// DefaultFeedbackPolicy returns +0.1 / -0.05 steps clamped to [0.1, 0.6].
func DefaultFeedbackPolicy() FeedbackPolicy {
	return FeedbackPolicy{SuccessStep: 0.1, FailureStep: 0.05, MinWeight: 0.1, MaxWeight: 0.6}
}

// TradeOutcome is what a closed trade tells the weights.
type TradeOutcome struct {
	Scores    CategoryScores `json:"scores"`
	ProfitPct float64        `json:"profit_pct"`
}

// Profitable reports whether the trade made money.
func (o TradeOutcome) Profitable() bool { return o.ProfitPct > 0 }

// ApplyFeedback nudges the weight of the strongest category of the closed trade,
// clamps it to the policy bounds and renormalizes the whole config.
func (w WeightsConfig) ApplyFeedback(o TradeOutcome, p FeedbackPolicy) WeightsConfig {
	c := o.Scores.Strongest()
	v := w.Get(c)
	if o.Profitable() {
		v += p.SuccessStep
	} else {
		v -= p.FailureStep
	}
	v = math.Max(p.MinWeight, math.Min(p.MaxWeight, v))
	return w.with(c, v).Normalize()
}
