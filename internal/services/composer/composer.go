// Package composer blends category scores into trade signals and owns the
// session's indicator weights.
package composer

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
)

// Thresholds maps a final score and its confidence to an action and tier.
type Thresholds struct {
	Buy                float64 `yaml:"buy_threshold" default:"65" validate:"gt=50,lte=100"`
	Sell               float64 `yaml:"sell_threshold" default:"35" validate:"gte=0,lt=50"`
	StrongConfidence   float64 `yaml:"strong_confidence" default:"80" validate:"gt=0,lte=100"`
	ModerateConfidence float64 `yaml:"moderate_confidence" default:"55" validate:"gt=0,ltefield=StrongConfidence"`
	MaxConfidence      float64 `yaml:"max_confidence" default:"95" validate:"gt=0,lte=100"`
	HighDispersion     float64 `yaml:"high_dispersion" default:"20" validate:"gt=0"`
	LowDispersion      float64 `yaml:"low_dispersion" default:"10" validate:"gte=0,ltefield=HighDispersion"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Buy:                65,
		Sell:               35,
		StrongConfidence:   80,
		ModerateConfidence: 55,
		MaxConfidence:      95,
		HighDispersion:     20,
		LowDispersion:      10,
	}
}

const (
	dispersionPenalty = 0.8
	dispersionBonus   = 1.1
	bullishPhraseAt   = 60
	bearishPhraseAt   = 40
)

// Composer turns category scores into signals. Its weights change only through ApplyFeedback.
type Composer struct {
	mu       sync.RWMutex
	weights  models.WeightsConfig
	policy   models.FeedbackPolicy
	th       Thresholds
	onUpdate []func(models.WeightsConfig)
}

// New validates the initial weights. Weights that do not sum to one are renormalized.
func New(weights models.WeightsConfig, policy models.FeedbackPolicy, th Thresholds) (*Composer, error) {
	if th.Buy <= th.Sell {
		return nil, fmt.Errorf("buy threshold %.2f must exceed sell threshold %.2f", th.Buy, th.Sell)
	}
	weights = weights.Normalize()
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Composer{weights: weights, policy: policy, th: th}, nil
}

// OnWeightsUpdate registers fn to run after every feedback adjustment.
func (c *Composer) OnWeightsUpdate(fn func(models.WeightsConfig)) {
	c.mu.Lock()
	c.onUpdate = append(c.onUpdate, fn)
	c.mu.Unlock()
}

// Weights returns the current weights.
func (c *Composer) Weights() models.WeightsConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weights
}

func (c *Composer) Thresholds() Thresholds { return c.th }

// ApplyFeedback folds a closed trade into the weights and returns the new config.
func (c *Composer) ApplyFeedback(o models.TradeOutcome) models.WeightsConfig {
	c.mu.Lock()
	c.weights = c.weights.ApplyFeedback(o, c.policy)
	w := c.weights
	hooks := append([]func(models.WeightsConfig){}, c.onUpdate...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(w)
	}
	return w
}

// Compose builds the signal for one symbol from its category scores.
func (c *Composer) Compose(symbol string, scores models.CategoryScores, price float64, at time.Time) models.Signal {
	w := c.Weights()
	final := w.Score(scores)

	var action models.Action
	var confidence float64
	switch {
	case final >= c.th.Buy:
		action, confidence = models.ActionBuy, final
	case final <= c.th.Sell:
		action, confidence = models.ActionSell, 100-final
	default:
		action, confidence = models.ActionHold, models.NeutralScore
	}

	switch d := Dispersion(scores); {
	case d > c.th.HighDispersion:
		confidence *= dispersionPenalty
	case d < c.th.LowDispersion:
		confidence *= dispersionBonus
	}
	confidence = math.Max(0, math.Min(c.th.MaxConfidence, confidence))

	return models.Signal{
		Symbol:      symbol,
		Action:      action,
		Confidence:  confidence,
		Strength:    c.strength(confidence),
		RiskLevel:   RiskLevel(confidence),
		FinalScore:  final,
		Scores:      scores,
		Weights:     w,
		Reasoning:   Reasoning(scores),
		Price:       price,
		GeneratedAt: at,
	}
}

func (c *Composer) strength(confidence float64) models.Strength {
	switch {
	case confidence >= c.th.StrongConfidence:
		return models.StrengthStrong
	case confidence >= c.th.ModerateConfidence:
		return models.StrengthModerate
	default:
		return models.StrengthWeak
	}
}

// RiskLevel grades a signal by its confidence.
func RiskLevel(confidence float64) models.RiskLevel {
	switch {
	case confidence >= 80:
		return models.RiskLow
	case confidence >= 60:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// Dispersion is the population standard deviation of the four scores.
func Dispersion(s models.CategoryScores) float64 {
	vals := s.Values()
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vals)))
}

var phrases = map[models.Category][2]string{
	models.CategoryTechnical:   {"technical indicators are bullish", "technical indicators are bearish"},
	models.CategoryFundamental: {"volume and volatility support the move", "weak volume does not support the move"},
	models.CategorySentiment:   {"news sentiment is positive", "negative news weighs on sentiment"},
	models.CategoryMomentum:    {"price momentum points up", "price momentum points down"},
}

// Reasoning names the strongest and weakest categories and adds a phrase
// for every category outside the neutral band.
func Reasoning(s models.CategoryScores) string {
	strong, weak := s.Strongest(), s.Weakest()
	parts := []string{fmt.Sprintf("strongest factor %s (%.1f), weakest %s (%.1f)",
		strong, s.Get(strong), weak, s.Get(weak))}

	n := len(parts)
	for _, cat := range models.Categories {
		switch v := s.Get(cat); {
		case v > bullishPhraseAt:
			parts = append(parts, phrases[cat][0])
		case v < bearishPhraseAt:
			parts = append(parts, phrases[cat][1])
		}
	}
	if len(parts) == n {
		parts = append(parts, "mixed signals across indicators")
	}
	return strings.Join(parts, "; ")
}
