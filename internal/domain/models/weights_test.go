package models

import (
	"errors"
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestApplyFeedbackRewardsStrongestCategory(t *testing.T) {
	w := DefaultWeights()
	out := w.ApplyFeedback(TradeOutcome{
		Scores:    CategoryScores{Technical: 80, Fundamental: 60, Sentiment: 50, Momentum: 70},
		ProfitPct: 16,
	}, DefaultFeedbackPolicy())

	if !near(out.Sum(), 1) {
		t.Fatalf("weights must sum to 1, got %v", out.Sum())
	}
	if !near(out.Technical, 0.45/1.1) {
		t.Fatalf("technical weight = %v, want %v", out.Technical, 0.45/1.1)
	}
	if out.Technical <= w.Technical {
		t.Fatalf("technical weight should grow")
	}
}

func TestApplyFeedbackPenalizesOnLoss(t *testing.T) {
	out := DefaultWeights().ApplyFeedback(TradeOutcome{
		Scores:    CategoryScores{Technical: 40, Fundamental: 50, Sentiment: 50, Momentum: 90},
		ProfitPct: -9,
	}, DefaultFeedbackPolicy())

	if !near(out.Momentum, 0.15/0.95) {
		t.Fatalf("momentum weight = %v, want %v", out.Momentum, 0.15/0.95)
	}
	if !near(out.Sum(), 1) {
		t.Fatalf("weights must sum to 1, got %v", out.Sum())
	}
}

func TestApplyFeedbackClampsToPolicy(t *testing.T) {
	w := WeightsConfig{Technical: 0.6, Fundamental: 0.4 / 3, Sentiment: 0.4 / 3, Momentum: 0.4 / 3}
	out := w.ApplyFeedback(TradeOutcome{Scores: CategoryScores{Technical: 90}, ProfitPct: 1}, DefaultFeedbackPolicy())
	if !near(out.Technical, 0.6) {
		t.Fatalf("clamped weight = %v, want 0.6", out.Technical)
	}
}

func TestStrongestTieOrder(t *testing.T) {
	s := CategoryScores{Technical: 70, Fundamental: 70, Sentiment: 70, Momentum: 70}
	if got := s.Strongest(); got != CategoryTechnical {
		t.Fatalf("tie should resolve to technical, got %s", got)
	}
	s = CategoryScores{Technical: 50, Fundamental: 50, Sentiment: 70, Momentum: 70}
	if got := s.Strongest(); got != CategorySentiment {
		t.Fatalf("tie should resolve to sentiment, got %s", got)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	err := WeightsConfig{Technical: 0.5, Fundamental: 0.5, Sentiment: 0.5}.Validate()
	if !errors.Is(err, ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
	if got := (WeightsConfig{}).Normalize(); got != DefaultWeights() {
		t.Fatalf("zero weights should normalize to defaults, got %+v", got)
	}
}

func TestWeightsScore(t *testing.T) {
	got := DefaultWeights().Score(CategoryScores{Technical: 66, Fundamental: 70, Sentiment: 50, Momentum: 80})
	if !near(got, 66.6) {
		t.Fatalf("score = %v, want 66.6", got)
	}
}
