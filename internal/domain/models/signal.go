package models

import "time"

// Action is the trade decision of a signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Opposite returns the reverse action. HOLD has no opposite.
func (a Action) Opposite() Action {
	switch a {
	case ActionBuy:
		return ActionSell
	case ActionSell:
		return ActionBuy
	default:
		return ActionHold
	}
}

type Strength string

const (
	StrengthWeak     Strength = "Weak"
	StrengthModerate Strength = "Moderate"
	StrengthStrong   Strength = "Strong"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// NeutralScore is the score every category starts from.
const NeutralScore = 50.0

// Signal is an immutable trade recommendation for one symbol.
type Signal struct {
	Symbol       string         `json:"symbol"`
	Action       Action         `json:"action"`
	Confidence   float64        `json:"confidence"`
	Strength     Strength       `json:"strength"`
	RiskLevel    RiskLevel      `json:"risk_level"`
	FinalScore   float64        `json:"final_score"`
	Scores       CategoryScores `json:"component_scores"`
	Weights      WeightsConfig  `json:"weights"`
	Reasoning    string         `json:"reasoning"`
	Price        float64        `json:"price"`
	Insufficient bool           `json:"insufficient_data,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// IsActionable reports whether the signal asks for a trade.
func (s Signal) IsActionable() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}

// SignalStats summarizes recently generated signals.
type SignalStats struct {
	Total              int                `json:"total"`
	Buy                int                `json:"buy"`
	Sell               int                `json:"sell"`
	Hold               int                `json:"hold"`
	Strong             int                `json:"strong"`
	AverageConfidence  float64            `json:"average_confidence"`
	ConfidenceByAction map[Action]float64 `json:"confidence_by_action"`
}
