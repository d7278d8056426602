package models

import "time"

// ScanResult is the consolidated outcome of analyzing many symbols.
// Failures of single symbols are collected, never fatal.
type ScanResult struct {
	Opportunities []Signal          `json:"opportunities"`
	Scanned       int               `json:"scanned"`
	Skipped       int               `json:"skipped"`
	Failed        int               `json:"failed"`
	Errors        map[string]string `json:"errors,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	Duration      time.Duration     `json:"duration_ns"`
}

// MarketConditions summarizes the 24h state of the whole quote market.
type MarketConditions struct {
	Pairs       int     `json:"pairs"`
	GainersPct  float64 `json:"gainers_pct"`
	AvgChange   float64 `json:"avg_change"`
	TotalVolume float64 `json:"total_volume"`
	Volatility  string  `json:"volatility_level"`
	Sentiment   string  `json:"sentiment"`
}

// MarketOverview blends market conditions with news sentiment.
type MarketOverview struct {
	Conditions     MarketConditions `json:"conditions"`
	News           SentimentResult  `json:"news"`
	MarketScore    float64          `json:"market_score"`
	CombinedScore  float64          `json:"combined_score"`
	Label          SentimentLabel   `json:"label"`
	Confidence     float64          `json:"confidence"`
	TrendingTopics []TopicCount     `json:"trending_topics,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// CycleReport describes one run of the trading cycle.
type CycleReport struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration_ns"`
	Evaluated int               `json:"evaluated"`
	Closed    []Trade           `json:"closed,omitempty"`
	Opened    []Trade           `json:"opened,omitempty"`
	Skipped   map[string]string `json:"skipped,omitempty"`
	Stopped   bool              `json:"stopped,omitempty"`
}
