package models

import "time"

// NewsItem is a pre-fetched article from the news collaborator.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Body        string    `json:"body"`
	Link        string    `json:"link,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
}

type SentimentLabel string

const (
	SentimentBullish         SentimentLabel = "Bullish"
	SentimentSlightlyBullish SentimentLabel = "Slightly Bullish"
	SentimentNeutral         SentimentLabel = "Neutral"
	SentimentSlightlyBearish SentimentLabel = "Slightly Bearish"
	SentimentBearish         SentimentLabel = "Bearish"
)

// SentimentResult is an aggregate sentiment reading, market-wide or for one symbol.
type SentimentResult struct {
	Symbol           string         `json:"symbol,omitempty"`
	Label            SentimentLabel `json:"overall_sentiment"`
	Score            float64        `json:"sentiment_score"`
	Confidence       float64        `json:"confidence"`
	ArticlesAnalyzed int            `json:"articles_analyzed"`
	Positive         int            `json:"positive_count"`
	Negative         int            `json:"negative_count"`
	Neutral          int            `json:"neutral_count"`
	// Headline keyword hits over the articles that mention the symbol.
	PositiveHeadlines int       `json:"positive_headlines,omitempty"`
	NegativeHeadlines int       `json:"negative_headlines,omitempty"`
	ComputedAt        time.Time `json:"computed_at"`
}

// NeutralSentiment is the reading used when no news is available.
func NeutralSentiment() SentimentResult {
	return SentimentResult{Label: SentimentNeutral}
}

// TopicCount is a trending word in recent headlines.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}
