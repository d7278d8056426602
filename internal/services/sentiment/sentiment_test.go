package sentiment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
	"CoinPull/pkg/cache"
	applogger "CoinPull/pkg/logger"
)

type staticNews struct {
	items []models.NewsItem
	err   error
	calls atomic.Int32
}

func (s *staticNews) FetchNews(context.Context) ([]models.NewsItem, error) {
	s.calls.Add(1)
	return s.items, s.err
}

func fixtureNews() *staticNews {
	return &staticNews{items: []models.NewsItem{
		{Title: "Bitcoin surge", Source: "a"},
		{Title: "Ethereum rally extends", Source: "a"},
		{Title: "Market crash deepens", Source: "b"},
		{Title: "Bitcoin gains on surge", Source: "c"},
		{Title: "Ethereum surge ahead", Source: "c"},
		{Title: "Isolation fears grow", Source: "d"},
	}}
}

func newTestAggregator(news *staticNews) *Aggregator {
	c := cache.NewMemoryCache()
	return NewAggregator(news, c, applogger.Nop())
}

func TestScoreText(t *testing.T) {
	lex := DefaultLexicon()

	got := lex.ScoreText("Bitcoin surge continues")
	assert.InDelta(t, 1.0, got.Score, 1e-9)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
	assert.Equal(t, 1, got.Matches)

	// "not" also contains "no": two negation hits.
	neg := lex.ScoreText("Bitcoin will not crash")
	assert.InDelta(t, -1/1.44, neg.Score, 1e-9)

	none := lex.ScoreText("hello world")
	assert.Zero(t, none.Score)
	assert.Zero(t, none.Confidence)
}

func TestScoreTextBounds(t *testing.T) {
	lex := DefaultLexicon()
	for _, text := range []string{
		"surge rally gain crash dump",
		"ban ban ban regulation hack",
		"adoption partnership growth",
		"",
	} {
		ts := lex.ScoreText(text)
		assert.GreaterOrEqual(t, ts.Score, -1.0, text)
		assert.LessOrEqual(t, ts.Score, 1.0, text)
		assert.LessOrEqual(t, ts.Confidence, 1.0, text)
	}
}

func TestLabelThresholds(t *testing.T) {
	cases := map[float64]models.SentimentLabel{
		0.5:   models.SentimentBullish,
		0.1:   models.SentimentSlightlyBullish,
		0.0:   models.SentimentNeutral,
		-0.1:  models.SentimentSlightlyBearish,
		-0.21: models.SentimentBearish,
	}
	for score, want := range cases {
		assert.Equal(t, want, Label(score), "score %v", score)
	}
}

func TestMarketSentimentWeightsBySource(t *testing.T) {
	news := &staticNews{items: []models.NewsItem{
		{Title: "Bitcoin surge", Source: "a"},
		{Title: "Ethereum rally extends", Source: "a"},
		{Title: "Market crash deepens", Source: "b"},
	}}
	agg := newTestAggregator(news)

	res, err := agg.MarketSentiment(context.Background())
	require.NoError(t, err)

	// source a weighs 0.9 per article, source b 0.7
	assert.InDelta(t, 1.1/2.5, res.Score, 1e-9)
	assert.InDelta(t, 2.5/3, res.Confidence, 1e-9)
	assert.Equal(t, models.SentimentBullish, res.Label)
	assert.Equal(t, 3, res.ArticlesAnalyzed)
	assert.Equal(t, 2, res.Positive)
	assert.Equal(t, 1, res.Negative)
}

func TestMarketSentimentIsCached(t *testing.T) {
	news := fixtureNews()
	agg := newTestAggregator(news)
	ctx := context.Background()

	first, err := agg.MarketSentiment(ctx)
	require.NoError(t, err)
	second, err := agg.MarketSentiment(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), news.calls.Load())
	assert.Equal(t, first.Score, second.Score)

	require.NoError(t, agg.Invalidate(ctx))
	_, err = agg.MarketSentiment(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), news.calls.Load())
}

func TestMarketSentimentWithoutNewsIsNeutral(t *testing.T) {
	agg := newTestAggregator(&staticNews{})
	res, err := agg.MarketSentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNeutral, res.Label)
	assert.Zero(t, res.ArticlesAnalyzed)
}

func TestMarketSentimentFetchError(t *testing.T) {
	agg := newTestAggregator(&staticNews{err: errors.New("timeout")})
	_, err := agg.MarketSentiment(context.Background())

	var ext *models.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "news", ext.Service)
}

func TestSymbolSentiment(t *testing.T) {
	agg := newTestAggregator(fixtureNews())

	res, err := agg.SymbolSentiment(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.Equal(t, 2, res.ArticlesAnalyzed)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.Equal(t, models.SentimentBullish, res.Label)
	assert.Equal(t, 1, res.PositiveHeadlines)
	assert.Zero(t, res.NegativeHeadlines)
}

func TestSymbolSentimentUsesWordBoundaries(t *testing.T) {
	agg := newTestAggregator(fixtureNews())

	// "Isolation" must not count as a mention of SOL.
	_, err := agg.SymbolSentiment(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, models.ErrNoSentimentData)
}

func TestTrendingTopics(t *testing.T) {
	agg := newTestAggregator(fixtureNews())

	topics, err := agg.TrendingTopics(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, models.TopicCount{Topic: "surge", Count: 3}, topics[0])
	assert.Equal(t, models.TopicCount{Topic: "ethereum", Count: 2}, topics[1])
}

func TestSymbolVariants(t *testing.T) {
	lex := DefaultLexicon()
	assert.Equal(t, []string{"bitcoin", "btc", "btcusdt"}, lex.SymbolVariants("BTCUSDT"))
	assert.Equal(t, []string{"pepe", "pepeusdt"}, lex.SymbolVariants("PEPEUSDT"))
}

func TestAggregatorUsesClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	agg := NewAggregator(fixtureNews(), nil, applogger.Nop(), WithClock(func() time.Time { return at }))

	res, err := agg.MarketSentiment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, at, res.ComputedAt)
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := "Bitcoin €uro rally"
	for n := 0; n <= len(s); n++ {
		got := truncate(s, n)
		assert.True(t, utf8.ValidString(got), "n=%d", n)
		assert.LessOrEqual(t, len(got), n)
	}
	assert.Equal(t, "Bitcoin ", truncate(s, 9))
	assert.Equal(t, "Bitcoin €", truncate(s, 11))
	assert.Equal(t, "short", truncate("short", 10))
}
