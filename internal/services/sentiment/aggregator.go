package sentiment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/domain/service"
	"CoinPull/pkg/cache"
	applogger "CoinPull/pkg/logger"
)

// Config tunes the aggregation.
type Config struct {
	CacheTTL    time.Duration
	MarketFloor float64
	SymbolFloor float64
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:    5 * time.Minute,
		MarketFloor: 0.15,
		SymbolFloor: 0.1,
	}
}

const (
	marketBodyChars = 1000
	symbolBodyChars = 800
	searchBodyChars = 500
	minTextChars    = 20
)

// Aggregator turns fetched news into market-wide and per-symbol sentiment.
type Aggregator struct {
	news    service.NewsSource
	cache   cache.Service
	lexicon Lexicon
	cfg     Config
	logger  *applogger.Logger
	now     func() time.Time
}

var _ service.SentimentProvider = (*Aggregator)(nil)

// Option configures the Aggregator.
type Option func(*Aggregator)

func WithLexicon(l Lexicon) Option {
	return func(a *Aggregator) { a.lexicon = l }
}

func WithConfig(cfg Config) Option {
	return func(a *Aggregator) { a.cfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(news service.NewsSource, c cache.Service, logger *applogger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		news:    news,
		cache:   c,
		lexicon: DefaultLexicon(),
		cfg:     DefaultConfig(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MarketSentiment aggregates every recent article. No news yields a neutral reading, not an error.
func (a *Aggregator) MarketSentiment(ctx context.Context) (models.SentimentResult, error) {
	key := cache.Key("sentiment", "market")
	if res, ok := a.cached(ctx, key); ok {
		return res, nil
	}

	items, err := a.news.FetchNews(ctx)
	if err != nil {
		return models.SentimentResult{}, models.NewExternalError("news", "fetch", err)
	}

	perSource := map[string]int{}
	for _, it := range items {
		perSource[sourceOf(it)]++
	}

	var readings []reading
	for _, it := range items {
		text := strings.Join(nonEmpty(
			repeat(it.Title, 2),
			it.Summary,
			truncate(it.Body, marketBodyChars),
		), " ")
		if len(strings.TrimSpace(text)) < minTextChars {
			continue
		}
		ts := a.lexicon.ScoreText(text)
		if ts.Confidence <= a.cfg.MarketFloor {
			continue
		}
		weight := minFloat(2, float64(perSource[sourceOf(it)])/5+0.5)
		readings = append(readings, reading{score: ts.Score, conf: ts.Confidence * weight})
	}

	res := aggregate(readings)
	res.ComputedAt = a.now()
	a.store(ctx, key, res)

	a.logger.Info("market sentiment computed",
		applogger.String("label", string(res.Label)),
		applogger.Float64("score", res.Score),
		applogger.Float64("confidence", res.Confidence),
		applogger.Int("articles", res.ArticlesAnalyzed),
	)
	return res, nil
}

// SymbolSentiment restricts aggregation to articles naming the symbol.
// It returns models.ErrNoSentimentData when no usable article mentions it.
func (a *Aggregator) SymbolSentiment(ctx context.Context, symbol string) (models.SentimentResult, error) {
	symbol = strings.ToUpper(symbol)
	key := cache.Key("sentiment", "symbol", symbol)
	if res, ok := a.cached(ctx, key); ok {
		return res, nil
	}

	items, err := a.news.FetchNews(ctx)
	if err != nil {
		return models.SentimentResult{}, models.NewExternalError("news", "fetch", err)
	}

	variants := a.lexicon.SymbolVariants(symbol)
	if len(variants) == 0 {
		return models.SentimentResult{}, fmt.Errorf("%q: %w", symbol, models.ErrNoSentimentData)
	}
	pattern := mentionPattern(variants)
	var readings []reading
	var posHeads, negHeads int
	for _, it := range items {
		haystack := strings.Join([]string{it.Title, it.Summary, truncate(it.Body, searchBodyChars)}, " ")
		mentions := len(pattern.FindAllStringIndex(haystack, -1))
		if mentions == 0 {
			continue
		}

		pos, neg := headlineTone(it.Title)
		if pos {
			posHeads++
		}
		if neg {
			negHeads++
		}

		text := strings.Join(nonEmpty(
			repeat(it.Title, 3),
			repeat(it.Summary, 2),
			truncate(it.Body, symbolBodyChars),
		), " ")
		ts := a.lexicon.ScoreText(text)
		if ts.Confidence <= a.cfg.SymbolFloor {
			continue
		}
		weight := minFloat(2, float64(mentions)/3+0.5)
		readings = append(readings, reading{score: ts.Score, conf: ts.Confidence * weight})
	}
	if len(readings) == 0 {
		return models.SentimentResult{}, fmt.Errorf("%s: %w", symbol, models.ErrNoSentimentData)
	}

	res := aggregate(readings)
	res.Symbol = symbol
	res.PositiveHeadlines = posHeads
	res.NegativeHeadlines = negHeads
	res.ComputedAt = a.now()
	a.store(ctx, key, res)
	return res, nil
}

// TrendingTopics counts title words longer than three letters that appear more than once.
func (a *Aggregator) TrendingTopics(ctx context.Context, top int) ([]models.TopicCount, error) {
	items, err := a.news.FetchNews(ctx)
	if err != nil {
		return nil, models.NewExternalError("news", "fetch", err)
	}

	freq := map[string]int{}
	for _, it := range items {
		for _, w := range strings.FieldsFunc(strings.ToLower(it.Title), notWordRune) {
			w = strings.Trim(w, "'")
			if len(w) > 3 && !stopwords[w] {
				freq[w]++
			}
		}
	}

	topics := make([]models.TopicCount, 0, len(freq))
	for w, n := range freq {
		if n > 1 {
			topics = append(topics, models.TopicCount{Topic: w, Count: n})
		}
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Topic < topics[j].Topic
	})
	if top > 0 && len(topics) > top {
		topics = topics[:top]
	}
	return topics, nil
}

// Invalidate drops cached readings.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	_, err := a.cache.DeleteByPrefix(ctx, "sentiment:")
	return err
}

func (a *Aggregator) cached(ctx context.Context, key string) (models.SentimentResult, bool) {
	if a.cache == nil {
		return models.SentimentResult{}, false
	}
	res, ok, err := cache.Fetch[models.SentimentResult](ctx, a.cache, key)
	if err != nil {
		a.logger.Warn("sentiment cache read failed", applogger.String("key", key), applogger.Error(err))
		return models.SentimentResult{}, false
	}
	return res, ok
}

func (a *Aggregator) store(ctx context.Context, key string, res models.SentimentResult) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, key, res, a.cfg.CacheTTL); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("sentiment cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

type reading struct {
	score float64
	conf  float64
}

// aggregate is the confidence-weighted mean of the readings.
func aggregate(rs []reading) models.SentimentResult {
	if len(rs) == 0 {
		return models.NeutralSentiment()
	}

	var sumW, sumWS, sumS float64
	res := models.SentimentResult{ArticlesAnalyzed: len(rs)}
	for _, r := range rs {
		sumW += r.conf
		sumWS += r.score * r.conf
		sumS += r.score
		switch {
		case r.score > 0.1:
			res.Positive++
		case r.score < -0.1:
			res.Negative++
		default:
			res.Neutral++
		}
	}
	if sumW > 0 {
		res.Score = sumWS / sumW
	} else {
		res.Score = sumS / float64(len(rs))
	}
	res.Confidence = minFloat(1, sumW/float64(len(rs)))
	res.Label = Label(res.Score)
	return res
}

// Label maps an aggregate score to its label.
func Label(score float64) models.SentimentLabel {
	switch {
	case score > 0.2:
		return models.SentimentBullish
	case score > 0.05:
		return models.SentimentSlightlyBullish
	case score < -0.2:
		return models.SentimentBearish
	case score < -0.05:
		return models.SentimentSlightlyBearish
	default:
		return models.SentimentNeutral
	}
}

func mentionPattern(variants []string) *regexp.Regexp {
	quoted := make([]string, len(variants))
	for i, v := range variants {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func sourceOf(it models.NewsItem) string {
	if it.Source == "" {
		return "unknown"
	}
	return it.Source
}

// repeat emphasizes a field by repeating it, space separated.
func repeat(s string, n int) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(strings.Repeat(s+" ", n))
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
