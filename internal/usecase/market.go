package usecase

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	applogger "CoinPull/pkg/logger"
)

// TopicSource lists trending news topics.
type TopicSource interface {
	TrendingTopics(ctx context.Context, top int) ([]models.TopicCount, error)
}

// Universe filters for the scan candidates.
const (
	gainerMinVolume      = 10_000
	gainerMinQuoteVolume = 100_000
	leaderMinQuoteVolume = 50_000
)

// TopGainers returns quote pairs with real activity, biggest 24h change first.
func TopGainers(tickers []models.Ticker24h, quote string, n int) []models.Ticker24h {
	out := filterQuote(tickers, quote, func(t models.Ticker24h) bool {
		return t.Volume > gainerMinVolume && t.QuoteVolume > gainerMinQuoteVolume
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriceChangePercent > out[j].PriceChangePercent })
	return head(out, n)
}

// VolumeLeaders returns quote pairs by 24h quote volume.
func VolumeLeaders(tickers []models.Ticker24h, quote string, n int) []models.Ticker24h {
	out := filterQuote(tickers, quote, func(t models.Ticker24h) bool {
		return t.QuoteVolume > leaderMinQuoteVolume
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].QuoteVolume > out[j].QuoteVolume })
	return head(out, n)
}

func filterQuote(tickers []models.Ticker24h, quote string, keep func(models.Ticker24h) bool) []models.Ticker24h {
	quote = strings.ToUpper(quote)
	out := make([]models.Ticker24h, 0, len(tickers))
	for _, t := range tickers {
		if strings.HasSuffix(t.Symbol, quote) && keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func head[T any](xs []T, n int) []T {
	if n > 0 && len(xs) > n {
		return xs[:n]
	}
	return xs
}

// Conditions summarizes the 24h tickers of the quote market.
func Conditions(tickers []models.Ticker24h, quote string) models.MarketConditions {
	pairs := filterQuote(tickers, quote, func(models.Ticker24h) bool { return true })
	c := models.MarketConditions{Pairs: len(pairs), Volatility: "Low", Sentiment: string(models.SentimentNeutral)}
	if len(pairs) == 0 {
		return c
	}
	gainers := 0
	sumAbs := 0.0
	for _, t := range pairs {
		if t.PriceChangePercent > 0 {
			gainers++
		}
		c.AvgChange += t.PriceChangePercent
		c.TotalVolume += t.QuoteVolume
		sumAbs += math.Abs(t.PriceChangePercent)
	}
	n := float64(len(pairs))
	c.GainersPct = float64(gainers) / n * 100
	c.AvgChange /= n

	switch avgAbs := sumAbs / n; {
	case avgAbs > 5:
		c.Volatility = "High"
	case avgAbs > 2:
		c.Volatility = "Medium"
	}
	switch {
	case c.GainersPct > 60 && c.AvgChange > 2:
		c.Sentiment = string(models.SentimentBullish)
	case c.GainersPct < 40 && c.AvgChange < -2:
		c.Sentiment = string(models.SentimentBearish)
	}
	return c
}

// MarketUseCase blends market breadth with news sentiment.
type MarketUseCase struct {
	exchange  domsvc.ExchangeClient
	sentiment domsvc.SentimentProvider
	topics    TopicSource
	metrics   drepo.Metrics
	logger    *applogger.Logger
	quote     string
	timeout   time.Duration
}

func NewMarketUseCase(exchange domsvc.ExchangeClient, sentiment domsvc.SentimentProvider, topics TopicSource, metrics drepo.Metrics, logger *applogger.Logger, quote string, timeout time.Duration) *MarketUseCase {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MarketUseCase{exchange: exchange, sentiment: sentiment, topics: topics, metrics: metrics, logger: logger, quote: quote, timeout: timeout}
}

// Overview scores the market as 0.6 breadth + 0.4 news. News failures degrade to neutral.
func (uc *MarketUseCase) Overview(ctx context.Context) (models.MarketOverview, error) {
	cctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	tickers, err := uc.exchange.ListTickers24h(cctx)
	if err != nil {
		return models.MarketOverview{}, models.NewExternalError("exchange", "tickers", err)
	}
	cond := Conditions(tickers, uc.quote)

	news, err := uc.sentiment.MarketSentiment(cctx)
	if err != nil {
		uc.metrics.RecordError("sentiment")
		uc.logger.Warn("news sentiment unavailable for overview", applogger.Error(err))
		news = models.NeutralSentiment()
	}

	ov := Blend(cond, news)
	ov.GeneratedAt = time.Now()
	if uc.topics != nil {
		if topics, err := uc.topics.TrendingTopics(cctx, 10); err == nil {
			ov.TrendingTopics = topics
		}
	}
	return ov, nil
}

// Blend combines breadth and news into the overview score, label and confidence.
func Blend(cond models.MarketConditions, news models.SentimentResult) models.MarketOverview {
	market := math.Max(-1, math.Min(1, (cond.GainersPct-50)/50+cond.AvgChange/10))
	combined := 0.6*market + 0.4*news.Score

	label := models.SentimentNeutral
	switch {
	case combined > 0.3:
		label = models.SentimentBullish
	case combined < -0.3:
		label = models.SentimentBearish
	}

	conf := 50.0
	if cond.GainersPct > 60 || cond.GainersPct < 40 {
		conf += 15
	}
	conf += math.Min(math.Abs(news.Score)*20, 20)
	if cond.TotalVolume > 1e9 {
		conf += 10
	}

	return models.MarketOverview{
		Conditions:    cond,
		News:          news,
		MarketScore:   market,
		CombinedScore: combined,
		Label:         label,
		Confidence:    math.Min(conf, 95),
	}
}
