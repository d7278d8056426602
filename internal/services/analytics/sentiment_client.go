package analytics

import (
	"context"
	"strings"
	"time"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/services/sentiment"
	"CoinPull/pkg/config"
)

// HTTPSentimentProvider reads sentiment from a remote scoring service
// instead of the local news aggregator.
type HTTPSentimentProvider struct {
	base *HTTPServiceBase
	now  func() time.Time
}

func NewHTTPSentimentProvider(cfg *config.Config) *HTTPSentimentProvider {
	return &HTTPSentimentProvider{base: NewHTTPServiceBase(cfg), now: time.Now}
}

type sentimentRequest struct {
	Symbol string `json:"symbol,omitempty"`
}

func (p *HTTPSentimentProvider) MarketSentiment(ctx context.Context) (models.SentimentResult, error) {
	var res models.SentimentResult
	if err := p.base.PostJSONWithRetry(ctx, "/sentiment/market", sentimentRequest{}, &res); err != nil {
		return models.SentimentResult{}, models.NewExternalError("sentiment", "market", err)
	}
	return p.normalize(res), nil
}

// SymbolSentiment returns models.ErrNoSentimentData when the service analyzed no article.
func (p *HTTPSentimentProvider) SymbolSentiment(ctx context.Context, symbol string) (models.SentimentResult, error) {
	symbol = strings.ToUpper(symbol)
	var res models.SentimentResult
	if err := p.base.PostJSONWithRetry(ctx, "/sentiment/symbol", sentimentRequest{Symbol: symbol}, &res); err != nil {
		return models.SentimentResult{}, models.NewExternalError("sentiment", "symbol "+symbol, err)
	}
	if res.ArticlesAnalyzed == 0 {
		return models.SentimentResult{}, models.ErrNoSentimentData
	}
	res.Symbol = symbol
	return p.normalize(res), nil
}

func (p *HTTPSentimentProvider) normalize(res models.SentimentResult) models.SentimentResult {
	if res.Score > 1 {
		res.Score = 1
	} else if res.Score < -1 {
		res.Score = -1
	}
	if res.Label == "" {
		res.Label = sentiment.Label(res.Score)
	}
	if res.ComputedAt.IsZero() {
		res.ComputedAt = p.now().UTC()
	}
	return res
}

var _ domsvc.SentimentProvider = (*HTTPSentimentProvider)(nil)
