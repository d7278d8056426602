package service

import (
	"context"

	"CoinPull/internal/domain/models"
)

// ExchangeClient is the consumed surface of the spot exchange.
type ExchangeClient interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
	GetTicker24h(ctx context.Context, symbol string) (models.Ticker24h, error)
	ListTickers24h(ctx context.Context) ([]models.Ticker24h, error)
	GetAccountInfo(ctx context.Context) (models.AccountInfo, error)
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]models.OrderAck, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// OrderPlacer is the part of the exchange needed to close positions.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderAck, error)
}

// SentimentProvider returns aggregated news sentiment.
// SymbolSentiment returns models.ErrNoSentimentData when no article mentions the symbol.
type SentimentProvider interface {
	MarketSentiment(ctx context.Context) (models.SentimentResult, error)
	SymbolSentiment(ctx context.Context, symbol string) (models.SentimentResult, error)
}

// NewsSource fetches recent, time-filtered news items.
type NewsSource interface {
	FetchNews(ctx context.Context) ([]models.NewsItem, error)
}

// SignalSource produces a signal for a symbol.
type SignalSource interface {
	Generate(ctx context.Context, symbol string) (models.Signal, error)
}
