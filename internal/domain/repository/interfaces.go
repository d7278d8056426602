package repository

import (
	"context"

	"CoinPull/internal/domain/models"
)

// MarketStream pushes real-time prices for the configured symbols.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EventPublisher emits signal and trade events to the event stream.
type EventPublisher interface {
	PublishSignal(ctx context.Context, s models.Signal) error
	PublishTrade(ctx context.Context, event string, t models.Trade) error
	Close() error
}

// TradeStore persists the trade history. SaveTrade upserts by trade id.
type TradeStore interface {
	SaveTrade(ctx context.Context, t models.Trade) error
	ListTrades(ctx context.Context, f models.TradeFilter) ([]models.Trade, error)
	OpenTrades(ctx context.Context) ([]models.Trade, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordSignal(symbol string, action models.Action, confidence float64)
	RecordTradeOpened(symbol string, side models.Side)
	RecordTradeClosed(symbol string, reason models.ExitReason, pnlPct float64)
	RecordOpenPositions(n int)
	RecordWeights(w models.WeightsConfig)
	RecordScan(scanned, skipped, failed int)
	RecordMessageSent(backend, kind string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
