package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
)

// Trade event names on the event stream.
const (
	EventTradeOpened = models.EventTradeOpened
	EventTradeClosed = models.EventTradeClosed
)

// Backends a TradeRecorder can route to.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

// TradeRecorder routes trade state changes to the configured backend.
// With kafka the event consumer persists them; otherwise the store is written directly.
type TradeRecorder struct {
	pub     drepo.EventPublisher
	store   drepo.TradeStore
	metrics drepo.Metrics
	backend string
}

func NewTradeRecorder(pub drepo.EventPublisher, store drepo.TradeStore, metrics drepo.Metrics, backend string) *TradeRecorder {
	return &TradeRecorder{pub: pub, store: store, metrics: metrics, backend: backend}
}

// Record persists or publishes one trade version.
func (r *TradeRecorder) Record(ctx context.Context, event string, t models.Trade) error {
	start := time.Now()
	var err error

	switch r.backend {
	case BackendKafka:
		err = r.pub.PublishTrade(ctx, event, t)
	case BackendClickHouse, BackendMemory:
		err = r.store.SaveTrade(ctx, t)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("record_trade")
		return fmt.Errorf("record trade %s: %w", t.ID, err)
	}

	r.metrics.RecordMessageSent(r.backend, event)
	r.metrics.RecordLatency("record_trade", time.Since(start).Seconds())
	return nil
}

func (r *TradeRecorder) Backend() string { return r.backend }

// Close closes the publisher and the store.
func (r *TradeRecorder) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}
