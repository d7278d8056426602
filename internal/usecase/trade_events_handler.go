package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	pkgkafka "CoinPull/pkg/kafka"
	"CoinPull/pkg/logger"
)

// TradeEventsHandler consumes trade lifecycle events and writes them to the trade store.
type TradeEventsHandler struct {
	topic   string
	store   drepo.TradeStore
	metrics drepo.Metrics
	logger  *logger.Logger
}

func NewTradeEventsHandler(topic string, store drepo.TradeStore, metrics drepo.Metrics, log *logger.Logger) *TradeEventsHandler {
	return &TradeEventsHandler{topic: topic, store: store, metrics: metrics, logger: log}
}

func (h *TradeEventsHandler) Topic() string { return h.topic }

// Handle decodes a TradeEvent. Malformed payloads are logged and dropped so they are not retried.
func (h *TradeEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.TradeEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		h.logger.Warn("dropping malformed trade event", logger.Error(err))
		return nil
	}
	if ev.Trade.ID == "" || ev.Trade.Symbol == "" {
		h.metrics.RecordError("consumer_invalid")
		h.logger.Warn("dropping trade event without id", logger.String("event", ev.Event))
		return nil
	}
	if !ev.At.IsZero() {
		h.metrics.RecordLatency("event_e2e", time.Since(ev.At).Seconds())
	}

	start := time.Now()
	err := h.store.SaveTrade(ctx, ev.Trade)
	h.metrics.RecordLatency("store_trade", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("store trade %s: %w", ev.Trade.ID, err)
	}
	h.metrics.RecordMessageSent("store", ev.Event)
	return nil
}

var _ pkgkafka.MessageHandler = (*TradeEventsHandler)(nil)
