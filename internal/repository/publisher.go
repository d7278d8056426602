package repository

import (
	"context"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	pkgkafka "CoinPull/pkg/kafka"
)

// eventHeader lets consumers route on the event type without decoding the value.
const eventHeader = "event"

// KafkaPublisher implements EventPublisher on two Kafka topics.
// Messages are keyed by symbol so one symbol's events stay ordered.
type KafkaPublisher struct {
	producer     *pkgkafka.Producer
	signalsTopic string
	tradesTopic  string
	now          func() time.Time
}

func NewKafkaPublisher(producer *pkgkafka.Producer, signalsTopic, tradesTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, signalsTopic: signalsTopic, tradesTopic: tradesTopic, now: time.Now}
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s models.Signal) error {
	return p.producer.Send(ctx, pkgkafka.Message{
		Topic:   p.signalsTopic,
		Key:     []byte(s.Symbol),
		Headers: map[string]string{eventHeader: models.EventSignalGenerated},
		Value: models.SignalEvent{
			Event:  models.EventSignalGenerated,
			Signal: s,
			At:     p.now().UTC(),
		},
	})
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, event string, t models.Trade) error {
	return p.producer.Send(ctx, pkgkafka.Message{
		Topic:   p.tradesTopic,
		Key:     []byte(t.Symbol),
		Headers: map[string]string{eventHeader: event},
		Value: models.TradeEvent{
			Event: event,
			Trade: t,
			At:    p.now().UTC(),
		},
	})
}

// PublishMessage sends a raw payload; it lets the log collector share the producer.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher discards every event. Used when no event stream is configured.
type NopPublisher struct{}

var _ domrepo.EventPublisher = NopPublisher{}

func (NopPublisher) PublishSignal(context.Context, models.Signal) error { return nil }

func (NopPublisher) PublishTrade(context.Context, string, models.Trade) error { return nil }

func (NopPublisher) Close() error { return nil }
