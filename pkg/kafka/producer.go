package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"CoinPull/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record to publish. Value is JSON encoded unless it is
// already bytes or a string.
type Message struct {
	Topic   string
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

// Producer wraps a kafka-go writer shared by every topic of the service.
type Producer struct {
	writer *kafka.Writer
	comp   string
	log    *logger.Logger
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	compression, _ := parseCompression(cfg.Compression)

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	p := &Producer{comp: cfg.Compression, log: cfg.Logger}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
	}
	if cfg.Async {
		p.writer.Completion = p.completed
	}

	initProducerMetricsOnce()
	return p, nil
}

// Publish sends one value to topic. The key selects the partition when the
// producer hashes by key.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.Send(ctx, Message{Topic: topic, Key: key, Value: value})
}

// Send writes messages in one batch. Messages without a topic are rejected.
func (p *Producer) Send(ctx context.Context, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	start := time.Now()
	msgs := make([]kafka.Message, 0, len(messages))
	var size int64
	for _, m := range messages {
		if m.Topic == "" {
			return fmt.Errorf("kafka producer: message without topic")
		}
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Topic:   m.Topic,
			Key:     m.Key,
			Value:   v,
			Headers: toHeaders(m.Headers),
			Time:    start,
		})
		size += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	// per-topic accounting uses the first topic; batches are single-topic in practice
	observeProducerMetrics(msgs[0].Topic, p.comp, size, len(msgs), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", msgs[0].Topic, err)
	}
	return nil
}

// completed reports async write results.
func (p *Producer) completed(messages []kafka.Message, err error) {
	if err == nil || len(messages) == 0 {
		return
	}
	producerErrsTotal.WithLabelValues(messages[0].Topic).Add(float64(len(messages)))
	p.log.Error("kafka async write failed",
		logger.String("topic", messages[0].Topic),
		logger.Int("messages", len(messages)),
		logger.Error(err),
	)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// encodeValue passes bytes and strings through and JSON-encodes anything else.
func encodeValue(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		v, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return v, nil
	}
}

func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

var (
	producerMsgsTotal   *prometheus.CounterVec
	producerErrsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec
	producerOnce        sync.Once
)

func initProducerMetricsOnce() {
	producerOnce.Do(func() {
		producerMsgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpull_kafka_producer_messages_total",
			Help: "Messages published to Kafka by result",
		}, []string{"topic", "compression", "result"})
		producerErrsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpull_kafka_producer_errors_total",
			Help: "Failed Kafka writes, sync and async",
		}, []string{"topic"})
		producerBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpull_kafka_producer_bytes_total",
			Help: "Payload bytes published",
		}, []string{"topic", "compression"})
		producerLatencyHist = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinpull_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func observeProducerMetrics(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	if producerMsgsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		producerErrsTotal.WithLabelValues(topic).Inc()
	}
	producerMsgsTotal.WithLabelValues(topic, comp, result).Add(float64(count))
	producerBytesTotal.WithLabelValues(topic, comp).Add(float64(bytes))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}
