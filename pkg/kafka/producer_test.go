package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = encodeValue(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := parseCompression("snappy")
	require.NoError(t, err)
	assert.Equal(t, kafka.Snappy, c)

	c, err = parseCompression("none")
	require.NoError(t, err)
	assert.Equal(t, kafka.Compression(0), c)

	c, err = parseCompression("")
	require.NoError(t, err)
	assert.Equal(t, kafka.Gzip, c)

	_, err = parseCompression("brotli")
	assert.Error(t, err)
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer()
	assert.ErrorContains(t, err, "brokers are required")

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithRequiredAcks(2))
	assert.ErrorContains(t, err, "required acks")

	_, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("brotli"))
	assert.ErrorContains(t, err, "unknown compression")
}

func TestProducer_SendRejectsMissingTopic(t *testing.T) {
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Send(context.Background()))
	err = p.Send(context.Background(), Message{Value: "x"})
	assert.ErrorContains(t, err, "without topic")
}

func TestToHeaders(t *testing.T) {
	assert.Nil(t, toHeaders(nil))
	h := toHeaders(map[string]string{"event": "trade.opened"})
	require.Len(t, h, 1)
	assert.Equal(t, "event", h[0].Key)
	assert.Equal(t, "trade.opened", string(h[0].Value))
}
