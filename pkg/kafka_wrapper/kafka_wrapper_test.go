package kafkawrapper

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerConfigDefaults(t *testing.T) {
	cfg := ConsumerConfig{MaxRetries: -3}
	cfg.setDefaults()

	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BackoffMin)
	assert.Equal(t, 10*time.Second, cfg.BackoffMax)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 200*time.Millisecond, cfg.BatchTimeout)
}

func TestNewConsumerGroupRequiresTopic(t *testing.T) {
	_, err := NewConsumerGroup(ConsumerConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	_, err = NewConsumerGroup(ConsumerConfig{Topic: "lobsim.trades"})
	assert.Error(t, err)
}

func TestNilClients(t *testing.T) {
	var p *Producer
	assert.ErrorIs(t, p.Publish(context.Background(), "t", nil, nil, nil), ErrNotInitialized)

	var cg *ConsumerGroup
	assert.ErrorIs(t, cg.Run(context.Background(), nil), ErrNotInitialized)
}

func TestWrapMessage(t *testing.T) {
	raw := kafka.Message{
		Topic:     "lobsim.trades",
		Partition: 2,
		Offset:    41,
		Key:       []byte("run-1"),
		Value:     []byte(`{"price":100}`),
		Headers:   mapToHeaders(map[string]string{"run_id": "run-1"}),
	}

	m := wrapMessage(raw)
	require.Equal(t, "lobsim.trades", m.Topic)
	assert.Equal(t, 2, m.Partition)
	assert.Equal(t, int64(41), m.Offset)
	assert.Equal(t, []byte("run-1"), m.Key)
	assert.Equal(t, "run-1", m.Headers["run_id"])
	assert.Equal(t, raw.Offset, m.Raw.Offset)
}
