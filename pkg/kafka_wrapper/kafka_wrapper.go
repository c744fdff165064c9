// Package kafkawrapper publishes JSON messages to Kafka and runs a pool of
// workers consuming a topic in batches.
package kafkawrapper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrNotInitialized = errors.New("kafka client not initialized")

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	Headers   map[string]string
	Raw       kafka.Message
}

type ProducerConfig struct {
	Brokers      []string
	Balancer     kafka.Balancer
	BatchSize    int
	BatchBytes   int64
	BatchTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
	Async        bool
	// Completion reports the outcome of every async write batch.
	Completion func(messages []kafka.Message, err error)
}

type Producer struct {
	w *kafka.Writer
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.Balancer == nil {
		cfg.Balancer = &kafka.Hash{}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = 1 << 20
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	wr := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               cfg.Balancer,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           cfg.RequiredAcks,
		Async:                  cfg.Async,
		Completion:             cfg.Completion,
	}
	return &Producer{w: wr}
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return ErrNotInitialized
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: mapToHeaders(headers),
		Time:    time.Now(),
	})
}

func (p *Producer) PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, []byte(key), b, headers)
}

func (p *Producer) Close(ctx context.Context) error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	WorkerCount int
	MaxRetries  int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	// max messages per batch
	BatchSize int
	// max time spent filling one batch
	BatchTimeout time.Duration
}

func (cfg *ConsumerConfig) setDefaults() {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}
}

type ConsumerGroup struct {
	r          *kafka.Reader
	cfg        ConsumerConfig
	prodForDLQ *Producer
}

func NewConsumerGroup(cfg ConsumerConfig) (*ConsumerGroup, error) {
	cfg.setDefaults()
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka consumer needs brokers and a topic")
	}

	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})

	var prod *Producer
	if cfg.DLQTopic != "" {
		prod = NewProducer(ProducerConfig{Brokers: cfg.Brokers})
	}

	return &ConsumerGroup{r: rd, cfg: cfg, prodForDLQ: prod}, nil
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil {
		return nil
	}
	if cg.prodForDLQ != nil {
		_ = cg.prodForDLQ.Close(context.Background())
	}
	if cg.r != nil {
		return cg.r.Close()
	}
	return nil
}

// Run hands batches of messages to handler on WorkerCount goroutines until ctx
// is done. A batch is committed once handler succeeds, or once it has failed
// MaxRetries times and been copied to the DLQ topic.
func (cg *ConsumerGroup) Run(ctx context.Context, handler func(context.Context, []Message) error) error {
	if cg == nil || cg.r == nil {
		return ErrNotInitialized
	}

	batches := make(chan []kafka.Message, cg.cfg.WorkerCount)

	go func() {
		defer close(batches)
		for {
			buf, err := cg.fetchBatch(ctx)
			if len(buf) > 0 {
				select {
				case batches <- buf:
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				zap.S().Warnf("kafka fetch %s: %v", cg.cfg.Topic, err)
				time.Sleep(200 * time.Millisecond)
			}
		}
	}()

	done := make(chan struct{}, cg.cfg.WorkerCount)
	for i := 0; i < cg.cfg.WorkerCount; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for ms := range batches {
				cg.handleBatch(ctx, ms, handler)
			}
		}()
	}

	for i := 0; i < cg.cfg.WorkerCount; i++ {
		<-done
	}
	return ctx.Err()
}

// fetchBatch collects up to BatchSize messages or whatever arrived within
// BatchTimeout.
func (cg *ConsumerGroup) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	batchCtx, cancel := context.WithTimeout(ctx, cg.cfg.BatchTimeout)
	defer cancel()

	var buf []kafka.Message
	for len(buf) < cg.cfg.BatchSize {
		m, err := cg.r.FetchMessage(batchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return buf, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return buf, nil
			}
			return buf, err
		}
		buf = append(buf, m)
	}
	return buf, nil
}

func (cg *ConsumerGroup) handleBatch(ctx context.Context, ms []kafka.Message, handler func(context.Context, []Message) error) {
	wrapped := make([]Message, len(ms))
	for i, m := range ms {
		wrapped[i] = wrapMessage(m)
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = cg.cfg.BackoffMin
	boff.MaxInterval = cg.cfg.BackoffMax
	boff.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		return handler(ctx, wrapped)
	}, backoff.WithContext(backoff.WithMaxRetries(boff, uint64(cg.cfg.MaxRetries)), ctx))
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		zap.S().Errorf("kafka batch on %s failed after %d retries: %v", cg.cfg.Topic, cg.cfg.MaxRetries, err)
		if cg.prodForDLQ != nil {
			for _, m := range ms {
				_ = cg.prodForDLQ.Publish(ctx, cg.cfg.DLQTopic, m.Key, m.Value, headersToMap(m.Headers))
			}
		}
	}
	if err := cg.r.CommitMessages(ctx, ms...); err != nil {
		zap.S().Warnf("kafka commit on %s: %v", cg.cfg.Topic, err)
	}
}

func wrapMessage(m kafka.Message) Message {
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   headersToMap(m.Headers),
		Raw:       m,
	}
}

func headersToMap(hs []kafka.Header) map[string]string {
	out := map[string]string{}
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}

func mapToHeaders(m map[string]string) []kafka.Header {
	var kh []kafka.Header
	for k, v := range m {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kh
}
