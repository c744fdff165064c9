package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	kafkawrapper "github.com/joripage/lobsim/pkg/kafka_wrapper"
	"github.com/joripage/lobsim/pkg/model"
	"github.com/joripage/lobsim/pkg/orderbook"
	kafka "github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TradeTopic  string   `yaml:"trade_topic"`
	BookTopic   string   `yaml:"book_topic"`
	GroupID     string   `yaml:"group_id"`
	WorkerCount int      `yaml:"worker_count"`
	BatchSize   int      `yaml:"batch_size"`
	MaxRetries  int      `yaml:"max_retries"`
	DLQTopic    string   `yaml:"dlq_topic"`
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
	Close(ctx context.Context) error
}

// KafkaRecorder publishes trades and book states as JSON, keyed by run id so a
// run stays on one partition. Writes are async; delivery failures reported by
// the producer are returned from the next Record or Close call.
type KafkaRecorder struct {
	pub   jsonPublisher
	cfg   KafkaConfig
	runID string

	mu          sync.Mutex
	deliveryErr error
}

func NewKafkaRecorder(cfg KafkaConfig, runID string) (*KafkaRecorder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka recorder needs brokers")
	}
	r := newKafkaRecorder(nil, cfg, runID)
	r.pub = kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
		Brokers:      cfg.Brokers,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   r.onDelivery,
	})
	return r, nil
}

func newKafkaRecorder(pub jsonPublisher, cfg KafkaConfig, runID string) *KafkaRecorder {
	return &KafkaRecorder{pub: pub, cfg: cfg, runID: runID}
}

// onDelivery runs on the producer's goroutine.
func (r *KafkaRecorder) onDelivery(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveryErr = errors.Join(r.deliveryErr, fmt.Errorf("deliver %d kafka messages: %w", len(msgs), err))
}

func (r *KafkaRecorder) takeDeliveryErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.deliveryErr
	r.deliveryErr = nil
	return err
}

func (r *KafkaRecorder) headers() map[string]string {
	return map[string]string{"run_id": r.runID}
}

func (r *KafkaRecorder) RecordTrades(ctx context.Context, at float64, trades []orderbook.Trade) error {
	if r.cfg.TradeTopic == "" {
		return r.takeDeliveryErr()
	}
	for _, tr := range trades {
		if err := r.pub.PublishJSON(ctx, r.cfg.TradeTopic, r.runID, model.NewTrade(r.runID, at, tr), r.headers()); err != nil {
			return errors.Join(err, r.takeDeliveryErr())
		}
	}
	return r.takeDeliveryErr()
}

func (r *KafkaRecorder) RecordBook(ctx context.Context, s BookState) error {
	if r.cfg.BookTopic == "" {
		return r.takeDeliveryErr()
	}
	st := model.NewBookState(r.runID, s.Time, s.BestBid, s.BestAsk, s.MidPrice, s.Inventory)
	return errors.Join(r.pub.PublishJSON(ctx, r.cfg.BookTopic, r.runID, st, r.headers()), r.takeDeliveryErr())
}

func (r *KafkaRecorder) RecordQuote(context.Context, QuoteState) error {
	return r.takeDeliveryErr()
}

// Close flushes pending writes, so late delivery failures are included.
func (r *KafkaRecorder) Close(ctx context.Context) error {
	err := r.pub.Close(ctx)
	return errors.Join(err, r.takeDeliveryErr())
}
