// file: pkg/worker/worker.go
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkawrapper "github.com/joripage/lobsim/pkg/kafka_wrapper"
	"github.com/joripage/lobsim/pkg/logging"
	"github.com/joripage/lobsim/pkg/model"
	"github.com/joripage/lobsim/pkg/repo"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const fetchBatch = 10

// Worker moves recorded results from the brokers into the trade store: trade
// batches from Kafka, book states from a JetStream pull consumer.
type Worker struct {
	trade     repo.ITrade
	bookState repo.IBookState
	logger    *logging.Logger
}

func NewWorker(r repo.IRepo, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Worker{
		trade:     r.Trade(),
		bookState: r.BookState(),
		logger:    logger,
	}
}

// HandleTradeBatch is a kafka_wrapper.ConsumerGroup handler. Messages that do
// not decode are logged and skipped; a store failure fails the whole batch so
// it is retried.
func (w *Worker) HandleTradeBatch(ctx context.Context, msgs []kafkawrapper.Message) error {
	records := make([]*model.Trade, 0, len(msgs))
	for _, m := range msgs {
		var tr model.Trade
		if err := json.Unmarshal(m.Value, &tr); err != nil {
			w.logger.Warn(ctx, "skip undecodable trade",
				zap.String("topic", m.Topic),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			continue
		}
		records = append(records, &tr)
	}
	if _, err := w.trade.BulkCreate(ctx, records); err != nil {
		return err
	}
	w.logger.Debug(ctx, "stored trades", zap.Int("count", len(records)))
	return nil
}

// RunTradeConsumer blocks until ctx is done.
func (w *Worker) RunTradeConsumer(ctx context.Context, cg *kafkawrapper.ConsumerGroup) error {
	return cg.Run(ctx, w.HandleTradeBatch)
}

func (w *Worker) handleBookState(ctx context.Context, data []byte) error {
	var st model.BookState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	_, err := w.bookState.Create(ctx, &st)
	return err
}

// StartBookStateConsumer pulls book states from a durable JetStream consumer
// until ctx is done.
func (w *Worker) StartBookStateConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string) error {
	sub, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Warn(ctx, "nats fetch failed", zap.String("subject", subject), zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}

		for _, msg := range msgs {
			w.settle(ctx, msg, msg.Data)
		}
	}
}

type ackable interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
}

// settle acks stored and undecodable messages and naks the rest so JetStream
// redelivers them.
func (w *Worker) settle(ctx context.Context, msg ackable, data []byte) {
	err := w.handleBookState(ctx, data)
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		w.logger.Warn(ctx, "drop undecodable book state", zap.Error(err))
		_ = msg.Ack()
	default:
		w.logger.Error(ctx, "store book state failed", zap.Error(err))
		_ = msg.Nak()
	}
}
