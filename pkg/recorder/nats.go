package recorder

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/joripage/lobsim/pkg/model"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/nats-io/nats.go"
)

type NatsConfig struct {
	URL          string `yaml:"url"`
	Stream       string `yaml:"stream"`
	TradeSubject string `yaml:"trade_subject"`
	BookSubject  string `yaml:"book_subject"`
	Durable      string `yaml:"durable"`
}

func (c NatsConfig) subjects() []string {
	var out []string
	for _, s := range []string{c.TradeSubject, c.BookSubject} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnsureStream creates the JetStream stream for the configured subjects if it
// does not exist yet.
func EnsureStream(js nats.JetStreamContext, cfg NatsConfig) error {
	if cfg.Stream == "" {
		return errors.New("nats stream name is empty")
	}
	if _, err := js.StreamInfo(cfg.Stream); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: cfg.subjects(),
	})
	return err
}

type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NatsRecorder publishes trades and book states to JetStream subjects.
type NatsRecorder struct {
	js    jetStreamPublisher
	cfg   NatsConfig
	runID string
}

func NewNatsRecorder(js nats.JetStreamContext, cfg NatsConfig, runID string) (*NatsRecorder, error) {
	if err := EnsureStream(js, cfg); err != nil {
		return nil, err
	}
	return newNatsRecorder(js, cfg, runID), nil
}

func newNatsRecorder(js jetStreamPublisher, cfg NatsConfig, runID string) *NatsRecorder {
	return &NatsRecorder{js: js, cfg: cfg, runID: runID}
}

func (r *NatsRecorder) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.js.Publish(subject, data, nats.Context(ctx))
	return err
}

func (r *NatsRecorder) RecordTrades(ctx context.Context, at float64, trades []orderbook.Trade) error {
	if r.cfg.TradeSubject == "" {
		return nil
	}
	for _, tr := range trades {
		if err := r.publish(ctx, r.cfg.TradeSubject, model.NewTrade(r.runID, at, tr)); err != nil {
			return err
		}
	}
	return nil
}

func (r *NatsRecorder) RecordBook(ctx context.Context, s BookState) error {
	if r.cfg.BookSubject == "" {
		return nil
	}
	return r.publish(ctx, r.cfg.BookSubject, model.NewBookState(r.runID, s.Time, s.BestBid, s.BestAsk, s.MidPrice, s.Inventory))
}

func (r *NatsRecorder) RecordQuote(context.Context, QuoteState) error {
	return nil
}

// Close leaves the connection alone; it belongs to the caller.
func (r *NatsRecorder) Close(context.Context) error {
	return nil
}
