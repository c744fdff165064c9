// Package recorder collects what a simulation run produces: trades, periodic
// book snapshots and the market maker's quotes.
package recorder

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/joripage/lobsim/pkg/logging"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BookState is one row of the book log. BestAsk is +Inf and BestBid 0 when that
// side is empty.
type BookState struct {
	Time      float64
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Inventory float64
}

// QuoteState is one row of the quote log.
type QuoteState struct {
	Time        float64
	Bid         float64
	Ask         float64
	Reservation float64
}

type Recorder interface {
	// RecordTrades is called with the trades of one matched order, at simulated time at.
	RecordTrades(ctx context.Context, at float64, trades []orderbook.Trade) error
	RecordBook(ctx context.Context, state BookState) error
	RecordQuote(ctx context.Context, quote QuoteState) error
	Close(ctx context.Context) error
}

type multi []Recorder

// Multi fans every call out to all recorders and joins their errors.
func Multi(recorders ...Recorder) Recorder {
	return multi(recorders)
}

func (m multi) RecordTrades(ctx context.Context, at float64, trades []orderbook.Trade) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordTrades(ctx, at, trades))
	}
	return errors.Join(errs...)
}

func (m multi) RecordBook(ctx context.Context, state BookState) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordBook(ctx, state))
	}
	return errors.Join(errs...)
}

func (m multi) RecordQuote(ctx context.Context, quote QuoteState) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordQuote(ctx, quote))
	}
	return errors.Join(errs...)
}

func (m multi) Close(ctx context.Context) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close(ctx))
	}
	return errors.Join(errs...)
}

type bestEffort struct {
	name string
	next Recorder
}

// BestEffort logs and swallows the errors of next. Network sinks are wrapped in
// it so a broker outage does not stop a run.
func BestEffort(name string, next Recorder) Recorder {
	return &bestEffort{name: name, next: next}
}

func (b *bestEffort) warn(ctx context.Context, op string, err error) {
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "recorder failed",
			zap.String("recorder", b.name),
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

func (b *bestEffort) RecordTrades(ctx context.Context, at float64, trades []orderbook.Trade) error {
	b.warn(ctx, "trades", b.next.RecordTrades(ctx, at, trades))
	return nil
}

func (b *bestEffort) RecordBook(ctx context.Context, state BookState) error {
	b.warn(ctx, "book", b.next.RecordBook(ctx, state))
	return nil
}

func (b *bestEffort) RecordQuote(ctx context.Context, quote QuoteState) error {
	b.warn(ctx, "quote", b.next.RecordQuote(ctx, quote))
	return nil
}

func (b *bestEffort) Close(ctx context.Context) error {
	b.warn(ctx, "close", b.next.Close(ctx))
	return nil
}

// TradeRow is a trade together with the simulated time it was recorded at.
type TradeRow struct {
	At    float64
	Trade orderbook.Trade
}

// Memory keeps everything in slices. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	trades []TradeRow
	books  []BookState
	quotes []QuoteState
	closed bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordTrades(_ context.Context, at float64, trades []orderbook.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tr := range trades {
		m.trades = append(m.trades, TradeRow{At: at, Trade: tr})
	}
	return nil
}

func (m *Memory) RecordBook(_ context.Context, state BookState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = append(m.books, state)
	return nil
}

func (m *Memory) RecordQuote(_ context.Context, quote QuoteState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes = append(m.quotes, quote)
	return nil
}

func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Trades() []TradeRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeRow(nil), m.trades...)
}

func (m *Memory) Books() []BookState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BookState(nil), m.books...)
}

func (m *Memory) Quotes() []QuoteState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]QuoteState(nil), m.quotes...)
}

func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// formatNumber renders v in plain decimal notation. decimal cannot hold
// infinities, which show up for an empty ask side.
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return decimal.NewFromFloat(v).String()
}
