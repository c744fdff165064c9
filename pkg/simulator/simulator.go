// Package simulator drives a latency-delayed order book: background noise flow
// and a quoting market maker submit through the latency scheduler, and released
// actions are applied to the book in release order.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/joripage/lobsim/pkg/latency"
	"github.com/joripage/lobsim/pkg/logging"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/joripage/lobsim/pkg/recorder"
	"github.com/joripage/lobsim/pkg/strategy"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid simulation config")

type Config struct {
	// Duration and Step are in simulated seconds.
	Duration        float64 `yaml:"duration"`
	Step            float64 `yaml:"step"`
	QuoteSize       float64 `yaml:"quote_size"`
	BookLogInterval float64 `yaml:"book_log_interval"`
	// CheckInvariants runs the book's structural checks after every step.
	CheckInvariants bool `yaml:"check_invariants"`
}

func DefaultConfig() Config {
	return Config{
		Duration:        600,
		Step:            0.05,
		QuoteSize:       1,
		BookLogInterval: 10,
	}
}

func (c Config) Validate() error {
	switch {
	case !(c.Duration >= 0) || math.IsInf(c.Duration, 0):
		return fmt.Errorf("%w: duration %v", ErrInvalidConfig, c.Duration)
	case !(c.Step > 0) || math.IsInf(c.Step, 0):
		return fmt.Errorf("%w: step %v", ErrInvalidConfig, c.Step)
	case !finite(c.QuoteSize) || c.QuoteSize <= 0:
		return fmt.Errorf("%w: quote_size %v", ErrInvalidConfig, c.QuoteSize)
	case !finite(c.BookLogInterval) || c.BookLogInterval < 0:
		return fmt.Errorf("%w: book_log_interval %v", ErrInvalidConfig, c.BookLogInterval)
	}
	return nil
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	Steps            int
	OrdersSubmitted  int
	CancelsSubmitted int
	Rejected         int
	Trades           int
	Volume           float64
	Inventory        float64
	BestBid          float64
	BestAsk          float64
	MidPrice         float64
	RestingOrders    int
	PendingEvents    int
}

type Option func(*Simulator)

// WithStrategy enables the market maker. Without it only noise flow is simulated.
func WithStrategy(s strategy.QuoteStrategy) Option {
	return func(sim *Simulator) {
		sim.strategy = s
	}
}

func WithNoise(g *NoiseGenerator) Option {
	return func(sim *Simulator) {
		sim.noise = g
	}
}

func WithRecorder(r recorder.Recorder) Option {
	return func(sim *Simulator) {
		sim.rec = r
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(sim *Simulator) {
		sim.logger = l
	}
}

// makerOrder is the simulator's view of one market maker order between
// submission and its removal from the book.
type makerOrder struct {
	side    orderbook.Side
	arrived bool
	// a cancel reached the book before the order did
	cancelMissed bool
}

// Simulator is single threaded: Run must not be called concurrently and the
// book, engine and scheduler must not be touched while it runs.
type Simulator struct {
	cfg      Config
	book     *orderbook.OrderBook
	engine   *orderbook.MatchingEngine
	sched    *latency.Scheduler
	strategy strategy.QuoteStrategy
	noise    *NoiseGenerator
	rec      recorder.Recorder
	logger   *logging.Logger

	nextOrderID uint64
	nextBookLog float64
	mmBidID     uint64
	mmAskID     uint64
	mmOrders    map[uint64]*makerOrder
	summary     Summary
}

func New(cfg Config, engine *orderbook.MatchingEngine, sched *latency.Scheduler, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || sched == nil {
		return nil, fmt.Errorf("%w: engine and scheduler are required", ErrInvalidConfig)
	}
	sim := &Simulator{
		cfg:         cfg,
		book:        engine.Book(),
		engine:      engine,
		sched:       sched,
		rec:         recorder.NewMemory(),
		logger:      logging.NewNopLogger(),
		nextOrderID: 1,
		mmOrders:    make(map[uint64]*makerOrder),
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim, nil
}

func (s *Simulator) Book() *orderbook.OrderBook {
	return s.book
}

// Inventory is the market maker's signed position: long after bid fills, short
// after ask fills.
func (s *Simulator) Inventory() float64 {
	return s.summary.Inventory
}

// Run advances simulated time from 0 in fixed steps while t < Duration. It stops
// early when ctx is done and still returns the summary so far.
func (s *Simulator) Run(ctx context.Context) (Summary, error) {
	s.logger.Info(ctx, "simulation started",
		zap.Float64("duration", s.cfg.Duration),
		zap.Float64("step", s.cfg.Step),
		zap.Bool("market_maker", s.strategy != nil),
		zap.Bool("noise", s.noise != nil),
	)

	for i := 0; ; i++ {
		t := float64(i) * s.cfg.Step
		if t >= s.cfg.Duration {
			break
		}
		if err := ctx.Err(); err != nil {
			return s.finish(), err
		}
		if err := s.step(ctx, t); err != nil {
			return s.finish(), fmt.Errorf("step at t=%v: %w", t, err)
		}
		s.summary.Steps++
	}

	sum := s.finish()
	s.logger.Info(ctx, "simulation finished",
		zap.Int("steps", sum.Steps),
		zap.Int("orders", sum.OrdersSubmitted),
		zap.Int("cancels", sum.CancelsSubmitted),
		zap.Int("rejected", sum.Rejected),
		zap.Int("trades", sum.Trades),
		zap.Float64("volume", sum.Volume),
		zap.Float64("inventory", sum.Inventory),
		zap.Int("resting_orders", sum.RestingOrders),
	)
	return sum, nil
}

func (s *Simulator) finish() Summary {
	sum := s.summary
	sum.BestBid = s.book.BestBid()
	sum.BestAsk = s.book.BestAsk()
	sum.MidPrice = s.book.MidPrice()
	sum.RestingOrders = s.book.Len()
	sum.PendingEvents = s.sched.Len()
	return sum
}

func (s *Simulator) step(ctx context.Context, t float64) error {
	if err := s.applyReleased(ctx, t); err != nil {
		return err
	}

	if s.noise != nil {
		for _, o := range s.noise.Generate(t) {
			s.submitOrder(ctx, o, t)
		}
	}

	if s.strategy != nil {
		if err := s.requote(ctx, t); err != nil {
			return err
		}
	}

	if t >= s.nextBookLog {
		if err := s.rec.RecordBook(ctx, recorder.BookState{
			Time:      t,
			BestBid:   s.book.BestBid(),
			BestAsk:   s.book.BestAsk(),
			MidPrice:  s.book.MidPrice(),
			Inventory: s.summary.Inventory,
		}); err != nil {
			return err
		}
		s.nextBookLog += s.cfg.BookLogInterval
		if s.nextBookLog <= t {
			s.nextBookLog = t + s.cfg.BookLogInterval
		}
	}

	if s.cfg.CheckInvariants {
		return s.book.CheckInvariants()
	}
	return nil
}

// applyReleased hands every action whose release time has passed to the book,
// in release order.
func (s *Simulator) applyReleased(ctx context.Context, t float64) error {
	for _, ev := range s.sched.DrainReady(t) {
		switch ev.Kind {
		case latency.EventCancel:
			s.applyCancel(ctx, ev)
		case latency.EventNewOrder:
			if err := s.applyOrder(ctx, ev, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Simulator) applyCancel(ctx context.Context, ev latency.Event) {
	if s.book.CancelOrder(ev.CancelID) {
		delete(s.mmOrders, ev.CancelID)
		return
	}
	mo, ok := s.mmOrders[ev.CancelID]
	if !ok {
		return
	}
	if mo.arrived {
		delete(s.mmOrders, ev.CancelID)
		return
	}
	mo.cancelMissed = true
	s.logger.Debug(ctx, "cancel overtook its order",
		zap.Uint64("order_id", ev.CancelID),
		zap.Float64("release_time", ev.ReleaseTime),
	)
}

func (s *Simulator) applyOrder(ctx context.Context, ev latency.Event, t float64) error {
	order := ev.Order
	trades, err := s.engine.MatchOrder(&order)
	if errors.Is(err, orderbook.ErrDuplicateOrder) {
		s.summary.Rejected++
		s.logger.Warn(ctx, "order rejected", zap.Uint64("order_id", order.ID), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	if len(trades) > 0 {
		s.onTrades(trades)
		if err := s.rec.RecordTrades(ctx, t, trades); err != nil {
			return err
		}
	}

	mo, ok := s.mmOrders[order.ID]
	if !ok {
		return nil
	}
	mo.arrived = true
	if !s.book.Contains(order.ID) {
		delete(s.mmOrders, order.ID)
		return nil
	}
	if mo.cancelMissed {
		// the order rests now, so the same cancel can find it
		mo.cancelMissed = false
		s.submitCancel(order.ID, t)
	}
	return nil
}

func (s *Simulator) onTrades(trades []orderbook.Trade) {
	for _, tr := range trades {
		s.summary.Trades++
		s.summary.Volume += tr.Qty

		if mo, ok := s.mmOrders[tr.RestingOrderID]; ok {
			s.fill(mo.side, tr.Qty)
			if !s.book.Contains(tr.RestingOrderID) {
				delete(s.mmOrders, tr.RestingOrderID)
			}
		}
		if mo, ok := s.mmOrders[tr.AggressiveOrderID]; ok {
			s.fill(mo.side, tr.Qty)
		}
	}
}

func (s *Simulator) fill(side orderbook.Side, qty float64) {
	if side == orderbook.BUY {
		s.summary.Inventory += qty
	} else {
		s.summary.Inventory -= qty
	}
}

// requote replaces both maker quotes every step: cancel the previous pair, then
// submit the strategy's new targets.
func (s *Simulator) requote(ctx context.Context, t float64) error {
	q := s.strategy.Quotes(s.book, s.summary.Inventory, t)

	if s.mmBidID != 0 {
		s.submitCancel(s.mmBidID, t)
		s.mmBidID = 0
	}
	if s.mmAskID != 0 {
		s.submitCancel(s.mmAskID, t)
		s.mmAskID = 0
	}

	if q.Bid > 0 {
		s.mmBidID = s.submitMakerOrder(ctx, orderbook.BUY, q.Bid, t)
	}
	if q.Ask > 0 {
		s.mmAskID = s.submitMakerOrder(ctx, orderbook.SELL, q.Ask, t)
	}

	return s.rec.RecordQuote(ctx, recorder.QuoteState{
		Time:        t,
		Bid:         q.Bid,
		Ask:         q.Ask,
		Reservation: q.Reservation,
	})
}

func (s *Simulator) submitMakerOrder(ctx context.Context, side orderbook.Side, price, t float64) uint64 {
	id := s.submitOrder(ctx, orderbook.Order{
		Side:  side,
		Type:  orderbook.LIMIT,
		Price: price,
		Qty:   s.cfg.QuoteSize,
	}, t)
	if id != 0 {
		s.mmOrders[id] = &makerOrder{side: side}
	}
	return id
}

// submitOrder validates o, stamps it with a fresh id and the
// submission time in milliseconds, and hands it to the scheduler. It returns 0
// for a rejected order.
func (s *Simulator) submitOrder(ctx context.Context, o orderbook.Order, t float64) uint64 {
	o.ID = s.nextOrderID
	o.Timestamp = uint64(math.Round(t * 1000))
	if err := o.Validate(); err != nil {
		s.summary.Rejected++
		s.logger.Warn(ctx, "order rejected at submission",
			zap.Uint64("order_id", o.ID),
			zap.String("side", string(o.Side)),
			zap.Float64("price", o.Price),
			zap.Float64("qty", o.Qty),
			zap.Error(err),
		)
		return 0
	}
	s.nextOrderID++
	s.summary.OrdersSubmitted++
	s.sched.SubmitOrder(o, t)
	return o.ID
}

func (s *Simulator) submitCancel(id uint64, t float64) {
	s.summary.CancelsSubmitted++
	s.sched.SubmitCancellation(id, t)
}
