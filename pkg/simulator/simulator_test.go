package simulator

import (
	"context"
	"math"
	"testing"

	"github.com/joripage/lobsim/pkg/latency"
	"github.com/joripage/lobsim/pkg/orderbook"
	"github.com/joripage/lobsim/pkg/recorder"
	"github.com/joripage/lobsim/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedQuotes struct {
	q strategy.Quote
}

func (f fixedQuotes) Name() string { return "fixed" }

func (f fixedQuotes) Quotes(strategy.BookView, float64, float64) strategy.Quote { return f.q }

// newTestSimulator uses zero latency, so an action submitted in one step is
// applied at the start of the next.
func newTestSimulator(t *testing.T, cfg Config, opts ...Option) (*Simulator, *recorder.Memory) {
	t.Helper()
	book := orderbook.NewOrderBook()
	sched, err := latency.NewScheduler(latency.Config{})
	require.NoError(t, err)

	mem := recorder.NewMemory()
	sim, err := New(cfg, orderbook.NewMatchingEngine(book), sched, append([]Option{WithRecorder(mem)}, opts...)...)
	require.NoError(t, err)
	return sim, mem
}

func seedBook(t *testing.T, book *orderbook.OrderBook) {
	t.Helper()
	require.NoError(t, book.AddOrder(orderbook.Order{ID: 1000, Side: orderbook.SELL, Type: orderbook.LIMIT, Price: 101, Qty: 5}))
	require.NoError(t, book.AddOrder(orderbook.Order{ID: 1001, Side: orderbook.BUY, Type: orderbook.LIMIT, Price: 99, Qty: 5}))
}

func TestRun_MakerCrossesAsAggressor(t *testing.T) {
	cfg := Config{Duration: 0.1, Step: 0.05, QuoteSize: 1, BookLogInterval: 10}
	sim, mem := newTestSimulator(t, cfg, WithStrategy(fixedQuotes{q: strategy.Quote{Bid: 101, Ask: 102, Reservation: 101.5}}))
	seedBook(t, sim.Book())

	sum, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Steps)
	assert.Equal(t, 4, sum.OrdersSubmitted)
	assert.Equal(t, 2, sum.CancelsSubmitted)
	assert.Equal(t, 1, sum.Trades)
	assert.Equal(t, 1.0, sum.Volume)
	assert.Equal(t, 1.0, sum.Inventory)
	assert.Equal(t, 3, sum.RestingOrders)
	assert.Equal(t, 4, sum.PendingEvents)
	assert.Equal(t, 101.0, sum.BestAsk)

	trades := mem.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 0.05, trades[0].At)
	assert.Equal(t, uint64(1000), trades[0].Trade.RestingOrderID)
	assert.Equal(t, uint64(1), trades[0].Trade.AggressiveOrderID)
	assert.Equal(t, uint64(0), trades[0].Trade.Timestamp)

	assert.Len(t, mem.Quotes(), 2)
	assert.Equal(t, 101.5, mem.Quotes()[1].Reservation)
	require.Len(t, mem.Books(), 1)
	assert.Equal(t, 100.0, mem.Books()[0].MidPrice)
}

func TestStep_RestingMakerFillMovesInventory(t *testing.T) {
	cfg := Config{Duration: 1, Step: 0.05, QuoteSize: 1, BookLogInterval: 10}
	sim, _ := newTestSimulator(t, cfg, WithStrategy(fixedQuotes{q: strategy.Quote{Bid: 99.5}}))
	seedBook(t, sim.Book())
	ctx := context.Background()

	require.NoError(t, sim.step(ctx, 0))
	sellID := sim.submitOrder(ctx, orderbook.Order{Side: orderbook.SELL, Type: orderbook.MARKET, Qty: 3}, 0.01)
	require.NotZero(t, sellID)

	require.NoError(t, sim.step(ctx, 0.05))

	assert.Equal(t, 1.0, sim.Inventory())
	assert.Equal(t, 2, sim.summary.Trades)
	_, live := sim.mmOrders[1]
	assert.False(t, live, "fully filled quote is no longer tracked")

	rest, ok := sim.Book().Order(1001)
	require.True(t, ok)
	assert.Equal(t, 3.0, rest.Qty)
}

func TestStep_AskFillShortsInventory(t *testing.T) {
	cfg := Config{Duration: 1, Step: 0.05, QuoteSize: 2, BookLogInterval: 10}
	sim, _ := newTestSimulator(t, cfg, WithStrategy(fixedQuotes{q: strategy.Quote{Ask: 100.5}}))
	seedBook(t, sim.Book())
	ctx := context.Background()

	require.NoError(t, sim.step(ctx, 0))
	sim.submitOrder(ctx, orderbook.Order{Side: orderbook.BUY, Type: orderbook.LIMIT, Price: 100.5, Qty: 1}, 0.01)
	require.NoError(t, sim.step(ctx, 0.05))

	assert.Equal(t, -1.0, sim.Inventory())
	_, live := sim.mmOrders[1]
	assert.True(t, live, "partially filled quote is still tracked until its cancel lands")

	require.NoError(t, sim.step(ctx, 0.1))
	assert.False(t, sim.Book().Contains(1))
}

func TestStep_CancelOvertakingOrderIsRetried(t *testing.T) {
	sim, _ := newTestSimulator(t, Config{Duration: 1, Step: 0.05, QuoteSize: 1})
	ctx := context.Background()

	sim.mmOrders[5] = &makerOrder{side: orderbook.BUY}
	sim.sched.SubmitCancellation(5, 0)
	sim.sched.SubmitOrder(orderbook.Order{ID: 5, Side: orderbook.BUY, Type: orderbook.LIMIT, Price: 99.5, Qty: 1}, 0.01)

	require.NoError(t, sim.step(ctx, 0.05))
	assert.True(t, sim.Book().Contains(5))
	assert.Equal(t, 1, sim.sched.Len())

	require.NoError(t, sim.step(ctx, 0.1))
	assert.False(t, sim.Book().Contains(5))
	assert.Empty(t, sim.mmOrders)
}

func TestSubmitOrder_RejectsInvalid(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	id := sim.submitOrder(context.Background(), orderbook.Order{Side: orderbook.BUY, Type: orderbook.LIMIT, Price: -1, Qty: 1}, 0)
	assert.Zero(t, id)
	assert.Equal(t, 1, sim.summary.Rejected)
	assert.Zero(t, sim.sched.Len())

	id = sim.submitOrder(context.Background(), orderbook.Order{Side: orderbook.BUY, Type: orderbook.LIMIT, Price: 99, Qty: 1}, 0)
	assert.Equal(t, uint64(1), id, "rejections do not burn ids")
}

func TestStep_DuplicateIDIsCountedNotFatal(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())
	seedBook(t, sim.Book())

	sim.sched.SubmitOrder(orderbook.Order{ID: 1000, Side: orderbook.SELL, Type: orderbook.LIMIT, Price: 102, Qty: 1}, 0)
	require.NoError(t, sim.step(context.Background(), 0))
	assert.Equal(t, 1, sim.summary.Rejected)
	assert.Equal(t, 2, sim.Book().Len())
}

func newFullSimulator(t *testing.T, duration float64) (*Simulator, *recorder.Memory) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Duration = duration
	cfg.CheckInvariants = true

	book := orderbook.NewOrderBook()
	sched, err := latency.NewScheduler(latency.Config{Mean: 0.05, StdDev: 0.01, Seed: 42})
	require.NoError(t, err)
	as, err := strategy.NewAvellanedaStoikov(0.1, 2.0, 1.5, duration)
	require.NoError(t, err)
	noiseCfg := DefaultNoiseConfig()
	noiseCfg.ArrivalRate = 5
	noise, err := NewNoiseGenerator(noiseCfg)
	require.NoError(t, err)

	mem := recorder.NewMemory()
	sim, err := New(cfg, orderbook.NewMatchingEngine(book), sched,
		WithStrategy(as), WithNoise(noise), WithRecorder(mem))
	require.NoError(t, err)
	return sim, mem
}

func TestRun_FullSessionIsDeterministic(t *testing.T) {
	simA, memA := newFullSimulator(t, 30)
	sumA, err := simA.Run(context.Background())
	require.NoError(t, err)

	simB, memB := newFullSimulator(t, 30)
	sumB, err := simB.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sumA, sumB)
	assert.Equal(t, memA.Trades(), memB.Trades())

	assert.Equal(t, 600, sumA.Steps)
	assert.Len(t, memA.Quotes(), 600)
	assert.Len(t, memA.Books(), 3)
	assert.Len(t, memA.Trades(), sumA.Trades)
	assert.Greater(t, sumA.Trades, 0)

	volume := 0.0
	for _, tr := range memA.Trades() {
		volume += tr.Trade.Qty
	}
	assert.InDelta(t, sumA.Volume, volume, 1e-9)
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	sim, _ := newFullSimulator(t, 30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Steps)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Step = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.QuoteSize = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.BookLogInterval = math.NaN()
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	_, err := New(DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
