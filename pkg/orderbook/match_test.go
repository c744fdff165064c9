package orderbook

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchOrder_CrossingLimitRestsRemainder(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 101, Qty: 3}))

	buy := &Order{ID: 2, Timestamp: 7, Side: BUY, Type: LIMIT, Price: 102, Qty: 5}
	trades, err := e.MatchOrder(buy)
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, Trade{
		RestingOrderID:    1,
		AggressiveOrderID: 2,
		Price:             101,
		Qty:               3,
		Timestamp:         7,
		AggressiveSide:    BUY,
	}, trades[0])

	rest, ok := ob.Order(2)
	require.True(t, ok)
	assert.Equal(t, 2.0, rest.Qty)
	assert.Equal(t, 102.0, ob.BestBid())
	assert.True(t, math.IsInf(ob.BestAsk(), 1))
	require.NoError(t, ob.CheckInvariants())
}

func TestMatchOrder_MarketAcrossSameLevel(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 2}))
	require.NoError(t, ob.AddOrder(Order{ID: 2, Side: SELL, Type: LIMIT, Price: 100, Qty: 3}))

	trades, err := e.MatchOrder(&Order{ID: 3, Side: BUY, Type: MARKET, Qty: 4})
	require.NoError(t, err)

	require.Len(t, trades, 2)
	assert.Equal(t, uint64(1), trades[0].RestingOrderID)
	assert.Equal(t, 2.0, trades[0].Qty)
	assert.Equal(t, uint64(2), trades[1].RestingOrderID)
	assert.Equal(t, 2.0, trades[1].Qty)

	assert.False(t, ob.Contains(1))
	left, ok := ob.Order(2)
	require.True(t, ok)
	assert.Equal(t, 1.0, left.Qty)
	require.NoError(t, ob.CheckInvariants())
}

func TestMatchOrder_MarketDrainsSideAndDiscards(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: BUY, Type: LIMIT, Price: 99, Qty: 1}))
	require.NoError(t, ob.AddOrder(Order{ID: 2, Side: BUY, Type: LIMIT, Price: 98, Qty: 2}))

	sell := &Order{ID: 3, Side: SELL, Type: MARKET, Qty: 10}
	trades, err := e.MatchOrder(sell)
	require.NoError(t, err)

	require.Len(t, trades, 2)
	assert.Equal(t, 99.0, trades[0].Price)
	assert.Equal(t, 98.0, trades[1].Price)
	assert.Equal(t, 7.0, sell.Qty)
	assert.Zero(t, ob.Len(), "market remainder must never rest")
	assert.Equal(t, 0.0, ob.BestBid())
	assert.True(t, math.IsInf(ob.BestAsk(), 1))
}

func TestMatchOrder_MarketOnEmptyBook(t *testing.T) {
	ob, e := newTestEngine()

	trades, err := e.MatchOrder(&Order{ID: 1, Side: BUY, Type: MARKET, Qty: 5})
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Zero(t, ob.Len())
}

func TestMatchOrder_TradesAtRestingPrice(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: BUY, Type: LIMIT, Price: 105, Qty: 1}))

	trades, err := e.MatchOrder(&Order{ID: 2, Side: SELL, Type: LIMIT, Price: 90, Qty: 1})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 105.0, trades[0].Price)
	assert.Equal(t, SELL, trades[0].AggressiveSide)
}

func TestMatchOrder_LimitStopsAtNonMarketableLevel(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 1}))
	require.NoError(t, ob.AddOrder(Order{ID: 2, Side: SELL, Type: LIMIT, Price: 103, Qty: 1}))

	buy := &Order{ID: 3, Side: BUY, Type: LIMIT, Price: 101, Qty: 5}
	trades, err := e.MatchOrder(buy)
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, 100.0, trades[0].Price)
	assert.Equal(t, 101.0, ob.BestBid())
	assert.Equal(t, 103.0, ob.BestAsk())
	assert.Equal(t, []Level{{Price: 101, Qty: 4, Orders: 1}}, ob.Bids(5))
}

func TestMatchOrder_IOCDropsRemainder(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 5}))

	buy := &Order{ID: 2, Side: BUY, Type: LIMIT, Price: 101, Qty: 10, TimeInForce: IOC}
	trades, err := e.MatchOrder(buy)
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, 5.0, trades[0].Qty)
	assert.Equal(t, 5.0, buy.Qty)
	assert.Zero(t, ob.Len())
}

func TestMatchOrder_FOK(t *testing.T) {
	t.Run("rejects partial fill without touching the book", func(t *testing.T) {
		ob, e := newTestEngine()
		require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 5}))
		require.NoError(t, ob.AddOrder(Order{ID: 2, Side: SELL, Type: LIMIT, Price: 102, Qty: 5}))

		buy := &Order{ID: 3, Side: BUY, Type: LIMIT, Price: 101, Qty: 10, TimeInForce: FOK}
		trades, err := e.MatchOrder(buy)
		require.NoError(t, err)

		assert.Empty(t, trades)
		assert.Equal(t, 10.0, buy.Qty)
		assert.Equal(t, 2, ob.Len())
		assert.False(t, ob.Contains(3))
	})

	t.Run("fills completely across levels", func(t *testing.T) {
		ob, e := newTestEngine()
		require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 5}))
		require.NoError(t, ob.AddOrder(Order{ID: 2, Side: SELL, Type: LIMIT, Price: 101, Qty: 5}))

		trades, err := e.MatchOrder(&Order{ID: 3, Side: BUY, Type: MARKET, Qty: 8, TimeInForce: FOK})
		require.NoError(t, err)

		require.Len(t, trades, 2)
		left, ok := ob.Order(2)
		require.True(t, ok)
		assert.Equal(t, 2.0, left.Qty)
	})
}

func TestMatchOrder_EpsilonResidue(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 0.3}))

	// 0.1 + 0.2 leaves float residue against 0.3
	first := &Order{ID: 2, Side: BUY, Type: LIMIT, Price: 100, Qty: 0.1, TimeInForce: IOC}
	second := &Order{ID: 3, Side: BUY, Type: LIMIT, Price: 100, Qty: 0.2}
	_, err := e.MatchOrder(first)
	require.NoError(t, err)
	_, err = e.MatchOrder(second)
	require.NoError(t, err)

	assert.False(t, ob.Contains(1), "resting order within epsilon must be removed")
	assert.False(t, ob.Contains(3), "aggressor within epsilon must not rest")
	assert.Zero(t, ob.Len())
	require.NoError(t, ob.CheckInvariants())
}

func TestMatchOrder_FollowsBookEpsilon(t *testing.T) {
	t.Run("default book drops sub-epsilon resting residue", func(t *testing.T) {
		ob, e := newTestEngine()
		require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 1}))

		_, err := e.MatchOrder(&Order{ID: 2, Side: BUY, Type: MARKET, Qty: 1 - 1e-12})
		require.NoError(t, err)

		assert.False(t, ob.Contains(1))
		require.NoError(t, ob.CheckInvariants())
	})

	t.Run("coarse book epsilon", func(t *testing.T) {
		ob := NewOrderBook(WithEpsilon(1e-6))
		e := NewMatchingEngine(ob)
		require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 1}))

		_, err := e.MatchOrder(&Order{ID: 2, Side: BUY, Type: MARKET, Qty: 1 - 1e-7})
		require.NoError(t, err)
		assert.False(t, ob.Contains(1))

		small := &Order{ID: 3, Side: SELL, Type: LIMIT, Price: 101, Qty: 1e-5}
		trades, err := e.MatchOrder(small)
		require.NoError(t, err)
		assert.Empty(t, trades)
		assert.True(t, ob.Contains(3), "order above the book epsilon must rest")
		require.NoError(t, ob.CheckInvariants())
	})
}

func TestMatchOrder_SelfTradeAllowed(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: SELL, Type: LIMIT, Price: 100, Qty: 1}))

	trades, err := e.MatchOrder(&Order{ID: 2, Side: BUY, Type: LIMIT, Price: 100, Qty: 1})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.Zero(t, ob.Len())
}

func TestMatchOrder_DuplicateIDRejectedBeforeMatching(t *testing.T) {
	ob, e := newTestEngine()
	require.NoError(t, ob.AddOrder(Order{ID: 1, Side: BUY, Type: LIMIT, Price: 99, Qty: 1}))
	require.NoError(t, ob.AddOrder(Order{ID: 2, Side: SELL, Type: LIMIT, Price: 100, Qty: 1}))

	trades, err := e.MatchOrder(&Order{ID: 1, Side: BUY, Type: LIMIT, Price: 100, Qty: 1})
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Empty(t, trades)
	assert.True(t, ob.Contains(2))
	require.NoError(t, ob.CheckInvariants())
}

// TestRandomSequenceKeepsInvariants drives a seeded mix of limit, market and cancel
// actions and checks the book after every call.
func TestRandomSequenceKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ob, e := newTestEngine()
	var ids []uint64
	nextID := uint64(1)

	for i := 0; i < 5_000; i++ {
		switch r := rng.Intn(10); {
		case r < 6:
			side := BUY
			if rng.Intn(2) == 0 {
				side = SELL
			}
			o := &Order{
				ID:    nextID,
				Side:  side,
				Type:  LIMIT,
				Price: 95 + float64(rng.Intn(11)),
				Qty:   float64(1+rng.Intn(9)) / 3,
			}
			nextID++
			before := o.Qty
			trades, err := e.MatchOrder(o)
			require.NoError(t, err)
			filled := 0.0
			for _, tr := range trades {
				filled += tr.Qty
				if side == BUY {
					assert.LessOrEqual(t, tr.Price, o.Price)
				} else {
					assert.GreaterOrEqual(t, tr.Price, o.Price)
				}
			}
			assert.InDelta(t, before-filled, o.Qty, 1e-9)
			if ob.Contains(o.ID) {
				ids = append(ids, o.ID)
			}
		case r < 7:
			side := BUY
			if rng.Intn(2) == 0 {
				side = SELL
			}
			_, err := e.MatchOrder(&Order{ID: nextID, Side: side, Type: MARKET, Qty: float64(1 + rng.Intn(5))})
			require.NoError(t, err)
			nextID++
		default:
			if len(ids) == 0 {
				continue
			}
			ob.CancelOrder(ids[rng.Intn(len(ids))])
		}

		require.NoError(t, ob.CheckInvariants(), "step %d", i)
		if bb, ba := ob.BestBid(), ob.BestAsk(); ob.MidPrice() != 0 {
			require.Less(t, bb, ba, "book crossed at step %d", i)
		}
		for _, lvl := range ob.Bids(0x7fffffff) {
			require.LessOrEqual(t, lvl.Price, ob.BestBid())
		}
		for _, lvl := range ob.Asks(0x7fffffff) {
			require.GreaterOrEqual(t, lvl.Price, ob.BestAsk())
		}
	}
}
