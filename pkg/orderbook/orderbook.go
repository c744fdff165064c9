// file: pkg/orderbook/orderbook.go

package orderbook

import (
	"fmt"
	"math"
)

// locator is where a resident order physically lives.
type locator struct {
	h     handle
	side  Side
	price float64
}

type bookSide struct {
	side   Side
	levels map[float64]*priceLevel
	prices *PriceHeap
}

func newBookSide(side Side) *bookSide {
	less := func(i, j float64) bool { return i < j } // Min-heap
	if side == BUY {
		less = func(i, j float64) bool { return i > j } // Max-heap
	}
	return &bookSide{
		side:   side,
		levels: make(map[float64]*priceLevel),
		prices: NewPriceHeap(less),
	}
}

func (s *bookSide) best() (*priceLevel, bool) {
	price, ok := s.prices.Peek()
	if !ok {
		return nil, false
	}
	return s.levels[price], true
}

func (s *bookSide) levelFor(price float64) *priceLevel {
	lvl, ok := s.levels[price]
	if !ok {
		lvl = newPriceLevel(price)
		s.levels[price] = lvl
		s.prices.Add(price)
	}
	return lvl
}

func (s *bookSide) dropLevel(price float64) {
	delete(s.levels, price)
	s.prices.Remove(price)
}

type Option func(*OrderBook)

// WithEpsilon overrides DefaultEpsilon for the book.
func WithEpsilon(eps float64) Option {
	return func(ob *OrderBook) {
		if eps >= 0 {
			ob.epsilon = eps
		}
	}
}

// OrderBook holds the resident orders of a single instrument. It is not safe for
// concurrent use: one owner serializes every mutation.
type OrderBook struct {
	bids    *bookSide
	asks    *bookSide
	orders  map[uint64]locator
	arena   arena
	epsilon float64
}

func NewOrderBook(opts ...Option) *OrderBook {
	ob := &OrderBook{
		bids:    newBookSide(BUY),
		asks:    newBookSide(SELL),
		orders:  make(map[uint64]locator),
		epsilon: DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(ob)
	}
	return ob
}

func (ob *OrderBook) Epsilon() float64 {
	return ob.epsilon
}

func (ob *OrderBook) sideOf(side Side) *bookSide {
	if side == BUY {
		return ob.bids
	}
	return ob.asks
}

// AddOrder rests an order at the back of its price level.
func (ob *OrderBook) AddOrder(order Order) error {
	if _, ok := ob.orders[order.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, order.ID)
	}
	if !(order.Qty > ob.epsilon) {
		return fmt.Errorf("%w: order %d qty %v", ErrInvalidOrderQty, order.ID, order.Qty)
	}
	if order.Side != BUY && order.Side != SELL {
		return fmt.Errorf("%w: order %d side %q", ErrInvalidOrder, order.ID, order.Side)
	}
	// NaN can never be found again as a map key; +Inf would read as an empty ask side.
	if math.IsNaN(order.Price) || math.IsInf(order.Price, 0) {
		return fmt.Errorf("%w: order %d price %v", ErrInvalidOrderPrice, order.ID, order.Price)
	}

	side := ob.sideOf(order.Side)
	h := ob.arena.alloc(order)
	side.levelFor(order.Price).pushBack(&ob.arena, h)
	ob.orders[order.ID] = locator{h: h, side: order.Side, price: order.Price}
	return nil
}

// CancelOrder removes a resident order. Unknown ids are ignored and report false.
func (ob *OrderBook) CancelOrder(orderID uint64) bool {
	loc, ok := ob.orders[orderID]
	if !ok {
		return false
	}
	ob.remove(orderID, loc)
	return true
}

// remove unlinks the order from its level and the locator together and drops the
// level once it is empty.
func (ob *OrderBook) remove(orderID uint64, loc locator) {
	side := ob.sideOf(loc.side)
	if lvl, ok := side.levels[loc.price]; ok {
		lvl.unlink(&ob.arena, loc.h)
		if lvl.empty() {
			side.dropLevel(loc.price)
		}
	}
	ob.arena.release(loc.h)
	delete(ob.orders, orderID)
}

// BestBid returns 0 when there are no bids.
func (ob *OrderBook) BestBid() float64 {
	price, ok := ob.bids.prices.Peek()
	if !ok {
		return 0
	}
	return price
}

// BestAsk returns +Inf when there are no asks.
func (ob *OrderBook) BestAsk() float64 {
	price, ok := ob.asks.prices.Peek()
	if !ok {
		return math.Inf(1)
	}
	return price
}

// MidPrice returns 0 for a one-sided or empty book.
func (ob *OrderBook) MidPrice() float64 {
	if ob.bids.prices.Len() == 0 || ob.asks.prices.Len() == 0 {
		return 0
	}
	return (ob.BestBid() + ob.BestAsk()) / 2
}

func (ob *OrderBook) Bids(depth int) []Level {
	return ob.depth(ob.bids, depth)
}

func (ob *OrderBook) Asks(depth int) []Level {
	return ob.depth(ob.asks, depth)
}

func (ob *OrderBook) depth(side *bookSide, depth int) []Level {
	if depth <= 0 {
		return nil
	}
	prices := side.prices.Sorted(depth)
	levels := make([]Level, 0, len(prices))
	for _, price := range prices {
		lvl := side.levels[price]
		levels = append(levels, Level{
			Price:  price,
			Qty:    lvl.totalQty(&ob.arena),
			Orders: lvl.count,
		})
	}
	return levels
}

// Order returns a copy of a resident order.
func (ob *OrderBook) Order(orderID uint64) (Order, bool) {
	loc, ok := ob.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return ob.arena.get(loc.h).order, true
}

func (ob *OrderBook) Contains(orderID uint64) bool {
	_, ok := ob.orders[orderID]
	return ok
}

// Len is the number of resident orders.
func (ob *OrderBook) Len() int {
	return len(ob.orders)
}

// Depth is the number of price levels per side.
func (ob *OrderBook) Depth() (bids, asks int) {
	return len(ob.bids.levels), len(ob.asks.levels)
}

// CheckInvariants walks every level and the locator and reports the first
// inconsistency found.
func (ob *OrderBook) CheckInvariants() error {
	seen := 0
	for _, side := range []*bookSide{ob.bids, ob.asks} {
		if side.prices.Len() != len(side.levels) {
			return fmt.Errorf("%w: %s heap has %d prices, %d levels", ErrInvariantViolation, side.side, side.prices.Len(), len(side.levels))
		}
		for price, lvl := range side.levels {
			if !side.prices.Contains(price) {
				return fmt.Errorf("%w: %s level %v missing from heap", ErrInvariantViolation, side.side, price)
			}
			if lvl.empty() {
				return fmt.Errorf("%w: %s level %v is empty", ErrInvariantViolation, side.side, price)
			}
			n := 0
			prev := nilHandle
			for h := lvl.head; h != nilHandle; h = ob.arena.get(h).next {
				s := ob.arena.get(h)
				if !s.inUse || s.prev != prev {
					return fmt.Errorf("%w: %s level %v has a broken link", ErrInvariantViolation, side.side, price)
				}
				loc, ok := ob.orders[s.order.ID]
				if !ok || loc.h != h || loc.side != side.side || loc.price != price {
					return fmt.Errorf("%w: order %d locator does not match level %s %v", ErrInvariantViolation, s.order.ID, side.side, price)
				}
				if s.order.Qty <= ob.epsilon {
					return fmt.Errorf("%w: order %d resident with qty %v", ErrInvariantViolation, s.order.ID, s.order.Qty)
				}
				prev = h
				n++
			}
			if lvl.tail != prev || lvl.count != n {
				return fmt.Errorf("%w: %s level %v count %d, walked %d", ErrInvariantViolation, side.side, price, lvl.count, n)
			}
			seen += n
		}
	}
	if seen != len(ob.orders) {
		return fmt.Errorf("%w: %d orders in levels, %d in locator", ErrInvariantViolation, seen, len(ob.orders))
	}
	return nil
}
