package orderbook

import "fmt"

// Trade is one match between a resting order and the aggressor. Price is always
// the resting order's price.
type Trade struct {
	RestingOrderID    uint64
	AggressiveOrderID uint64
	Price             float64
	Qty               float64
	Timestamp         uint64
	AggressiveSide    Side
}

// MatchingEngine applies price-time priority matching to one OrderBook. It holds
// no state of its own besides callbacks; the fully-filled threshold is the
// book's epsilon.
type MatchingEngine struct {
	book      *OrderBook
	callbacks []func([]Trade)
}

func NewMatchingEngine(book *OrderBook) *MatchingEngine {
	return &MatchingEngine{book: book}
}

func (e *MatchingEngine) Book() *OrderBook {
	return e.book
}

func (e *MatchingEngine) RegisterTradeCallback(fn func([]Trade)) {
	e.callbacks = append(e.callbacks, fn)
}

// MatchOrder matches the incoming order against the opposite side and mutates
// order.Qty to what is left unfilled. A LIMIT GTC remainder rests on the book;
// MARKET and IOC remainders are dropped. A FOK order that cannot fill completely
// is killed before any trade happens.
func (e *MatchingEngine) MatchOrder(order *Order) ([]Trade, error) {
	if e.book.Contains(order.ID) {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateOrder, order.ID)
	}

	if order.tif() == FOK && e.fillable(order) < order.Qty-e.book.epsilon {
		return nil, nil
	}

	counter := e.book.sideOf(order.Side.Opposite())
	var trades []Trade

	for order.Qty > e.book.epsilon {
		lvl, ok := counter.best()
		if !ok {
			break
		}
		if order.Type == LIMIT && !marketable(order, lvl.price) {
			break
		}
		trades = e.fillLevel(order, lvl, trades)
	}

	if order.Qty > e.book.epsilon && order.Type == LIMIT && order.tif() == GTC {
		if err := e.book.AddOrder(*order); err != nil {
			return trades, err
		}
	}

	if len(trades) > 0 {
		for _, cb := range e.callbacks {
			cb(trades)
		}
	}

	return trades, nil
}

// fillLevel consumes one price level front to back until either the level or
// the incoming order is exhausted.
func (e *MatchingEngine) fillLevel(order *Order, lvl *priceLevel, trades []Trade) []Trade {
	a := &e.book.arena
	for !lvl.empty() && order.Qty > e.book.epsilon {
		h := lvl.head
		resting := &a.get(h).order

		matchQty := min(order.Qty, resting.Qty)
		trades = append(trades, Trade{
			RestingOrderID:    resting.ID,
			AggressiveOrderID: order.ID,
			Price:             lvl.price,
			Qty:               matchQty,
			Timestamp:         order.Timestamp,
			AggressiveSide:    order.Side,
		})

		order.Qty -= matchQty
		resting.Qty -= matchQty

		if resting.Qty <= e.book.epsilon {
			// remove also drops the level once its last order is gone
			e.book.remove(resting.ID, e.book.orders[resting.ID])
		}
	}
	return trades
}

// fillable is the marketable quantity available to the order, capped at its size.
func (e *MatchingEngine) fillable(order *Order) float64 {
	counter := e.book.sideOf(order.Side.Opposite())
	total := 0.0
	for _, price := range counter.prices.Sorted(0) {
		if order.Type == LIMIT && !marketable(order, price) {
			break
		}
		total += counter.levels[price].totalQty(&e.book.arena)
		if total >= order.Qty {
			break
		}
	}
	return total
}

func marketable(order *Order, price float64) bool {
	if order.Side == BUY {
		return price <= order.Price
	}
	return price >= order.Price
}
