package orderbook

import (
	"fmt"
	"math"
)

// DefaultEpsilon is the quantity at or below which an order counts as fully filled.
// It absorbs the residue left by repeated float subtraction.
const DefaultEpsilon = 1e-9

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

type OrderType string

const (
	LIMIT  OrderType = "LIMIT"
	MARKET OrderType = "MARKET"
)

type TimeInForce string

const (
	GTC TimeInForce = "GTC" // default when empty
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

type Order struct {
	ID          uint64
	Timestamp   uint64
	Price       float64
	Qty         float64
	Side        Side
	Type        OrderType
	TimeInForce TimeInForce
}

// Validate checks an order at the submission boundary. The book and the matching
// engine do not call it.
func (o *Order) Validate() error {
	if o.Side != BUY && o.Side != SELL {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, o.Side)
	}
	if o.Type != LIMIT && o.Type != MARKET {
		return fmt.Errorf("%w: type %q", ErrInvalidOrder, o.Type)
	}
	switch o.TimeInForce {
	case "", GTC, IOC, FOK:
	default:
		return fmt.Errorf("%w: time in force %q", ErrInvalidOrder, o.TimeInForce)
	}
	if math.IsNaN(o.Qty) || math.IsInf(o.Qty, 0) || o.Qty <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidOrderQty, o.Qty)
	}
	if o.Type == LIMIT && (math.IsNaN(o.Price) || math.IsInf(o.Price, 0) || o.Price <= 0) {
		return fmt.Errorf("%w: %v", ErrInvalidOrderPrice, o.Price)
	}
	return nil
}

func (o *Order) tif() TimeInForce {
	if o.TimeInForce == "" {
		return GTC
	}
	return o.TimeInForce
}

// Level is one aggregated row of book depth.
type Level struct {
	Price  float64
	Qty    float64
	Orders int
}
