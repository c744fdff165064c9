package orderbook

import "errors"

var (
	ErrDuplicateOrder     = errors.New("duplicate order id")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInvalidOrderPrice  = errors.New("invalid order price")
	ErrInvalidOrderQty    = errors.New("invalid order quantity")
	ErrInvariantViolation = errors.New("order book invariant violation")
)
