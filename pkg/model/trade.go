package model

import (
	"time"

	"github.com/joripage/lobsim/pkg/orderbook"
)

// Trade is one executed match as stored and shipped to the sinks.
type Trade struct {
	ID                uint64    `gorm:"primaryKey" json:"-"`
	RunID             string    `json:"run_id"`
	SimTime           float64   `json:"sim_time"`
	Price             float64   `json:"price"`
	Qty               float64   `json:"qty"`
	Side              string    `json:"side"`
	RestingOrderID    uint64    `json:"resting_order_id"`
	AggressiveOrderID uint64    `json:"aggressive_order_id"`
	CreatedAt         time.Time `json:"-"`
}

func (Trade) TableName() string {
	return "trades"
}

// NewTrade stamps an engine trade with the run and the simulated time it happened at.
func NewTrade(runID string, simTime float64, tr orderbook.Trade) *Trade {
	return &Trade{
		RunID:             runID,
		SimTime:           simTime,
		Price:             tr.Price,
		Qty:               tr.Qty,
		Side:              SideLabel(tr.AggressiveSide),
		RestingOrderID:    tr.RestingOrderID,
		AggressiveOrderID: tr.AggressiveOrderID,
	}
}

// SideLabel is the aggressor side as written to trade logs.
func SideLabel(s orderbook.Side) string {
	if s == orderbook.BUY {
		return "Buy"
	}
	return "Sell"
}
