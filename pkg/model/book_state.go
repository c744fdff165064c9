package model

import (
	"math"
	"time"
)

// BookState is a top-of-book snapshot plus the market maker's inventory.
// Empty sides are stored as NULL: BestBid nil for no bids, BestAsk nil for no asks.
type BookState struct {
	ID        uint64    `gorm:"primaryKey" json:"-"`
	RunID     string    `json:"run_id"`
	SimTime   float64   `json:"sim_time"`
	BestBid   *float64  `json:"best_bid"`
	BestAsk   *float64  `json:"best_ask"`
	MidPrice  *float64  `json:"mid_price"`
	Inventory float64   `json:"inventory"`
	CreatedAt time.Time `json:"-"`
}

func (BookState) TableName() string {
	return "book_states"
}

// NewBookState converts raw book readings, where 0 and +Inf mean "empty side".
func NewBookState(runID string, simTime, bestBid, bestAsk, mid, inventory float64) *BookState {
	return &BookState{
		RunID:     runID,
		SimTime:   simTime,
		BestBid:   price(bestBid),
		BestAsk:   price(bestAsk),
		MidPrice:  price(mid),
		Inventory: inventory,
	}
}

func price(v float64) *float64 {
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
