package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/joripage/lobsim/pkg/latency"
	"github.com/joripage/lobsim/pkg/orderbook"
)

const (
	minPrice = 100.0
	maxPrice = 200.0
	minQty   = 1
	maxQty   = 100
)

func randomOrder(rng *rand.Rand, id uint64) orderbook.Order {
	side := orderbook.BUY
	if rng.Intn(2) == 0 {
		side = orderbook.SELL
	}
	price := minPrice + rng.Float64()*(maxPrice-minPrice)

	o := orderbook.Order{
		ID:    id,
		Side:  side,
		Price: float64(int(price*100)) / 100, // 2 decimals
		Qty:   float64(rng.Intn(maxQty-minQty+1) + minQty),
		Type:  orderbook.LIMIT,
	}
	if rng.Intn(10) == 0 {
		o.Type = orderbook.MARKET
	}
	return o
}

func main() {
	var numOrders int
	var seed int64
	var withLatency bool
	flag.IntVar(&numOrders, "orders", 1_000_000, "Number of random orders")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	flag.BoolVar(&withLatency, "latency", false, "Route orders through the latency scheduler")
	flag.Parse()

	rng := rand.New(rand.NewSource(seed))
	book := orderbook.NewOrderBook()
	engine := orderbook.NewMatchingEngine(book)

	totalMatched := 0
	totalQty := 0.0
	engine.RegisterTradeCallback(func(trades []orderbook.Trade) {
		for _, tr := range trades {
			totalMatched++
			totalQty += tr.Qty
			if totalMatched <= 5 {
				fmt.Printf("match: resting[%d] <= aggressor[%d] %s @ %.2f qty %.0f\n",
					tr.RestingOrderID, tr.AggressiveOrderID, tr.AggressiveSide, tr.Price, tr.Qty)
			}
		}
	})

	sched, err := latency.NewScheduler(latency.Config{Mean: 0.05, StdDev: 0.01, Seed: seed})
	if err != nil {
		panic(err)
	}

	start := time.Now()
	cancels := 0
	for i := 0; i < numOrders; i++ {
		order := randomOrder(rng, uint64(i+1))
		if !withLatency {
			_, _ = engine.MatchOrder(&order)
			continue
		}
		now := float64(i) * 0.001
		sched.SubmitOrder(order, now)
		if i%4 == 0 && i > 0 {
			sched.SubmitCancellation(uint64(rng.Intn(i)+1), now)
		}
		for _, ev := range sched.DrainReady(now) {
			if ev.Kind == latency.EventCancel {
				if book.CancelOrder(ev.CancelID) {
					cancels++
				}
				continue
			}
			o := ev.Order
			_, _ = engine.MatchOrder(&o)
		}
	}
	elapsed := time.Since(start)

	bids, asks := book.Depth()
	fmt.Println("--------")
	fmt.Printf("Total Orders     : %d\n", numOrders)
	fmt.Printf("Total Matches    : %d\n", totalMatched)
	fmt.Printf("Total Matched Qty: %.0f\n", totalQty)
	fmt.Printf("Cancelled        : %d\n", cancels)
	fmt.Printf("Resting          : %d orders, %d bid / %d ask levels\n", book.Len(), bids, asks)
	fmt.Printf("Time Taken       : %s (%.0f orders/s)\n", elapsed, float64(numOrders)/elapsed.Seconds())
}
