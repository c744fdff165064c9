package orderbook

import (
	"container/heap"
	"sort"
)

// PriceHeap implements heap.Interface over distinct prices. pos tracks where each
// price sits so a level emptied by a cancel can be dropped from the middle.
type PriceHeap struct {
	prices []float64
	less   func(i, j float64) bool
	pos    map[float64]int
}

func NewPriceHeap(less func(i, j float64) bool) *PriceHeap {
	return &PriceHeap{
		prices: []float64{},
		less:   less,
		pos:    make(map[float64]int),
	}
}

func (h PriceHeap) Len() int {
	return len(h.prices)
}

func (h PriceHeap) Less(i, j int) bool {
	return h.less(h.prices[i], h.prices[j])
}

func (h PriceHeap) Swap(i, j int) {
	h.prices[i], h.prices[j] = h.prices[j], h.prices[i]
	h.pos[h.prices[i]] = i
	h.pos[h.prices[j]] = j
}

func (h *PriceHeap) Push(x any) {
	price := x.(float64)
	if _, ok := h.pos[price]; ok {
		return
	}
	h.pos[price] = len(h.prices)
	h.prices = append(h.prices, price)
}

func (h *PriceHeap) Pop() any {
	n := len(h.prices)
	price := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.pos, price)
	return price
}

func (h *PriceHeap) Peek() (float64, bool) {
	if len(h.prices) == 0 {
		return 0, false
	}
	return h.prices[0], true
}

func (h *PriceHeap) Contains(price float64) bool {
	_, ok := h.pos[price]
	return ok
}

// Add inserts a price unless it is already present.
func (h *PriceHeap) Add(price float64) {
	if h.Contains(price) {
		return
	}
	heap.Push(h, price)
}

// Remove drops a price wherever it sits in the heap.
func (h *PriceHeap) Remove(price float64) bool {
	i, ok := h.pos[price]
	if !ok {
		return false
	}
	heap.Remove(h, i)
	return true
}

// Sorted returns up to n prices best first. n <= 0 returns all of them.
func (h *PriceHeap) Sorted(n int) []float64 {
	out := make([]float64, len(h.prices))
	copy(out, h.prices)
	sort.Slice(out, func(i, j int) bool { return h.less(out[i], out[j]) })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
