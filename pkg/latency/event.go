package latency

import "github.com/joripage/lobsim/pkg/orderbook"

type EventKind int

const (
	EventNewOrder EventKind = iota
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventNewOrder:
		return "NEW_ORDER"
	case EventCancel:
		return "CANCEL"
	}
	return "UNKNOWN"
}

// Event is an action held back until its release time. Order is set for
// EventNewOrder, CancelID for EventCancel.
type Event struct {
	Kind        EventKind
	Order       orderbook.Order
	CancelID    uint64
	ReleaseTime float64
	Seq         uint64
}

// eventHeap orders events by release time, then by submission sequence.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].ReleaseTime != h[j].ReleaseTime {
		return h[i].ReleaseTime < h[j].ReleaseTime
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = Event{}
	*h = old[:n-1]
	return ev
}
