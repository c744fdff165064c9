package orderbook

// priceLevel is the FIFO queue of resident orders at one price. The queue is an
// intrusive list threaded through the arena slots.
type priceLevel struct {
	price float64
	head  handle
	tail  handle
	count int
}

func newPriceLevel(price float64) *priceLevel {
	return &priceLevel{price: price, head: nilHandle, tail: nilHandle}
}

func (l *priceLevel) empty() bool {
	return l.head == nilHandle
}

func (l *priceLevel) pushBack(a *arena, h handle) {
	s := a.get(h)
	s.prev = l.tail
	s.next = nilHandle
	if l.tail == nilHandle {
		l.head = h
	} else {
		a.get(l.tail).next = h
	}
	l.tail = h
	l.count++
}

func (l *priceLevel) unlink(a *arena, h handle) {
	s := a.get(h)
	if s.prev != nilHandle {
		a.get(s.prev).next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nilHandle {
		a.get(s.next).prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.prev, s.next = nilHandle, nilHandle
	l.count--
}

// totalQty sums the queue at call time so the figure never drifts from the orders.
func (l *priceLevel) totalQty(a *arena) float64 {
	total := 0.0
	for h := l.head; h != nilHandle; h = a.get(h).next {
		total += a.get(h).order.Qty
	}
	return total
}
