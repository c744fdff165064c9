package orderbook

import "github.com/gammazero/deque"

// handle addresses a slot in the arena. It stays valid until the slot is released.
type handle int32

const nilHandle handle = -1

type slot struct {
	order Order
	prev  handle
	next  handle
	inUse bool
}

// arena stores resident orders by handle. Released handles are reused oldest first.
type arena struct {
	slots []slot
	free  deque.Deque[handle]
}

func (a *arena) alloc(order Order) handle {
	var h handle
	if a.free.Len() > 0 {
		h = a.free.PopFront()
	} else {
		a.slots = append(a.slots, slot{})
		h = handle(len(a.slots) - 1)
	}
	a.slots[h] = slot{order: order, prev: nilHandle, next: nilHandle, inUse: true}
	return h
}

func (a *arena) release(h handle) {
	a.slots[h] = slot{prev: nilHandle, next: nilHandle}
	a.free.PushBack(h)
}

func (a *arena) get(h handle) *slot {
	return &a.slots[h]
}
