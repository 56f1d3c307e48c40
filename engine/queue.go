package engine

import (
	"github.com/rustyeddy/pairtrader/order"
)

// FillQueue is the bounded hand-off between the broker boundary and the
// tick loop. Broker callbacks push from their side; the coordinator drains
// synchronously at the start of every tick, which is what makes the
// serialized-delivery assumption explicit.
type FillQueue struct {
	ch chan order.OrderUpdate
}

func NewFillQueue(size int) *FillQueue {
	return &FillQueue{ch: make(chan order.OrderUpdate, size)}
}

// Push enqueues one broker callback. A full queue drops the update and logs
// loudly: losing a fill is an operator problem, not a reason to block the
// broker's callback goroutine.
func (q *FillQueue) Push(u order.OrderUpdate) {
	select {
	case q.ch <- u:
	default:
		log.WithField("order_id", u.OrderID).Error("fill queue full, update dropped")
	}
}

// Drain empties the queue without blocking.
func (q *FillQueue) Drain() []order.OrderUpdate {
	var out []order.OrderUpdate
	for {
		select {
		case u := <-q.ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

// Len reports the number of pending updates.
func (q *FillQueue) Len() int { return len(q.ch) }
