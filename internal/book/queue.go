package book

// Queue is the FIFO of orders resting at a single price. Insertion order is
// arrival order is consumption order. No order in the queue ever has size 0;
// fully consumed orders are removed the moment their size hits zero.
type Queue struct {
	orders []*Order
}

// Append pushes an order to the back of the queue.
func (q *Queue) Append(o *Order) {
	q.orders = append(q.orders, o)
}

// Peek returns the front order without removing it, or nil if the queue is
// empty. The pointer is live: mutating its Size mutates the queued order.
func (q *Queue) Peek() *Order {
	if len(q.orders) == 0 {
		return nil
	}
	return q.orders[0]
}

// Dequeue removes and returns the front order, or nil if the queue is empty.
func (q *Queue) Dequeue() *Order {
	if len(q.orders) == 0 {
		return nil
	}
	o := q.orders[0]
	q.orders[0] = nil
	q.orders = q.orders[1:]
	return o
}

// Len reports the number of orders currently queued.
func (q *Queue) Len() int {
	return len(q.orders)
}

// Probe simulates filling up to amount units against the queue without
// mutating anything. It walks from the front, allocating
// min(order.Size, remaining) per order, and stops once amount is exhausted or
// the queue ends. The returned fills describe the allocation an identical
// Consume call would make.
func (q *Queue) Probe(amount uint64) []Fill {
	var fills []Fill

	remaining := amount
	for _, o := range q.orders {
		if remaining == 0 {
			break
		}
		filled := min(o.Size, remaining)
		fills = append(fills, Fill{
			OrderID: o.ID,
			Price:   o.Price,
			Size:    filled,
		})
		remaining -= filled
	}
	return fills
}

// Consume is the mutating counterpart of Probe: it walks the queue from the
// front, removing orders it fully consumes and decrementing the size of a
// partially consumed order in place. One fill per contributing order is
// appended to out. Returns the total quantity filled, which is less than
// amount if the queue runs out first.
func (q *Queue) Consume(amount uint64, out *[]Fill) uint64 {
	var consumed int

	remaining := amount
	for _, o := range q.orders {
		if remaining == 0 {
			break
		}
		if o.Size <= remaining {
			// Fully consumed, ownership moves to the fill record.
			remaining -= o.Size
			*out = append(*out, Fill{
				OrderID: o.ID,
				Price:   o.Price,
				Size:    o.Size,
			})
			q.orders[consumed] = nil
			consumed++
		} else {
			o.Size -= remaining
			*out = append(*out, Fill{
				OrderID: o.ID,
				Price:   o.Price,
				Size:    remaining,
			})
			remaining = 0
		}
	}

	// Slice off the consumed prefix in one go.
	if consumed > 0 {
		q.orders = q.orders[consumed:]
	}
	return amount - remaining
}

// totalSize recomputes the true sum of queued sizes by full rescan. It exists
// for consistency checks against the cached level volume; the hot path never
// calls it.
func (q *Queue) totalSize() uint64 {
	var total uint64
	for _, o := range q.orders {
		total += o.Size
	}
	return total
}
