package book

// PriceLevel groups every resting order at one price on one side, together
// with the cached sum of their sizes. A level is created when the first order
// at a new price arrives and evicted by the Book the moment its volume
// reaches 0; a reachable level is never empty.
type PriceLevel struct {
	price  uint64
	volume uint64
	queue  Queue
}

func newPriceLevel(price uint64) *PriceLevel {
	return &PriceLevel{price: price}
}

// Price returns the shared price of every order on this level.
func (l *PriceLevel) Price() uint64 {
	return l.price
}

// Volume returns the cached total resting quantity on this level. It is kept
// equal to the true sum of queued sizes on every mutation.
func (l *PriceLevel) Volume() uint64 {
	return l.volume
}

// OrderCount reports the number of orders queued on this level.
func (l *PriceLevel) OrderCount() int {
	return l.queue.Len()
}

func (l *PriceLevel) append(o *Order) {
	l.volume += o.Size
	l.queue.Append(o)
}

// Probe delegates to the queue's read-only simulation. Volume is untouched.
func (l *PriceLevel) Probe(amount uint64) []Fill {
	return l.queue.Probe(amount)
}

// Consume fills up to amount units in FIFO order and decrements the cached
// volume by the quantity actually filled. The caller is responsible for
// evicting the level once Volume reaches 0.
func (l *PriceLevel) Consume(amount uint64, out *[]Fill) uint64 {
	filled := l.queue.Consume(amount, out)
	l.volume -= filled
	return filled
}
