package book

// Order is a resting limit order. ID and Price are fixed at creation; Size is
// the remaining quantity and only ever decreases. The queue holding the order
// owns it exclusively until it is fully consumed.
//
// IDs are assigned by the caller and never reused. Prices and sizes are in
// integer ticks/units.
type Order struct {
	ID    string // Caller-assigned unique id
	Price uint64 // Limit price, immutable
	Size  uint64 // Remaining quantity
}

// Fill records quantity taken from one resting order during a match. Size is
// the quantity filled from that order, not the order's original size. Fills
// are the records emitted by Queue.Consume and the entries of the Book's
// trade log.
type Fill struct {
	OrderID string
	Price   uint64
	Size    uint64
}
