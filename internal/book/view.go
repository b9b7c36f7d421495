package book

// FlatPriceLevel is a detached snapshot of one price level: the price, the
// cached volume, and value copies of the queued orders in FIFO order.
// Mutating a snapshot never touches the book.
type FlatPriceLevel struct {
	Price  uint64
	Volume uint64
	Orders []Order
}

// BidLevels snapshots the bid side, best price first.
func (b *Book) BidLevels() []FlatPriceLevel {
	return flattenLevels(b.bids)
}

// AskLevels snapshots the ask side, best price first.
func (b *Book) AskLevels() []FlatPriceLevel {
	return flattenLevels(b.asks)
}

func flattenLevels(levels *priceLevels) []FlatPriceLevel {
	flat := make([]FlatPriceLevel, 0, levels.Len())
	levels.Scan(func(level *PriceLevel) bool {
		orders := make([]Order, 0, level.queue.Len())
		for _, o := range level.queue.orders {
			orders = append(orders, *o)
		}
		flat = append(flat, FlatPriceLevel{
			Price:  level.price,
			Volume: level.volume,
			Orders: orders,
		})
		return true
	})
	return flat
}
