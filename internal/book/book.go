package book

import (
	"errors"

	"github.com/tidwall/btree"
)

var (
	// ErrInsufficientMatch is returned by a crossing ask whose qualifying
	// bid liquidity is strictly less than its size. The book is left
	// completely untouched on this error.
	ErrInsufficientMatch = errors.New("insufficient match")
)

type priceLevels = btree.BTreeG[*PriceLevel]

// Book is a single-instrument limit order book: bids sorted best (highest)
// first, asks sorted best (lowest) first, each level a FIFO queue of orders
// at that price. Incoming asks that cross the best bid are matched
// all-or-nothing against resting bids in price-time priority; everything else
// rests.
//
// A Book is not safe for concurrent use. A concurrent host must put one
// serialization point (a lock, or a single feeding goroutine) in front of
// every call, reads included.
type Book struct {
	bids *priceLevels
	asks *priceLevels

	// Cached front-of-side prices, 0 when the side is empty. Refreshed
	// after every structural change.
	bestBid uint64
	bestAsk uint64

	// Trade history: one fill per resting order touched by a successful
	// match, append-only for the book's lifetime.
	trades []Fill

	// Some book keeping
	nBidOrders uint64 // Number of resting bid orders.
	nAskOrders uint64 // Number of resting ask orders.
	bidVolume  uint64 // Total resting bid-side quantity.
	askVolume  uint64 // Total resting ask-side quantity.
}

func New() *Book {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price > b.price
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price < b.price
	})
	return &Book{
		bids: bids,
		asks: asks,
	}
}

// AddBid rests a buy order on the bid side. Bids never cross: incoming buy
// interest always queues, it does not trade against resting asks.
func (b *Book) AddBid(order Order) {
	if order.Size == 0 {
		return
	}
	b.insert(b.bids, order)
	b.nBidOrders++
	b.bidVolume += order.Size
	b.refreshBest()
}

// AddAsk submits a sell order. If its price crosses the best bid it must be
// fully satisfiable by resting bids at qualifying prices: the match is first
// simulated, then committed, and a shortfall rejects the whole order with
// ErrInsufficientMatch and zero mutation. A crossing ask is consumed entirely
// by the bids it trades against and never rests. A non-crossing ask rests on
// the ask side.
func (b *Book) AddAsk(order Order) error {
	if order.Size == 0 {
		return nil
	}
	if b.bestBid != 0 && order.Price <= b.bestBid {
		return b.matchAsk(order)
	}
	b.insert(b.asks, order)
	b.nAskOrders++
	b.askVolume += order.Size
	b.refreshBest()
	return nil
}

// BestBid returns the highest resting bid price, 0 if no bids rest.
func (b *Book) BestBid() uint64 {
	return b.bestBid
}

// BestAsk returns the lowest resting ask price, 0 if no asks rest.
func (b *Book) BestAsk() uint64 {
	return b.bestAsk
}

// BidLevelCount reports the number of distinct bid price levels.
func (b *Book) BidLevelCount() int {
	return b.bids.Len()
}

// AskLevelCount reports the number of distinct ask price levels.
func (b *Book) AskLevelCount() int {
	return b.asks.Len()
}

// BidOrderCount reports the number of resting bid orders.
func (b *Book) BidOrderCount() uint64 {
	return b.nBidOrders
}

// AskOrderCount reports the number of resting ask orders.
func (b *Book) AskOrderCount() uint64 {
	return b.nAskOrders
}

// BidVolume reports the total resting bid-side quantity.
func (b *Book) BidVolume() uint64 {
	return b.bidVolume
}

// AskVolume reports the total resting ask-side quantity.
func (b *Book) AskVolume() uint64 {
	return b.askVolume
}

// Trades returns the append-only trade log. Entries accumulate across the
// book's lifetime; a caller interested only in the most recent match records
// the length before the call and slices from there afterwards.
func (b *Book) Trades() []Fill {
	return b.trades
}

// insert rests an order on its own side. The level for the order's price is
// looked up and appended to, or created in sorted position if this is the
// first order at that price.
func (b *Book) insert(levels *priceLevels, order Order) {
	// Levels compare on price only, so a bare level works as the search key.
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if !ok {
		level = newPriceLevel(order.Price)
		levels.Set(level)
	}
	level.append(&order)
}

// matchAsk executes a crossing ask against resting bids, best bid first.
// Two phases: a read-only probe walk decides feasibility, and only a feasible
// order proceeds to the consuming walk. The split is what makes rejection
// free of side effects; merging the passes would allow partial mutation on a
// shortfall.
func (b *Book) matchAsk(order Order) error {
	// Phase 1: probe. Walk bids from the best price down, stopping at the
	// first level priced below the ask: nothing past it may trade.
	needed := order.Size
	b.bids.Scan(func(level *PriceLevel) bool {
		if level.price < order.Price {
			return false
		}
		for _, fill := range level.Probe(needed) {
			needed -= fill.Size
		}
		return needed > 0
	})
	if needed > 0 {
		return ErrInsufficientMatch
	}

	// Phase 2: commit. Same walk, now consuming into the trade log.
	// Drained levels are collected and deleted after the scan; the tree
	// must not change shape mid-iteration.
	var drained []*PriceLevel
	var lifted uint64

	needed = order.Size
	b.bids.Scan(func(level *PriceLevel) bool {
		before := level.OrderCount()
		needed -= level.Consume(needed, &b.trades)
		lifted += uint64(before - level.OrderCount())
		if level.Volume() == 0 {
			drained = append(drained, level)
		}
		return needed > 0
	})
	for _, level := range drained {
		b.bids.Delete(level)
	}

	// Bookkeeping
	b.bidVolume -= order.Size
	b.nBidOrders -= lifted
	b.refreshBest()
	return nil
}

// refreshBest recomputes both cached best prices from the current side
// fronts.
func (b *Book) refreshBest() {
	b.bestBid = 0
	b.bestAsk = 0
	if level, ok := b.bids.Min(); ok {
		b.bestBid = level.price
	}
	if level, ok := b.asks.Min(); ok {
		b.bestAsk = level.price
	}
}
