package book

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

var nextOrderID int

func newOrder(price, size uint64) Order {
	nextOrderID++
	return Order{ID: fmt.Sprintf("o%d", nextOrderID), Price: price, Size: size}
}

// checkCachedVolumes asserts every level's cached volume against a full
// rescan of its queue, on both sides.
func checkCachedVolumes(t *testing.T, b *Book) {
	t.Helper()
	for _, levels := range []*priceLevels{b.bids, b.asks} {
		levels.Scan(func(level *PriceLevel) bool {
			assert.Equal(t, level.queue.totalSize(), level.volume,
				"cached volume out of sync at price %d", level.price)
			assert.NotZero(t, level.volume, "empty level not evicted at price %d", level.price)
			return true
		})
	}
}

// snapshot captures every observable field of the book.
type snapshot struct {
	bids, asks []FlatPriceLevel
	bestBid    uint64
	bestAsk    uint64
	trades     int
}

func takeSnapshot(b *Book) snapshot {
	return snapshot{
		bids:    b.BidLevels(),
		asks:    b.AskLevels(),
		bestBid: b.BestBid(),
		bestAsk: b.BestAsk(),
		trades:  len(b.Trades()),
	}
}

// --- Insertion --------------------------------------------------------------

func TestAddAsk_SamePriceQueuesFIFO(t *testing.T) {
	b := New()

	first := newOrder(100, 100)
	second := newOrder(100, 200)
	require.NoError(t, b.AddAsk(first))
	require.NoError(t, b.AddAsk(second))

	assert.Equal(t, uint64(100), b.BestAsk())
	assert.Equal(t, 1, b.AskLevelCount())

	levels := b.AskLevels()
	require.Len(t, levels, 1)
	assert.Equal(t, uint64(300), levels[0].Volume)
	assert.Equal(t, []Order{first, second}, levels[0].Orders)
	checkCachedVolumes(t, b)
}

func TestAddAsk_BetterPriceBecomesBest(t *testing.T) {
	b := New()

	old := newOrder(200, 100)
	require.NoError(t, b.AddAsk(old))

	a := newOrder(100, 100)
	c := newOrder(100, 200)
	require.NoError(t, b.AddAsk(a))
	require.NoError(t, b.AddAsk(c))

	assert.Equal(t, uint64(100), b.BestAsk())
	assert.Equal(t, 2, b.AskLevelCount())

	levels := b.AskLevels()
	require.Len(t, levels, 2)
	// New lower level first, holding both fresh orders.
	assert.Equal(t, uint64(100), levels[0].Price)
	assert.Equal(t, uint64(300), levels[0].Volume)
	// The old level untouched behind it.
	assert.Equal(t, uint64(200), levels[1].Price)
	assert.Equal(t, []Order{old}, levels[1].Orders)
}

func TestInsert_MiddlePriceLandsSorted(t *testing.T) {
	// A price strictly between two resting levels must land in sorted
	// position, on both sides, regardless of arrival order.
	b := New()
	require.NoError(t, b.AddAsk(newOrder(100, 10)))
	require.NoError(t, b.AddAsk(newOrder(300, 10)))
	require.NoError(t, b.AddAsk(newOrder(200, 10)))

	b.AddBid(newOrder(10, 10))
	b.AddBid(newOrder(30, 10))
	b.AddBid(newOrder(20, 10))

	asks := b.AskLevels()
	require.Len(t, asks, 3)
	assert.Equal(t, []uint64{asks[0].Price, asks[1].Price, asks[2].Price}, []uint64{100, 200, 300})

	bids := b.BidLevels()
	require.Len(t, bids, 3)
	assert.Equal(t, []uint64{bids[0].Price, bids[1].Price, bids[2].Price}, []uint64{30, 20, 10})

	assert.Equal(t, uint64(30), b.BestBid())
	assert.Equal(t, uint64(100), b.BestAsk())
}

func TestAddBid_NeverCrosses(t *testing.T) {
	// Incoming bids always rest, even priced through the ask side.
	b := New()
	require.NoError(t, b.AddAsk(newOrder(50, 100)))

	b.AddBid(newOrder(60, 100))

	assert.Equal(t, uint64(60), b.BestBid())
	assert.Equal(t, uint64(50), b.BestAsk())
	assert.Equal(t, 1, b.BidLevelCount())
	assert.Equal(t, 1, b.AskLevelCount())
	assert.Empty(t, b.Trades())
}

func TestZeroSizeOrdersAreNoOps(t *testing.T) {
	b := New()
	b.AddBid(newOrder(40, 100))

	b.AddBid(newOrder(41, 0))
	require.NoError(t, b.AddAsk(newOrder(40, 0)))

	assert.Equal(t, uint64(40), b.BestBid())
	assert.Equal(t, 1, b.BidLevelCount())
	assert.Equal(t, 0, b.AskLevelCount())
	assert.Empty(t, b.Trades())
}

// --- Matching ---------------------------------------------------------------

func TestAddAsk_FullyConsumesBidLevel(t *testing.T) {
	b := New()
	bid := newOrder(40, 100)
	b.AddBid(bid)
	require.NoError(t, b.AddAsk(newOrder(50, 100)))

	require.NoError(t, b.AddAsk(newOrder(40, 100)))

	assert.Equal(t, uint64(0), b.BestBid())
	assert.Equal(t, 0, b.BidLevelCount())
	// The resting ask side is untouched by the cross.
	assert.Equal(t, uint64(50), b.BestAsk())
	assert.Equal(t, 1, b.AskLevelCount())

	trades := b.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, Fill{OrderID: bid.ID, Price: 40, Size: 100}, trades[0])
	checkCachedVolumes(t, b)
}

func TestAddAsk_PartiallyConsumesBidLevel(t *testing.T) {
	b := New()
	bid := newOrder(40, 100)
	b.AddBid(bid)
	require.NoError(t, b.AddAsk(newOrder(50, 100)))

	require.NoError(t, b.AddAsk(newOrder(40, 90)))

	assert.Equal(t, uint64(40), b.BestBid())
	assert.Equal(t, 1, b.BidLevelCount())

	levels := b.BidLevels()
	require.Len(t, levels, 1)
	assert.Equal(t, uint64(10), levels[0].Volume)
	require.Len(t, levels[0].Orders, 1)
	assert.Equal(t, bid.ID, levels[0].Orders[0].ID)
	assert.Equal(t, uint64(10), levels[0].Orders[0].Size)

	trades := b.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(90), trades[0].Size)
	checkCachedVolumes(t, b)
}

func TestAddAsk_InsufficientLiquidityRejects(t *testing.T) {
	b := New()
	b.AddBid(newOrder(40, 100))
	require.NoError(t, b.AddAsk(newOrder(50, 100)))

	before := takeSnapshot(b)

	err := b.AddAsk(newOrder(40, 110))
	assert.ErrorIs(t, err, ErrInsufficientMatch)

	// Rejection leaves every observable field untouched.
	assert.Equal(t, before, takeSnapshot(b))
	assert.Equal(t, uint64(40), b.BestBid())
	checkCachedVolumes(t, b)
}

func TestAddAsk_SweepsMultipleLevels(t *testing.T) {
	b := New()
	top := newOrder(40, 100)
	next := newOrder(39, 100)
	b.AddBid(top)
	b.AddBid(next)

	mark := len(b.Trades())
	require.NoError(t, b.AddAsk(newOrder(38, 110)))

	// Level 40 fully drained, 10 taken from level 39.
	assert.Equal(t, uint64(39), b.BestBid())
	assert.Equal(t, 1, b.BidLevelCount())
	assert.Equal(t, uint64(90), b.BidLevels()[0].Volume)

	fills := b.Trades()[mark:]
	require.Len(t, fills, 2)
	assert.Equal(t, Fill{OrderID: top.ID, Price: 40, Size: 100}, fills[0])
	assert.Equal(t, Fill{OrderID: next.ID, Price: 39, Size: 10}, fills[1])
	assert.Equal(t, uint64(110), sumFills(fills))
	checkCachedVolumes(t, b)
}

func TestAddAsk_OnlyQualifyingPricesTrade(t *testing.T) {
	// 200 rests across two bid levels but only the level at 40 qualifies
	// for an ask priced 40: the scan must stop at 39, and the shortfall
	// rejects the order.
	b := New()
	b.AddBid(newOrder(40, 100))
	b.AddBid(newOrder(39, 100))

	before := takeSnapshot(b)

	err := b.AddAsk(newOrder(40, 110))
	assert.ErrorIs(t, err, ErrInsufficientMatch)
	assert.Equal(t, before, takeSnapshot(b))
}

func TestAddAsk_FIFOAcrossOneLevel(t *testing.T) {
	b := New()
	first := newOrder(40, 100)
	second := newOrder(40, 200)
	third := newOrder(40, 50)
	b.AddBid(first)
	b.AddBid(second)
	b.AddBid(third)

	require.NoError(t, b.AddAsk(newOrder(40, 150)))

	// The earliest order is taken first; the second only partially.
	trades := b.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, Fill{OrderID: first.ID, Price: 40, Size: 100}, trades[0])
	assert.Equal(t, Fill{OrderID: second.ID, Price: 40, Size: 50}, trades[1])

	levels := b.BidLevels()
	require.Len(t, levels, 1)
	assert.Equal(t, uint64(200), levels[0].Volume)
	assert.Equal(t, second.ID, levels[0].Orders[0].ID)
	assert.Equal(t, uint64(150), levels[0].Orders[0].Size)
	assert.Equal(t, third.ID, levels[0].Orders[1].ID)
	checkCachedVolumes(t, b)
}

func TestTradeLogAccumulates(t *testing.T) {
	b := New()
	b.AddBid(newOrder(40, 100))
	require.NoError(t, b.AddAsk(newOrder(40, 60)))

	require.Len(t, b.Trades(), 1)
	firstFill := b.Trades()[0]

	b.AddBid(newOrder(41, 30))
	require.NoError(t, b.AddAsk(newOrder(40, 70)))

	// The log is a history: earlier entries survive later matches.
	trades := b.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, firstFill, trades[0])
	assert.Equal(t, uint64(70), sumFills(trades[1:]))
}

func TestBookkeepingCounters(t *testing.T) {
	b := New()
	b.AddBid(newOrder(40, 100))
	b.AddBid(newOrder(40, 50))
	b.AddBid(newOrder(39, 25))
	require.NoError(t, b.AddAsk(newOrder(50, 10)))

	assert.Equal(t, uint64(3), b.BidOrderCount())
	assert.Equal(t, uint64(175), b.BidVolume())
	assert.Equal(t, uint64(1), b.AskOrderCount())
	assert.Equal(t, uint64(10), b.AskVolume())

	// A cross lifting one full order and nibbling another.
	require.NoError(t, b.AddAsk(newOrder(40, 120)))

	assert.Equal(t, uint64(2), b.BidOrderCount())
	assert.Equal(t, uint64(55), b.BidVolume())
	checkCachedVolumes(t, b)
}

func TestBestPricesNeverStale(t *testing.T) {
	b := New()
	assert.Equal(t, uint64(0), b.BestBid())
	assert.Equal(t, uint64(0), b.BestAsk())

	b.AddBid(newOrder(40, 100))
	require.NoError(t, b.AddAsk(newOrder(45, 100)))
	assert.Equal(t, uint64(40), b.BestBid())
	assert.Equal(t, uint64(45), b.BestAsk())

	b.AddBid(newOrder(42, 10))
	assert.Equal(t, uint64(42), b.BestBid())

	// Drain the top bid level; best falls back to the next one.
	require.NoError(t, b.AddAsk(newOrder(42, 10)))
	assert.Equal(t, uint64(40), b.BestBid())

	// Drain the last bid level; the side empties out.
	require.NoError(t, b.AddAsk(newOrder(40, 100)))
	assert.Equal(t, uint64(0), b.BestBid())
	assert.Equal(t, uint64(45), b.BestAsk())
}
