package engine

import (
	"sync"
	"time"

	"github.com/FabioSeixas/exchange/internal/book"
	"github.com/FabioSeixas/exchange/internal/common"
	"github.com/FabioSeixas/exchange/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Reporter receives the outcome of order placement: one trade per resting
// order consumed by a successful match, and errors addressed to the owner of
// a rejected order.
type Reporter interface {
	ReportTrade(trade common.Trade, err error) error
	ReportError(owner string, err error) error
}

// Engine is the serialization point in front of one Book. The book itself is
// single-threaded; every placement and every read goes through the engine's
// lock, so concurrent callers always observe a settled book. The engine also
// keeps the order-id to owner table the reporting layer needs, since the core
// tracks no ownership.
type Engine struct {
	mu       sync.Mutex
	book     *book.Book
	reporter Reporter
	owners   map[string]string // order id -> owner
}

func New() *Engine {
	return &Engine{
		book:   book.New(),
		owners: make(map[string]string),
	}
}

// SetReporter wires the reporting sink. Must be called before PlaceOrder;
// typically the serving layer registers itself here.
func (e *Engine) SetReporter(r Reporter) {
	e.reporter = r
}

// PlaceOrder routes a request into the book. Bids always rest. Asks either
// rest, or cross and fully fill, or are rejected with
// book.ErrInsufficientMatch; a rejection leaves the book untouched and is
// reported to the order's owner. Each fill of a successful match is reported
// as a trade against the resting order it consumed.
func (e *Engine) PlaceOrder(req common.OrderRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// The trade log is cumulative, so remember where this call starts to
	// recover its fills afterwards.
	mark := len(e.book.Trades())

	var err error
	switch req.Side {
	case common.Bid:
		e.book.AddBid(book.Order{ID: req.ID, Price: req.Price, Size: req.Size})
	case common.Ask:
		err = e.book.AddAsk(book.Order{ID: req.ID, Price: req.Price, Size: req.Size})
	}

	if err != nil {
		metrics.OrdersRejectedTotal.Inc()
		log.Info().
			Str("order", req.ID).
			Str("owner", req.Owner).
			Uint64("price", req.Price).
			Uint64("size", req.Size).
			Err(err).
			Msg("order rejected")
		e.reportError(req.Owner, err)
		return err
	}

	fills := e.book.Trades()[mark:]
	if len(fills) == 0 {
		// Nothing crossed: the order now rests (or was a zero-size no-op).
		e.owners[req.ID] = req.Owner
		metrics.OrdersRestedTotal.WithLabelValues(req.Side.String()).Inc()
	} else {
		e.reportFills(req, fills)
	}

	e.updateGauges()
	return nil
}

// BestBid returns the highest resting bid price, 0 when no bids rest.
func (e *Engine) BestBid() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BestBid()
}

// BestAsk returns the lowest resting ask price, 0 when no asks rest.
func (e *Engine) BestAsk() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BestAsk()
}

// Depth snapshots both sides, best price first, as one consistent view.
func (e *Engine) Depth() (bids, asks []book.FlatPriceLevel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BidLevels(), e.book.AskLevels()
}

// Trades copies the trade log taken so far.
func (e *Engine) Trades() []book.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	trades := e.book.Trades()
	out := make([]book.Fill, len(trades))
	copy(out, trades)
	return out
}

// reportFills turns the trade-log delta of one successful match into trades
// and pushes them at the reporter. Owners of fully consumed resting orders
// are forgotten.
func (e *Engine) reportFills(req common.OrderRequest, fills []book.Fill) {
	now := time.Now()
	var matched uint64
	for _, fill := range fills {
		matched += fill.Size
		trade := common.Trade{
			TakerID:    req.ID,
			MakerID:    fill.OrderID,
			TakerOwner: req.Owner,
			MakerOwner: e.owners[fill.OrderID],
			Price:      fill.Price,
			Size:       fill.Size,
			Timestamp:  now,
		}
		if e.reporter != nil {
			if err := e.reporter.ReportTrade(trade, nil); err != nil {
				log.Error().Err(err).Str("taker", trade.TakerID).Msg("trade report failed")
			}
		}
		metrics.TradesTotal.Inc()
	}

	// Makers that were fully consumed no longer rest, so their owner
	// entries go. The greedy walk only ever leaves the final fill's maker
	// partially consumed, so only that one needs checking.
	for i, fill := range fills {
		if i < len(fills)-1 || !e.restingAt(fill.OrderID, fill.Price) {
			delete(e.owners, fill.OrderID)
		}
	}

	metrics.OrdersMatchedTotal.Inc()
	metrics.VolumeMatchedTotal.Add(float64(matched))
	log.Info().
		Str("order", req.ID).
		Str("owner", req.Owner).
		Uint64("matched", matched).
		Int("fills", len(fills)).
		Msg("order matched")
}

// restingAt reports whether an order still rests on the bid side at price.
func (e *Engine) restingAt(orderID string, price uint64) bool {
	for _, level := range e.book.BidLevels() {
		if level.Price != price {
			continue
		}
		for _, o := range level.Orders {
			if o.ID == orderID {
				return true
			}
		}
	}
	return false
}

func (e *Engine) reportError(owner string, err error) {
	if e.reporter == nil {
		return
	}
	if rerr := e.reporter.ReportError(owner, err); rerr != nil {
		log.Error().Err(rerr).Str("owner", owner).Msg("error report failed")
	}
}

func (e *Engine) updateGauges() {
	metrics.BookLevels.WithLabelValues(common.Bid.String()).Set(float64(e.book.BidLevelCount()))
	metrics.BookLevels.WithLabelValues(common.Ask.String()).Set(float64(e.book.AskLevelCount()))
	metrics.BookVolume.WithLabelValues(common.Bid.String()).Set(float64(e.book.BidVolume()))
	metrics.BookVolume.WithLabelValues(common.Ask.String()).Set(float64(e.book.AskVolume()))
}
