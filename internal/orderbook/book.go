package orderbook

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/core"
)

// Level is an aggregated depth view entry: total resting quantity at a
// price.
type Level struct {
	Price    float64
	Quantity float64
}

// priceLevel holds the FIFO queue of arena slots resting at one price.
// Slots are appended in admission order, so the head is always the
// earliest sequence number.
type priceLevel struct {
	price float64
	slots []int32
}

// arena owns all live orders. Cancellation and completion return the
// slot to a free list; terminal orders are kept as frozen copies so id
// lookups keep working after removal from the queues.
type arena struct {
	orders []Order
	free   []int32
	index  map[string]int32 // live orders only
	done   map[string]Order // terminal orders, frozen
}

func newArena() *arena {
	return &arena{
		index: make(map[string]int32),
		done:  make(map[string]Order),
	}
}

func (a *arena) alloc(o Order) int32 {
	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		a.orders[slot] = o
		a.index[o.ID] = slot
		return slot
	}
	a.orders = append(a.orders, o)
	slot := int32(len(a.orders) - 1)
	a.index[o.ID] = slot
	return slot
}

// release freezes the order into the terminal map and returns its slot
// to the free list.
func (a *arena) release(slot int32) {
	o := a.orders[slot]
	delete(a.index, o.ID)
	a.done[o.ID] = o
	a.free = append(a.free, slot)
}

// Book is a per-symbol limit order book. A single mutex serializes
// add, cancel, match and depth snapshots so both queues and the
// id-index move together atomically.
type Book struct {
	symbol string
	logger *zap.Logger

	mu      sync.Mutex
	bids    *btree.Map[float64, *priceLevel] // iterated in reverse: best bid = max price
	asks    *btree.Map[float64, *priceLevel] // iterated forward: best ask = min price
	orders  *arena
	nextSeq uint64
}

// New creates an empty book for the symbol.
func New(symbol string, logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		symbol: symbol,
		logger: logger,
		bids:   new(btree.Map[float64, *priceLevel]),
		asks:   new(btree.Map[float64, *priceLevel]),
		orders: newArena(),
	}
}

// Symbol returns the book's symbol.
func (b *Book) Symbol() string { return b.symbol }

// AddOrder admits the order and immediately matches. Market orders are
// matched as a limit at the side-extreme price. Returns the trades the
// admission produced. Matching runs to quiescence before the lock is
// released, so the book is never observed crossed.
func (b *Book) AddOrder(o Order) ([]Trade, error) {
	if o.Symbol != b.symbol {
		return nil, core.WrapError(core.ErrInvalidParams, errf("order symbol %q does not match book %q", o.Symbol, b.symbol))
	}
	if o.Quantity <= 0 {
		return nil, core.WrapError(core.ErrInvalidParams, errf("quantity %v must be positive", o.Quantity))
	}
	if o.Type == TypeMarket {
		if o.Side == SideBuy {
			o.Price = math.Inf(1)
		} else {
			o.Price = 0
		}
	} else if o.Price <= 0 {
		return nil, core.WrapError(core.ErrInvalidParams, errf("limit price %v must be positive", o.Price))
	}
	if o.ID == "" {
		o.ID = NewOrderID()
	}
	if o.Time.IsZero() {
		o.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, live := b.orders.index[o.ID]; live {
		return nil, core.WrapError(core.ErrInvalidParams, errf("duplicate order id %s", o.ID))
	}
	if _, terminal := b.orders.done[o.ID]; terminal {
		return nil, core.WrapError(core.ErrAlreadyTerminal, errf("order id %s reused", o.ID))
	}

	b.nextSeq++
	o.seq = b.nextSeq
	o.Status = StatusPending
	o.Filled = 0

	slot := b.orders.alloc(o)
	b.enqueue(o.Side, o.Price, slot)

	b.logger.Debug("order admitted",
		zap.String("symbol", b.symbol),
		zap.String("id", o.ID),
		zap.String("side", string(o.Side)),
		zap.Float64("price", o.Price),
		zap.Float64("quantity", o.Quantity),
	)

	return b.match(), nil
}

// CancelOrder removes a resting order. Unknown ids fail with NOT_FOUND;
// ids that already reached a terminal state fail with ALREADY_TERMINAL.
func (b *Book) CancelOrder(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot, ok := b.orders.index[id]
	if !ok {
		if _, terminal := b.orders.done[id]; terminal {
			return core.WrapError(core.ErrAlreadyTerminal, errf("order %s", id))
		}
		return core.WrapError(core.ErrNotFound, errf("order %s", id))
	}

	o := &b.orders.orders[slot]
	b.dequeue(o.Side, o.Price, slot)
	o.Status = StatusCancelled
	b.orders.release(slot)

	b.logger.Debug("order cancelled", zap.String("symbol", b.symbol), zap.String("id", id))
	return nil
}

// Order returns a copy of the order by id, live or terminal.
func (b *Book) Order(id string) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot, ok := b.orders.index[id]; ok {
		return b.orders.orders[slot], nil
	}
	if o, ok := b.orders.done[id]; ok {
		return o, nil
	}
	return Order{}, core.WrapError(core.ErrNotFound, errf("order %s", id))
}

// BestBid returns the highest resting buy price, or 0 when the bid side
// is empty.
func (b *Book) BestBid() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if price, _, ok := b.bids.Max(); ok {
		return price
	}
	return 0
}

// BestAsk returns the lowest resting sell price, or 0 when the ask side
// is empty.
func (b *Book) BestAsk() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if price, _, ok := b.asks.Min(); ok {
		return price
	}
	return 0
}

// Spread returns ask minus bid when both sides are populated.
func (b *Book) Spread() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid, _, bidOK := b.bids.Max()
	ask, _, askOK := b.asks.Min()
	if !bidOK || !askOK {
		return 0
	}
	return ask - bid
}

// BidLevels aggregates resting buy quantity by price, best (highest)
// first, up to depth levels.
func (b *Book) BidLevels(depth int) []Level {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := make([]Level, 0, depth)
	b.bids.Reverse(func(price float64, lvl *priceLevel) bool {
		levels = append(levels, Level{Price: price, Quantity: b.levelQuantity(lvl)})
		return len(levels) < depth
	})
	return levels
}

// AskLevels aggregates resting sell quantity by price, best (lowest)
// first, up to depth levels.
func (b *Book) AskLevels(depth int) []Level {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := make([]Level, 0, depth)
	b.asks.Scan(func(price float64, lvl *priceLevel) bool {
		levels = append(levels, Level{Price: price, Quantity: b.levelQuantity(lvl)})
		return len(levels) < depth
	})
	return levels
}

func (b *Book) levelQuantity(lvl *priceLevel) float64 {
	var total float64
	for _, slot := range lvl.slots {
		total += b.orders.orders[slot].Remaining()
	}
	return total
}

func (b *Book) side(s Side) *btree.Map[float64, *priceLevel] {
	if s == SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *Book) enqueue(s Side, price float64, slot int32) {
	tree := b.side(s)
	lvl, ok := tree.Get(price)
	if !ok {
		lvl = &priceLevel{price: price}
		tree.Set(price, lvl)
	}
	lvl.slots = append(lvl.slots, slot)
}

func (b *Book) dequeue(s Side, price float64, slot int32) {
	tree := b.side(s)
	lvl, ok := tree.Get(price)
	if !ok {
		return
	}
	for i, cand := range lvl.slots {
		if cand == slot {
			lvl.slots = append(lvl.slots[:i], lvl.slots[i+1:]...)
			break
		}
	}
	if len(lvl.slots) == 0 {
		tree.Delete(price)
	}
}

// match runs continuous price-time matching to quiescence. Execution
// price is the resting order's price; the resting order is the one with
// the earlier admission sequence.
func (b *Book) match() []Trade {
	var trades []Trade

	for {
		bidPrice, bidLvl, bidOK := b.bids.Max()
		askPrice, askLvl, askOK := b.asks.Min()
		if !bidOK || !askOK {
			break
		}
		if bidPrice < askPrice {
			break
		}

		buySlot := bidLvl.slots[0]
		sellSlot := askLvl.slots[0]
		buy := &b.orders.orders[buySlot]
		sell := &b.orders.orders[sellSlot]

		// Price improvement goes to the aggressor: the trade prints at
		// the resting (earlier-admitted) order's price. A resting market
		// order carries a sentinel price; the aggressor's limit prints
		// instead.
		resting, aggressor := buy, sell
		if sell.seq < buy.seq {
			resting, aggressor = sell, buy
		}
		price := resting.Price
		if sentinelPrice(price) {
			price = aggressor.Price
		}
		quantity := math.Min(buy.Remaining(), sell.Remaining())

		buy.Filled += quantity
		sell.Filled += quantity
		if buy.IsComplete() {
			buy.Status = StatusFilled
		} else {
			buy.Status = StatusPartialFilled
		}
		if sell.IsComplete() {
			sell.Status = StatusFilled
		} else {
			sell.Status = StatusPartialFilled
		}

		trade := Trade{
			ID:          uuid.New().String(),
			Symbol:      b.symbol,
			BuyOrderID:  buy.ID,
			SellOrderID: sell.ID,
			Price:       price,
			Quantity:    quantity,
			Time:        time.Now(),
		}
		trades = append(trades, trade)

		b.logger.Debug("trade executed",
			zap.String("symbol", b.symbol),
			zap.Float64("price", price),
			zap.Float64("quantity", quantity),
			zap.String("buy", buy.ID),
			zap.String("sell", sell.ID),
		)

		if buy.IsComplete() {
			b.dequeue(SideBuy, buy.Price, buySlot)
			b.orders.release(buySlot)
		}
		if sell.IsComplete() {
			b.dequeue(SideSell, sell.Price, sellSlot)
			b.orders.release(sellSlot)
		}
	}

	return trades
}

// sentinelPrice reports whether the price is a market-order matching
// sentinel rather than a real limit.
func sentinelPrice(p float64) bool {
	return p == 0 || math.IsInf(p, 0)
}

func errf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
