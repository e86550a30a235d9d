// Package portfolio owns the position set: it applies validated
// signals, marks positions to market and hands out consistent
// snapshots.
package portfolio

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/quantcore/internal/core"
)

// Book is the position book. The engine thread is the only writer;
// snapshots are safe from any goroutine.
type Book struct {
	mu        sync.RWMutex
	positions map[core.OptionKey]core.Position
	cash      float64
}

// NewBook creates a book seeded with starting capital.
func NewBook(startingCapital float64) *Book {
	return &Book{
		positions: make(map[core.OptionKey]core.Position),
		cash:      startingCapital,
	}
}

// Apply mutates the position set per the signal kind. BUY/SELL kinds
// accumulate signed quantity, CLOSE_POSITION removes the matching
// position, HOLD is a no-op. Returns the resulting position (zero-value
// for HOLD and closes).
func (b *Book) Apply(sig core.Signal) (core.Position, error) {
	if err := sig.Validate(); err != nil {
		return core.Position{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := signalKey(sig)

	switch sig.Kind {
	case core.SignalHold:
		return core.Position{}, nil

	case core.SignalClosePosition:
		pos, ok := b.positions[key]
		if !ok {
			return core.Position{}, core.WrapError(core.ErrNotFound, fmt.Errorf("position %v", key))
		}
		b.cash += pos.Quantity * sig.Price
		delete(b.positions, key)
		return core.Position{}, nil
	}

	signedQty := sig.Quantity
	if !sig.Kind.IsLong() {
		signedQty = -sig.Quantity
	}

	pos, exists := b.positions[key]
	if !exists {
		pos = core.Position{
			Symbol:       sig.Symbol,
			Quantity:     signedQty,
			AveragePrice: sig.Price,
			CurrentPrice: sig.Price,
			EntryTime:    sig.Time,
			IsOption:     sig.Kind.IsOption(),
			Strike:       sig.Strike,
			Expiration:   sig.Expiration,
			IsCall:       sig.IsCall,
		}
	} else {
		newQty := pos.Quantity + signedQty
		if newQty == 0 {
			b.cash += pos.Quantity * sig.Price
			delete(b.positions, key)
			return core.Position{}, nil
		}
		// Extending a position moves the average entry; reducing keeps it.
		sameDirection := (pos.Quantity > 0) == (signedQty > 0)
		if sameDirection {
			pos.AveragePrice = (pos.AveragePrice*abs(pos.Quantity) + sig.Price*abs(signedQty)) /
				(abs(pos.Quantity) + abs(signedQty))
		}
		pos.Quantity = newQty
		pos.CurrentPrice = sig.Price
	}
	pos.UnrealizedPL = (pos.CurrentPrice - pos.AveragePrice) * pos.Quantity

	b.cash -= signedQty * sig.Price
	b.positions[key] = pos
	return pos, nil
}

// Mark updates one position's current price and unrealized P&L, and
// optionally its Greeks.
func (b *Book) Mark(key core.OptionKey, price float64, greeks *core.Greeks) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[key]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPL = (price - pos.AveragePrice) * pos.Quantity
	if greeks != nil {
		pos.Greeks = *greeks
	}
	b.positions[key] = pos
}

// Get returns the position for a key.
func (b *Book) Get(key core.OptionKey) (core.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pos, ok := b.positions[key]
	return pos, ok
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Cash returns the free cash balance.
func (b *Book) Cash() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cash
}

// Value returns cash plus the marked value of all positions.
func (b *Book) Value() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := b.cash
	for _, pos := range b.positions {
		total += pos.MarketValue()
	}
	return total
}

// Snapshot returns a consistent copy of all positions, ordered for
// deterministic iteration.
func (b *Book) Snapshot() []core.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if out[i].Strike != out[j].Strike {
			return out[i].Strike < out[j].Strike
		}
		if !out[i].Expiration.Equal(out[j].Expiration) {
			return out[i].Expiration.Before(out[j].Expiration)
		}
		return !out[i].IsCall && out[j].IsCall
	})
	return out
}

func signalKey(sig core.Signal) core.OptionKey {
	if !sig.Kind.IsOption() && sig.Kind != core.SignalClosePosition {
		return core.OptionKey{Symbol: sig.Symbol}
	}
	if sig.Kind == core.SignalClosePosition && sig.Strike == 0 && sig.Expiration.IsZero() {
		return core.OptionKey{Symbol: sig.Symbol}
	}
	return core.OptionKey{Symbol: sig.Symbol, Strike: sig.Strike, Expiration: sig.Expiration, IsCall: sig.IsCall}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
