package portfolio

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/quantcore/internal/core"
)

func buySignal(symbol string, qty, price float64) core.Signal {
	return core.Signal{
		Strategy: "t", Symbol: symbol, Kind: core.SignalBuy,
		Price: price, Quantity: qty, Confidence: 0.9, Time: time.Now(),
	}
}

func TestBook_OpenAndAccumulate(t *testing.T) {
	b := NewBook(1_000_000)

	if _, err := b.Apply(buySignal("AAPL", 100, 150)); err != nil {
		t.Fatal(err)
	}
	pos, ok := b.Get(core.OptionKey{Symbol: "AAPL"})
	if !ok {
		t.Fatal("position not opened")
	}
	if pos.Quantity != 100 || pos.AveragePrice != 150 {
		t.Errorf("pos = %+v", pos)
	}

	// Extend at a higher price: average moves.
	if _, err := b.Apply(buySignal("AAPL", 100, 160)); err != nil {
		t.Fatal(err)
	}
	pos, _ = b.Get(core.OptionKey{Symbol: "AAPL"})
	if pos.Quantity != 200 || math.Abs(pos.AveragePrice-155) > 1e-9 {
		t.Errorf("pos after extension = %+v", pos)
	}

	// Cash decremented by both buys.
	wantCash := 1_000_000.0 - 100*150 - 100*160
	if math.Abs(b.Cash()-wantCash) > 1e-9 {
		t.Errorf("cash %f, want %f", b.Cash(), wantCash)
	}
}

func TestBook_SellReducesAndFlips(t *testing.T) {
	b := NewBook(1_000_000)
	if _, err := b.Apply(buySignal("AAPL", 100, 150)); err != nil {
		t.Fatal(err)
	}

	sell := buySignal("AAPL", 40, 155)
	sell.Kind = core.SignalSell
	if _, err := b.Apply(sell); err != nil {
		t.Fatal(err)
	}

	pos, _ := b.Get(core.OptionKey{Symbol: "AAPL"})
	if pos.Quantity != 60 {
		t.Errorf("quantity %f, want 60", pos.Quantity)
	}
	// Reducing keeps the entry basis.
	if pos.AveragePrice != 150 {
		t.Errorf("reduce should keep average, got %f", pos.AveragePrice)
	}

	// Sell the rest: position closes.
	sell.Quantity = 60
	if _, err := b.Apply(sell); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Error("position should be gone after aggregating to zero")
	}
}

func TestBook_ShortPosition(t *testing.T) {
	b := NewBook(1_000_000)

	sell := buySignal("TSLA", 50, 200)
	sell.Kind = core.SignalSell
	if _, err := b.Apply(sell); err != nil {
		t.Fatal(err)
	}

	pos, ok := b.Get(core.OptionKey{Symbol: "TSLA"})
	if !ok || pos.Quantity != -50 {
		t.Fatalf("short position = %+v", pos)
	}

	// Shorting credits cash.
	if b.Cash() != 1_000_000+50*200 {
		t.Errorf("cash %f", b.Cash())
	}
}

func TestBook_OptionKeying(t *testing.T) {
	b := NewBook(1_000_000)
	exp := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)

	callBuy := core.Signal{
		Strategy: "t", Symbol: "AAPL", Kind: core.SignalBuyCall,
		Price: 5.0, Quantity: 1, Confidence: 0.8, Time: time.Now(),
		Strike: 155, Expiration: exp, IsCall: true,
	}
	putBuy := callBuy
	putBuy.Kind = core.SignalBuyPut
	putBuy.IsCall = false
	putBuy.Price = 4.0

	stockBuy := buySignal("AAPL", 100, 150)

	for _, sig := range []core.Signal{callBuy, putBuy, stockBuy} {
		if _, err := b.Apply(sig); err != nil {
			t.Fatal(err)
		}
	}

	// Three distinct positions: call, put, stock.
	if b.Len() != 3 {
		t.Fatalf("expected 3 positions, got %d", b.Len())
	}

	callPos, ok := b.Get(core.OptionKey{Symbol: "AAPL", Strike: 155, Expiration: exp, IsCall: true})
	if !ok || !callPos.IsOption {
		t.Error("call position missing or not marked as option")
	}
}

func TestBook_ClosePosition(t *testing.T) {
	b := NewBook(1_000_000)
	if _, err := b.Apply(buySignal("AAPL", 100, 150)); err != nil {
		t.Fatal(err)
	}

	closeSig := core.Signal{
		Strategy: "t", Symbol: "AAPL", Kind: core.SignalClosePosition,
		Price: 160, Quantity: 1, Confidence: 1, Time: time.Now(),
	}
	if _, err := b.Apply(closeSig); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Error("CLOSE_POSITION should remove the position")
	}
	// Proceeds at the close price.
	if b.Cash() != 1_000_000-100*150+100*160 {
		t.Errorf("cash %f", b.Cash())
	}

	if _, err := b.Apply(closeSig); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("closing a missing position should be NOT_FOUND, got %v", err)
	}
}

func TestBook_HoldNoop(t *testing.T) {
	b := NewBook(500)
	hold := core.Signal{Strategy: "t", Symbol: "AAPL", Kind: core.SignalHold, Confidence: 0.7, Time: time.Now()}
	if _, err := b.Apply(hold); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 || b.Cash() != 500 {
		t.Error("HOLD must not touch the book")
	}
}

func TestBook_MarkToMarket(t *testing.T) {
	b := NewBook(1_000_000)
	if _, err := b.Apply(buySignal("AAPL", 100, 150)); err != nil {
		t.Fatal(err)
	}

	key := core.OptionKey{Symbol: "AAPL"}
	greeks := &core.Greeks{Delta: 1}
	b.Mark(key, 155, greeks)

	pos, _ := b.Get(key)
	if pos.CurrentPrice != 155 {
		t.Errorf("current price %f", pos.CurrentPrice)
	}
	if math.Abs(pos.UnrealizedPL-500) > 1e-9 {
		t.Errorf("unrealized %f, want 500", pos.UnrealizedPL)
	}
	if pos.Greeks.Delta != 1 {
		t.Error("greeks not attached")
	}

	// Marking an unknown key is a no-op.
	b.Mark(core.OptionKey{Symbol: "ZZZ"}, 1, nil)
}

func TestBook_ValueAndSnapshot(t *testing.T) {
	b := NewBook(1_000_000)
	if _, err := b.Apply(buySignal("AAPL", 100, 150)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Apply(buySignal("TSLA", 50, 200)); err != nil {
		t.Fatal(err)
	}

	// Value = cash + sum of market values; flat marks mean value is
	// unchanged from starting capital.
	if math.Abs(b.Value()-1_000_000) > 1e-9 {
		t.Errorf("value %f, want 1000000", b.Value())
	}

	b.Mark(core.OptionKey{Symbol: "AAPL"}, 160, nil)
	if math.Abs(b.Value()-1_001_000) > 1e-9 {
		t.Errorf("value %f after mark, want 1001000", b.Value())
	}

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len %d", len(snap))
	}
	if snap[0].Symbol != "AAPL" || snap[1].Symbol != "TSLA" {
		t.Error("snapshot should be ordered by symbol")
	}

	// Mutating the snapshot must not affect the book.
	snap[0].Quantity = 0
	pos, _ := b.Get(core.OptionKey{Symbol: "AAPL"})
	if pos.Quantity != 100 {
		t.Error("snapshot aliases book state")
	}
}

func TestBook_RejectsInvalidSignal(t *testing.T) {
	b := NewBook(1000)
	bad := buySignal("AAPL", -5, 100)
	if _, err := b.Apply(bad); !errors.Is(err, core.ErrInvalidParams) {
		t.Errorf("negative quantity should fail, got %v", err)
	}
}
