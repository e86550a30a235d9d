package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTick_IsValid(t *testing.T) {
	valid := Tick{Symbol: "AAPL", Price: 150.0}
	if !valid.IsValid() {
		t.Error("expected valid tick")
	}

	if (Tick{Price: 150.0}).IsValid() {
		t.Error("empty symbol should be invalid")
	}
	if (Tick{Symbol: "AAPL"}).IsValid() {
		t.Error("zero price should be invalid")
	}
}

func TestSignalKind_IsOption(t *testing.T) {
	options := []SignalKind{SignalBuyCall, SignalSellCall, SignalBuyPut, SignalSellPut}
	for _, k := range options {
		if !k.IsOption() {
			t.Errorf("%s should be an option kind", k)
		}
	}
	for _, k := range []SignalKind{SignalBuy, SignalSell, SignalHold, SignalClosePosition} {
		if k.IsOption() {
			t.Errorf("%s should not be an option kind", k)
		}
	}
}

func TestSignal_Validate(t *testing.T) {
	base := Signal{
		Strategy:   "momentum",
		Symbol:     "AAPL",
		Kind:       SignalBuy,
		Price:      150,
		Quantity:   100,
		Confidence: 0.8,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid signal rejected: %v", err)
	}

	nan := base
	nan.Confidence = math.NaN()
	if err := nan.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("NaN confidence should fail with INVALID_PARAMS, got %v", err)
	}

	zeroQty := base
	zeroQty.Quantity = 0
	if err := zeroQty.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("zero quantity should fail, got %v", err)
	}

	hold := base
	hold.Kind = SignalHold
	hold.Quantity = 0
	if err := hold.Validate(); err != nil {
		t.Errorf("HOLD permits zero quantity, got %v", err)
	}

	empty := base
	empty.Symbol = ""
	if err := empty.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("empty symbol should fail, got %v", err)
	}
}

func TestPosition_Key(t *testing.T) {
	exp := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	stock := Position{Symbol: "AAPL", Quantity: 100}
	if stock.Key() != (OptionKey{Symbol: "AAPL"}) {
		t.Error("stock position should key on symbol alone")
	}

	call := Position{Symbol: "AAPL", Quantity: 1, IsOption: true, Strike: 155, Expiration: exp, IsCall: true}
	put := Position{Symbol: "AAPL", Quantity: 1, IsOption: true, Strike: 155, Expiration: exp, IsCall: false}
	if call.Key() == put.Key() {
		t.Error("call and put at same strike must not collide")
	}
	if !call.Key().IsOption() {
		t.Error("option key should report IsOption")
	}
}

func TestPosition_MarketValue(t *testing.T) {
	short := Position{Symbol: "TSLA", Quantity: -50, CurrentPrice: 200}
	if short.MarketValue() != -10000 {
		t.Errorf("expected -10000, got %f", short.MarketValue())
	}
}

func TestStrategyConfig_Param(t *testing.T) {
	cfg := StrategyConfig{Params: map[string]float64{"momentum_threshold": 0.05}}
	if got := cfg.Param("momentum_threshold", 0.02); got != 0.05 {
		t.Errorf("expected configured value, got %f", got)
	}
	if got := cfg.Param("volatility_threshold", 0.03); got != 0.03 {
		t.Errorf("expected default, got %f", got)
	}
}
