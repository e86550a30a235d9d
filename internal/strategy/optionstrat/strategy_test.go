package optionstrat

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/indicator"
	"github.com/newthinker/quantcore/internal/strategy"
)

func optCfg(t core.StrategyType) core.StrategyConfig {
	return core.StrategyConfig{
		Type:    t,
		Name:    "opt-" + string(t),
		Symbols: []string{"AAPL"},
		Enabled: true,
	}
}

func chainWithIV(iv float64) *Chain {
	strikes := []float64{140, 145, 150, 155, 160}
	ivs := make(map[float64]float64, len(strikes))
	for _, k := range strikes {
		ivs[k] = iv
	}
	return &Chain{
		Underlying:  "AAPL",
		Expiration:  time.Now().AddDate(0, 1, 0),
		Strikes:     strikes,
		ImpliedVols: ivs,
	}
}

func optCtx(price float64, rsi float64) strategy.Context {
	return strategy.Context{
		Tick:       core.Tick{Symbol: "AAPL", Price: price, Volume: 1000, Time: time.Now()},
		Indicators: indicator.Snapshot{Symbol: "AAPL", RSI: rsi, RSIReady: rsi > 0},
	}
}

func TestStraddle_LowIV(t *testing.T) {
	s := New(optCfg(core.StrategyStraddle))
	s.SetChain(chainWithIV(0.18))

	signals, err := s.GenerateSignals([]strategy.Context{optCtx(151, 50)})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 2 {
		t.Fatalf("straddle should emit 2 legs, got %d", len(signals))
	}

	call, put := signals[0], signals[1]
	if call.Kind != core.SignalBuyCall || put.Kind != core.SignalBuyPut {
		t.Errorf("legs = %s / %s", call.Kind, put.Kind)
	}
	// ATM strike: closest listed strike to spot 151.
	if call.Strike != 150 || put.Strike != 150 {
		t.Errorf("ATM strikes = %f / %f, want 150", call.Strike, put.Strike)
	}
	if !call.IsCall || put.IsCall {
		t.Error("is-call flags wrong")
	}
	if call.Price <= 0 || put.Price <= 0 {
		t.Error("legs should carry model marks")
	}
}

func TestStraddle_HighIVSuppressed(t *testing.T) {
	s := New(optCfg(core.StrategyStraddle))
	s.SetChain(chainWithIV(0.35))

	signals, _ := s.GenerateSignals([]strategy.Context{optCtx(151, 50)})
	if len(signals) != 0 {
		t.Errorf("high IV should suppress the straddle, got %d legs", len(signals))
	}
}

func TestStrangle_OTMWings(t *testing.T) {
	s := New(optCfg(core.StrategyStrangle))
	s.SetChain(chainWithIV(0.18))

	signals, _ := s.GenerateSignals([]strategy.Context{optCtx(100, 50)})
	if len(signals) != 2 {
		t.Fatalf("strangle should emit 2 legs, got %d", len(signals))
	}
	if math.Abs(signals[0].Strike-105) > 1e-9 {
		t.Errorf("call wing at %f, want 105", signals[0].Strike)
	}
	if math.Abs(signals[1].Strike-95) > 1e-9 {
		t.Errorf("put wing at %f, want 95", signals[1].Strike)
	}
	if signals[0].Confidence != 0.70 {
		t.Errorf("confidence %f, want 0.70", signals[0].Confidence)
	}
}

func TestCoveredCall_RequiresStockAndRSI(t *testing.T) {
	s := New(optCfg(core.StrategyCoveredCall))

	// No stock: nothing.
	signals, _ := s.GenerateSignals([]strategy.Context{optCtx(100, 65)})
	if len(signals) != 0 {
		t.Fatalf("no stock, no covered call: got %d", len(signals))
	}

	s.UpdatePosition(core.Position{Symbol: "AAPL", Quantity: 100, CurrentPrice: 100})

	// Stock held but RSI neutral: nothing.
	signals, _ = s.GenerateSignals([]strategy.Context{optCtx(100, 50)})
	if len(signals) != 0 {
		t.Fatalf("RSI below 60 should suppress, got %d", len(signals))
	}

	// Stock held, slightly overbought: sell the 3% OTM call.
	signals, _ = s.GenerateSignals([]strategy.Context{optCtx(100, 65)})
	if len(signals) != 1 {
		t.Fatalf("expected 1 leg, got %d", len(signals))
	}
	if signals[0].Kind != core.SignalSellCall {
		t.Errorf("kind %s, want SELL_CALL", signals[0].Kind)
	}
	if math.Abs(signals[0].Strike-103) > 1e-9 {
		t.Errorf("strike %f, want 103", signals[0].Strike)
	}
	if signals[0].Confidence != 0.80 {
		t.Errorf("confidence %f, want 0.80", signals[0].Confidence)
	}
}

func TestProtectivePut_RequiresStockAndHighIV(t *testing.T) {
	s := New(optCfg(core.StrategyProtectivePut))
	s.SetChain(chainWithIV(0.35))
	s.UpdatePosition(core.Position{Symbol: "AAPL", Quantity: 100, CurrentPrice: 100})

	signals, _ := s.GenerateSignals([]strategy.Context{optCtx(100, 50)})
	if len(signals) != 1 {
		t.Fatalf("expected 1 leg, got %d", len(signals))
	}
	if signals[0].Kind != core.SignalBuyPut || math.Abs(signals[0].Strike-95) > 1e-9 {
		t.Errorf("want BUY_PUT@95, got %s@%f", signals[0].Kind, signals[0].Strike)
	}
	if signals[0].Confidence != 0.85 {
		t.Errorf("confidence %f, want 0.85", signals[0].Confidence)
	}

	// Calm vol: insurance not bought.
	s2 := New(optCfg(core.StrategyProtectivePut))
	s2.SetChain(chainWithIV(0.15))
	s2.UpdatePosition(core.Position{Symbol: "AAPL", Quantity: 100})
	signals, _ = s2.GenerateSignals([]strategy.Context{optCtx(100, 50)})
	if len(signals) != 0 {
		t.Errorf("low IV should suppress the protective put, got %d", len(signals))
	}
}

func TestIronCondor_FourLegs(t *testing.T) {
	s := New(optCfg(core.StrategyIronCondor))
	s.SetChain(chainWithIV(0.35))

	signals, _ := s.GenerateSignals([]strategy.Context{optCtx(100, 50)})
	if len(signals) != 4 {
		t.Fatalf("iron condor should emit 4 legs, got %d", len(signals))
	}

	wantKinds := []core.SignalKind{core.SignalSellCall, core.SignalSellPut, core.SignalBuyCall, core.SignalBuyPut}
	wantStrikes := []float64{101, 99, 105, 95}
	for i, sig := range signals {
		if sig.Kind != wantKinds[i] {
			t.Errorf("leg %d kind %s, want %s", i, sig.Kind, wantKinds[i])
		}
		if math.Abs(sig.Strike-wantStrikes[i]) > 1e-9 {
			t.Errorf("leg %d strike %f, want %f", i, sig.Strike, wantStrikes[i])
		}
	}

	// Trending tape (RSI 70) suppresses the condor.
	signals, _ = s.GenerateSignals([]strategy.Context{optCtx(100, 70)})
	if len(signals) != 0 {
		t.Errorf("trending RSI should suppress, got %d", len(signals))
	}
}

func TestButterfly_MiddleLegDoubled(t *testing.T) {
	s := New(optCfg(core.StrategyButterfly))

	signals, _ := s.GenerateSignals([]strategy.Context{optCtx(100, 50)})
	if len(signals) != 3 {
		t.Fatalf("butterfly should emit 3 legs, got %d", len(signals))
	}

	body := signals[1]
	if body.Kind != core.SignalSellCall {
		t.Errorf("body kind %s, want SELL_CALL", body.Kind)
	}
	if body.Quantity != 2 {
		t.Errorf("body quantity %f, want 2 contracts", body.Quantity)
	}
	if signals[0].Quantity != 1 || signals[2].Quantity != 1 {
		t.Error("wings should be single contracts")
	}
	if math.Abs(signals[0].Strike-97) > 1e-9 || math.Abs(signals[2].Strike-103) > 1e-9 {
		t.Errorf("wings at %f / %f, want 97 / 103", signals[0].Strike, signals[2].Strike)
	}

	// All legs are calls.
	for i, sig := range signals {
		if !sig.IsCall {
			t.Errorf("leg %d should be a call", i)
		}
	}

	// Outside the neutral band nothing fires.
	signals, _ = s.GenerateSignals([]strategy.Context{optCtx(100, 60)})
	if len(signals) != 0 {
		t.Errorf("non-neutral RSI should suppress, got %d", len(signals))
	}
}

func TestChain_Helpers(t *testing.T) {
	c := chainWithIV(0.22)

	if atm, ok := c.ATMStrike(152.4); !ok || atm != 150 {
		t.Errorf("ATM = %f/%v, want 150", atm, ok)
	}
	if mean, ok := c.MeanIV(); !ok || math.Abs(mean-0.22) > 1e-12 {
		t.Errorf("mean IV = %f/%v, want 0.22", mean, ok)
	}
	if iv, ok := c.IVAt(149); !ok || iv != 0.22 {
		t.Errorf("IVAt = %f/%v", iv, ok)
	}

	var nilChain *Chain
	if _, ok := nilChain.MeanIV(); ok {
		t.Error("nil chain should report no IV")
	}
	if _, ok := nilChain.ATMStrike(100); ok {
		t.Error("nil chain should report no ATM strike")
	}
}

func TestCalculateRisk_Mix(t *testing.T) {
	s := New(optCfg(core.StrategyStraddle))

	positions := []core.Position{
		{Symbol: "AAPL", Quantity: 2, AveragePrice: 5, IsOption: true},                   // long premium: 10
		{Symbol: "AAPL", Quantity: -1, CurrentPrice: 4, IsOption: true},                  // short: 8
		{Symbol: "AAPL", Quantity: 100, CurrentPrice: 50},                                // stock: 1000
	}
	risk := s.CalculateRisk(positions)
	if math.Abs(risk-(10+8+1000)) > 1e-9 {
		t.Errorf("risk = %f, want 1018", risk)
	}
}
