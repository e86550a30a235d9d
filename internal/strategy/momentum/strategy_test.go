package momentum

import (
	"testing"
	"time"

	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/indicator"
	"github.com/newthinker/quantcore/internal/strategy"
)

func cfg() core.StrategyConfig {
	return core.StrategyConfig{
		Type:            core.StrategyMomentum,
		Name:            "momentum-1",
		Symbols:         []string{"AAPL"},
		Enabled:         true,
		MaxPositionSize: 100,
		Params: map[string]float64{
			"momentum_threshold":   0.02,
			"volatility_threshold": 0.03,
		},
	}
}

// feed pushes the price series through the strategy one tick at a time
// and returns the signals from the final tick.
func feed(s *Strategy, prices []float64, volume float64, rsi float64) []core.Signal {
	base := time.Now()
	var last []core.Signal
	for i, p := range prices {
		ctx := strategy.Context{
			Tick: core.Tick{
				Symbol: "AAPL",
				Price:  p,
				Volume: volume,
				Time:   base.Add(time.Duration(i) * time.Second),
			},
			Indicators: indicator.Snapshot{Symbol: "AAPL", RSI: rsi, RSIReady: rsi > 0},
		}
		last, _ = s.GenerateSignals([]strategy.Context{ctx})
	}
	return last
}

func TestMomentum_BuyTrigger(t *testing.T) {
	s := New(cfg())

	// 20 flat prices, then a +3%/tick rise: strong short momentum on a
	// calm tape with RSI below overbought.
	prices := make([]float64, 25)
	for i := 0; i < 20; i++ {
		prices[i] = 100
	}
	for i := 20; i < 25; i++ {
		prices[i] = prices[i-1] * 1.03
	}

	signals := feed(s, prices, 2000, 55)
	if len(signals) != 1 {
		t.Fatalf("expected exactly 1 signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Kind != core.SignalBuy {
		t.Errorf("kind = %s, want BUY", sig.Kind)
	}
	if sig.Confidence < 0.8 {
		t.Errorf("confidence = %f, want >= 0.8", sig.Confidence)
	}
	if sig.Quantity != 100 {
		t.Errorf("quantity = %f, want max position size 100", sig.Quantity)
	}
	if sig.Symbol != "AAPL" || sig.Strategy != "momentum-1" {
		t.Errorf("identity wrong: %+v", sig)
	}
}

func TestMomentum_SellTrigger(t *testing.T) {
	s := New(cfg())

	prices := make([]float64, 25)
	for i := 0; i < 20; i++ {
		prices[i] = 100
	}
	for i := 20; i < 25; i++ {
		prices[i] = prices[i-1] * 0.97
	}

	signals := feed(s, prices, 2000, 50)
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if signals[0].Kind != core.SignalSell {
		t.Errorf("kind = %s, want SELL", signals[0].Kind)
	}
}

func TestMomentum_OverboughtSuppressesBuy(t *testing.T) {
	s := New(cfg())

	prices := make([]float64, 25)
	for i := 0; i < 20; i++ {
		prices[i] = 100
	}
	for i := 20; i < 25; i++ {
		prices[i] = prices[i-1] * 1.03
	}

	// RSI at 75: trend-following BUY suppressed. The tape is also too
	// calm for mean reversion, so nothing fires.
	signals := feed(s, prices, 500, 75)
	for _, sig := range signals {
		if sig.Kind == core.SignalBuy && sig.Confidence > 0.7 {
			t.Errorf("overbought tape should not emit trend BUY: %+v", sig)
		}
	}
}

func TestMomentum_WarmupGate(t *testing.T) {
	s := New(cfg())

	prices := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109}
	signals := feed(s, prices, 2000, 50)
	if len(signals) != 0 {
		t.Errorf("under 20 points must not signal, got %d", len(signals))
	}
}

func TestMomentum_BollingerBreakout(t *testing.T) {
	s := New(cfg())

	prices := make([]float64, 24)
	for i := range prices {
		prices[i] = 100
	}

	base := time.Now()
	for i, p := range prices {
		ctx := strategy.Context{
			Tick:       core.Tick{Symbol: "AAPL", Price: p, Volume: 2000, Time: base.Add(time.Duration(i) * time.Second)},
			Indicators: indicator.Snapshot{Symbol: "AAPL", RSI: 50, RSIReady: true},
		}
		s.GenerateSignals([]strategy.Context{ctx})
	}

	// Price pops above the upper band on heavy volume, but the move is
	// small enough (+1%) to stay under the momentum threshold.
	ctx := strategy.Context{
		Tick: core.Tick{Symbol: "AAPL", Price: 101, Volume: 5000, Time: base.Add(30 * time.Second)},
		Indicators: indicator.Snapshot{
			Symbol: "AAPL", RSI: 50, RSIReady: true,
			BollingerUpper: 100.5, BollingerLower: 99.5, BollingerReady: true,
		},
	}
	signals, err := s.GenerateSignals([]strategy.Context{ctx})
	if err != nil {
		t.Fatal(err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected breakout signal, got %d", len(signals))
	}
	if signals[0].Kind != core.SignalBuy || signals[0].Confidence != 0.75 {
		t.Errorf("breakout should be BUY at 0.75, got %+v", signals[0])
	}
	if signals[0].Reason == "" {
		t.Error("breakout signal should carry a reason")
	}
}

func TestMomentum_LowVolumeNoBreakout(t *testing.T) {
	s := New(cfg())

	prices := make([]float64, 24)
	for i := range prices {
		prices[i] = 100
	}
	feed(s, prices, 500, 50)

	ctx := strategy.Context{
		Tick: core.Tick{Symbol: "AAPL", Price: 101, Volume: 500, Time: time.Now()},
		Indicators: indicator.Snapshot{
			Symbol: "AAPL", RSI: 50, RSIReady: true,
			BollingerUpper: 100.5, BollingerLower: 99.5, BollingerReady: true,
		},
	}
	signals, _ := s.GenerateSignals([]strategy.Context{ctx})
	if len(signals) != 0 {
		t.Errorf("thin-volume breakout must not signal, got %+v", signals)
	}
}

func TestMomentum_MeanReversion(t *testing.T) {
	s := New(cfg())

	// Choppy tape to raise realized vol, then an extreme up-spike with
	// RSI above 80.
	prices := make([]float64, 24)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 100
		} else {
			prices[i] = 104
		}
	}
	feed(s, prices, 500, 50)

	base := time.Now()
	ctx := strategy.Context{
		Tick:       core.Tick{Symbol: "AAPL", Price: 112, Volume: 500, Time: base},
		Indicators: indicator.Snapshot{Symbol: "AAPL", RSI: 85, RSIReady: true},
	}
	signals, _ := s.GenerateSignals([]strategy.Context{ctx})
	if len(signals) != 1 {
		t.Fatalf("expected reversion signal, got %d", len(signals))
	}
	if signals[0].Kind != core.SignalSell || signals[0].Confidence != 0.65 {
		t.Errorf("reversion should be SELL at 0.65, got %+v", signals[0])
	}
}

func TestMomentum_CalculateRisk(t *testing.T) {
	s := New(cfg())

	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 100 + float64(i%3)
	}
	feed(s, prices, 500, 50)

	positions := []core.Position{{Symbol: "AAPL", Quantity: 100, CurrentPrice: 100}}
	risk := s.CalculateRisk(positions)
	if risk <= 0 {
		t.Errorf("risk should be positive for a tracked symbol, got %f", risk)
	}

	unknown := []core.Position{{Symbol: "ZZZ", Quantity: 100, CurrentPrice: 100}}
	if got := s.CalculateRisk(unknown); got != 0 {
		t.Errorf("unknown symbol contributes no measured risk, got %f", got)
	}
}

func TestMomentum_UpdatePosition(t *testing.T) {
	s := New(cfg())

	pos := core.Position{Symbol: "AAPL", Quantity: 100, CurrentPrice: 100}
	s.UpdatePosition(pos)
	if len(s.positions) != 1 {
		t.Fatal("position not tracked")
	}

	pos.Quantity = 0
	s.UpdatePosition(pos)
	if len(s.positions) != 0 {
		t.Error("zero quantity should drop the position")
	}
}
