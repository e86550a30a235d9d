// Package momentum implements a dual-horizon momentum strategy with
// breakout and mean-reversion overlays.
package momentum

import (
	"math"

	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/indicator"
	"github.com/newthinker/quantcore/internal/strategy"
)

// Lookback horizons.
const (
	shortLookback = 5
	longLookback  = 20
	volLookback   = 20
	minHistory    = 20
	breakoutVolume = 1000.0
)

// Strategy trades short- vs long-horizon momentum, Bollinger breakouts
// and post-extreme mean reversion. It keeps a bounded price history per
// symbol, independent of the shared indicator frames.
type Strategy struct {
	cfg       core.StrategyConfig
	history   map[string]*indicator.PriceHistory
	positions map[core.OptionKey]core.Position
}

// New creates a momentum strategy from its configuration.
func New(cfg core.StrategyConfig) *Strategy {
	if cfg.Type == "" {
		cfg.Type = core.StrategyMomentum
	}
	return &Strategy{
		cfg:       cfg,
		history:   make(map[string]*indicator.PriceHistory),
		positions: make(map[core.OptionKey]core.Position),
	}
}

func (s *Strategy) Name() string { return s.cfg.Name }

func (s *Strategy) Config() core.StrategyConfig { return s.cfg }

// GenerateSignals applies the momentum decision tree per symbol:
// trend-following first, then breakout, then mean reversion. First
// match wins.
func (s *Strategy) GenerateSignals(ctxs []strategy.Context) ([]core.Signal, error) {
	momentumThreshold := s.cfg.Param("momentum_threshold", 0.02)
	volatilityThreshold := s.cfg.Param("volatility_threshold", 0.03)
	rsiOverbought := s.cfg.Param("rsi_overbought", 70)
	rsiOversold := s.cfg.Param("rsi_oversold", 30)

	var signals []core.Signal

	for _, ctx := range ctxs {
		tick := ctx.Tick
		if !tick.IsValid() {
			continue
		}

		h, ok := s.history[tick.Symbol]
		if !ok {
			h = indicator.NewPriceHistory(indicator.DefaultHistoryCap)
			s.history[tick.Symbol] = h
		}
		h.Push(tick.Time, tick.Price)

		if h.Len() < minHistory {
			continue
		}

		shortMomentum, okShort := h.Momentum(shortLookback)
		longMomentum, okLong := h.Momentum(longLookback)
		volatility, okVol := h.ReturnsStdDev(volLookback)
		if !okShort {
			continue
		}
		if !okLong {
			// Long horizon warms a point later than minHistory; treat
			// the full stored span as the long lookback until then.
			longMomentum, okLong = h.Momentum(h.Len() - 1)
			if !okLong {
				continue
			}
		}
		if !okVol {
			volatility, okVol = h.ReturnsStdDev(h.Len() - 1)
			if !okVol {
				continue
			}
		}

		ind := ctx.Indicators

		switch {
		// Strong upward momentum, calm tape, not overbought.
		case shortMomentum > momentumThreshold && longMomentum > 0 && volatility < volatilityThreshold &&
			!(ind.RSIReady && ind.RSI >= rsiOverbought):
			confidence := math.Min(0.95, 0.5+shortMomentum*10)
			signals = append(signals, s.signal(tick, core.SignalBuy, confidence, "strong upward momentum"))

		// Strong downward momentum, not oversold.
		case shortMomentum < -momentumThreshold && longMomentum < 0 && volatility < volatilityThreshold &&
			!(ind.RSIReady && ind.RSI <= rsiOversold):
			confidence := math.Min(0.95, 0.5+math.Abs(shortMomentum)*10)
			signals = append(signals, s.signal(tick, core.SignalSell, confidence, "strong downward momentum"))

		// Bollinger breakout with volume confirmation.
		case ind.BollingerReady && tick.Price > ind.BollingerUpper && tick.Volume > breakoutVolume:
			signals = append(signals, s.signal(tick, core.SignalBuy, 0.75, "bollinger breakout (upper)"))

		case ind.BollingerReady && tick.Price < ind.BollingerLower && tick.Volume > breakoutVolume:
			signals = append(signals, s.signal(tick, core.SignalSell, 0.75, "bollinger breakout (lower)"))

		// Mean reversion after an extreme move on a volatile tape.
		case math.Abs(shortMomentum) > 2*momentumThreshold && volatility > volatilityThreshold &&
			shortMomentum > 0 && ind.RSIReady && ind.RSI > 80:
			signals = append(signals, s.signal(tick, core.SignalSell, 0.65, "mean reversion after extreme upward momentum"))

		case math.Abs(shortMomentum) > 2*momentumThreshold && volatility > volatilityThreshold &&
			shortMomentum < 0 && ind.RSIReady && ind.RSI < 20:
			signals = append(signals, s.signal(tick, core.SignalBuy, 0.65, "mean reversion after extreme downward momentum"))
		}
	}

	return signals, nil
}

// UpdatePosition records a position change attributed to this strategy.
func (s *Strategy) UpdatePosition(pos core.Position) {
	if pos.Quantity == 0 {
		delete(s.positions, pos.Key())
		return
	}
	s.positions[pos.Key()] = pos
}

// CalculateRisk sizes each position's value by its recent volatility.
func (s *Strategy) CalculateRisk(positions []core.Position) float64 {
	var total float64
	for _, pos := range positions {
		h, ok := s.history[pos.Symbol]
		if !ok {
			continue
		}
		vol, ok := h.ReturnsStdDev(volLookback)
		if !ok {
			continue
		}
		total += math.Abs(pos.Quantity*pos.CurrentPrice) * vol
	}
	return total
}

func (s *Strategy) signal(tick core.Tick, kind core.SignalKind, confidence float64, reason string) core.Signal {
	return core.Signal{
		Strategy:   s.cfg.Name,
		Symbol:     tick.Symbol,
		Kind:       kind,
		Price:      tick.Price,
		Quantity:   s.cfg.MaxPositionSize,
		Confidence: confidence,
		Reason:     reason,
		Time:       tick.Time,
	}
}
