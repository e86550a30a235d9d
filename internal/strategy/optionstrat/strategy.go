// Package optionstrat implements multi-leg options strategies:
// straddle, strangle, covered call, protective put, iron condor and
// butterfly.
package optionstrat

import (
	"math"
	"sync"
	"time"

	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/options"
	"github.com/newthinker/quantcore/internal/strategy"
)

const (
	// Strike offsets as fractions of spot.
	nearOffset = 0.01 // iron condor short legs
	wingOffset = 0.03 // butterfly wings, covered call
	farOffset  = 0.05 // strangle, protective put, condor wings

	// Chain IV classification threshold.
	highIVThreshold = 0.25

	// Pricing fallbacks when the chain is silent.
	placeholderVol    = 0.20
	placeholderRate   = 0.05
	defaultExpiryDays = 30
)

// Strategy dispatches on its configured type to emit multi-leg option
// signals. Chains are fed in from options ingress; missing chain data
// falls back to computed strikes and a placeholder vol.
type Strategy struct {
	cfg core.StrategyConfig

	// chains arrive from the feed goroutine while the engine reads.
	chainMu sync.RWMutex
	chains  map[string]*Chain

	positions map[core.OptionKey]core.Position
}

// New creates an options strategy from its configuration.
func New(cfg core.StrategyConfig) *Strategy {
	return &Strategy{
		cfg:       cfg,
		chains:    make(map[string]*Chain),
		positions: make(map[core.OptionKey]core.Position),
	}
}

func (s *Strategy) Name() string { return s.cfg.Name }

func (s *Strategy) Config() core.StrategyConfig { return s.cfg }

// SetChain installs or replaces the option chain for an underlying.
// Safe to call from the feed goroutine.
func (s *Strategy) SetChain(c *Chain) {
	if c == nil || c.Underlying == "" {
		return
	}
	s.chainMu.Lock()
	s.chains[c.Underlying] = c
	s.chainMu.Unlock()
}

func (s *Strategy) chain(symbol string) *Chain {
	s.chainMu.RLock()
	defer s.chainMu.RUnlock()
	return s.chains[symbol]
}

// GenerateSignals emits the configured structure's legs for each symbol
// whose preconditions hold.
func (s *Strategy) GenerateSignals(ctxs []strategy.Context) ([]core.Signal, error) {
	var signals []core.Signal

	for _, ctx := range ctxs {
		if !ctx.Tick.IsValid() {
			continue
		}

		switch s.cfg.Type {
		case core.StrategyStraddle:
			signals = append(signals, s.straddle(ctx)...)
		case core.StrategyStrangle:
			signals = append(signals, s.strangle(ctx)...)
		case core.StrategyCoveredCall:
			signals = append(signals, s.coveredCall(ctx)...)
		case core.StrategyProtectivePut:
			signals = append(signals, s.protectivePut(ctx)...)
		case core.StrategyIronCondor:
			signals = append(signals, s.ironCondor(ctx)...)
		case core.StrategyButterfly:
			signals = append(signals, s.butterfly(ctx)...)
		}
	}

	return signals, nil
}

// straddle buys a call and a put at the ATM strike when implied vol is
// cheap: long volatility, direction-agnostic.
func (s *Strategy) straddle(ctx strategy.Context) []core.Signal {
	if s.isHighIV(ctx.Tick.Symbol) {
		return nil
	}
	spot := ctx.Tick.Price
	atm := s.atmStrike(ctx.Tick.Symbol, spot)

	return []core.Signal{
		s.leg(ctx, core.SignalBuyCall, atm, true, 0.75, "long straddle - expecting volatility increase", 1),
		s.leg(ctx, core.SignalBuyPut, atm, false, 0.75, "long straddle - expecting volatility increase", 1),
	}
}

// strangle buys OTM wings: cheaper than a straddle, needs a larger
// move.
func (s *Strategy) strangle(ctx strategy.Context) []core.Signal {
	if s.isHighIV(ctx.Tick.Symbol) {
		return nil
	}
	spot := ctx.Tick.Price

	return []core.Signal{
		s.leg(ctx, core.SignalBuyCall, spot*(1+farOffset), true, 0.70, "long strangle - expecting large price movement", 1),
		s.leg(ctx, core.SignalBuyPut, spot*(1-farOffset), false, 0.70, "long strangle - expecting large price movement", 1),
	}
}

// coveredCall sells an OTM call against held stock when slightly
// overbought.
func (s *Strategy) coveredCall(ctx strategy.Context) []core.Signal {
	if !s.ownsStock(ctx.Tick.Symbol) {
		return nil
	}
	if !ctx.Indicators.RSIReady || ctx.Indicators.RSI <= 60 {
		return nil
	}
	spot := ctx.Tick.Price

	return []core.Signal{
		s.leg(ctx, core.SignalSellCall, spot*(1+wingOffset), true, 0.80, "covered call - generate income from stock position", 1),
	}
}

// protectivePut insures held stock when implied vol is elevated.
func (s *Strategy) protectivePut(ctx strategy.Context) []core.Signal {
	if !s.ownsStock(ctx.Tick.Symbol) || !s.isHighIV(ctx.Tick.Symbol) {
		return nil
	}
	spot := ctx.Tick.Price

	return []core.Signal{
		s.leg(ctx, core.SignalBuyPut, spot*(1-farOffset), false, 0.85, "protective put - hedge stock position", 1),
	}
}

// ironCondor sells a near strangle and buys far wings in a neutral,
// high-IV tape.
func (s *Strategy) ironCondor(ctx strategy.Context) []core.Signal {
	if !s.isHighIV(ctx.Tick.Symbol) {
		return nil
	}
	ind := ctx.Indicators
	if !ind.RSIReady || ind.RSI <= 40 || ind.RSI >= 60 {
		return nil
	}
	spot := ctx.Tick.Price

	return []core.Signal{
		s.leg(ctx, core.SignalSellCall, spot*(1+nearOffset), true, 0.75, "iron condor - sell near call", 1),
		s.leg(ctx, core.SignalSellPut, spot*(1-nearOffset), false, 0.75, "iron condor - sell near put", 1),
		s.leg(ctx, core.SignalBuyCall, spot*(1+farOffset), true, 0.75, "iron condor - buy call wing", 1),
		s.leg(ctx, core.SignalBuyPut, spot*(1-farOffset), false, 0.75, "iron condor - buy put wing", 1),
	}
}

// butterfly buys the wings and sells two ATM calls in a very neutral
// tape. The middle leg is a single signal with quantity 2.
func (s *Strategy) butterfly(ctx strategy.Context) []core.Signal {
	ind := ctx.Indicators
	if !ind.RSIReady || ind.RSI <= 45 || ind.RSI >= 55 {
		return nil
	}
	spot := ctx.Tick.Price

	return []core.Signal{
		s.leg(ctx, core.SignalBuyCall, spot*(1-wingOffset), true, 0.70, "butterfly - buy lower wing", 1),
		s.leg(ctx, core.SignalSellCall, spot, true, 0.70, "butterfly - sell body (2 contracts)", 2),
		s.leg(ctx, core.SignalBuyCall, spot*(1+wingOffset), true, 0.70, "butterfly - buy upper wing", 1),
	}
}

// UpdatePosition records a position change attributed to this strategy.
func (s *Strategy) UpdatePosition(pos core.Position) {
	if pos.Quantity == 0 {
		delete(s.positions, pos.Key())
		return
	}
	s.positions[pos.Key()] = pos
}

// CalculateRisk treats long option risk as premium at risk, short
// option risk as twice current mark, and stock at a flat 20% haircut.
func (s *Strategy) CalculateRisk(positions []core.Position) float64 {
	var total float64
	for _, pos := range positions {
		switch {
		case pos.IsOption && pos.Quantity > 0:
			total += pos.Quantity * pos.AveragePrice
		case pos.IsOption:
			total += math.Abs(pos.Quantity) * pos.CurrentPrice * 2
		default:
			total += math.Abs(pos.Quantity*pos.CurrentPrice) * 0.2
		}
	}
	return total
}

func (s *Strategy) isHighIV(symbol string) bool {
	if mean, ok := s.chain(symbol).MeanIV(); ok {
		return mean > highIVThreshold
	}
	return false
}

func (s *Strategy) ownsStock(symbol string) bool {
	pos, ok := s.positions[core.OptionKey{Symbol: symbol}]
	return ok && !pos.IsOption && pos.Quantity > 0
}

func (s *Strategy) atmStrike(symbol string, spot float64) float64 {
	if atm, ok := s.chain(symbol).ATMStrike(spot); ok {
		return atm
	}
	return spot
}

func (s *Strategy) expiration(symbol string, now time.Time) time.Time {
	if c := s.chain(symbol); c != nil && !c.Expiration.IsZero() {
		return c.Expiration
	}
	return now.AddDate(0, 0, defaultExpiryDays)
}

// legPrice marks a leg with Black–Scholes using the chain IV nearest
// the strike, falling back to the placeholder vol.
func (s *Strategy) legPrice(symbol string, spot, strike float64, isCall bool, timeToExp float64) float64 {
	vol := placeholderVol
	if iv, ok := s.chain(symbol).IVAt(strike); ok && iv > 0 {
		vol = iv
	}
	price, err := options.Price(options.Params{
		Spot:       spot,
		Strike:     strike,
		TimeToExp:  timeToExp,
		RiskFree:   placeholderRate,
		Volatility: vol,
		IsCall:     isCall,
	})
	if err != nil {
		return 0
	}
	return price
}

func (s *Strategy) leg(ctx strategy.Context, kind core.SignalKind, strike float64, isCall bool, confidence float64, reason string, contracts float64) core.Signal {
	tick := ctx.Tick
	expiry := s.expiration(tick.Symbol, tick.Time)
	timeToExp := expiry.Sub(tick.Time).Hours() / 24 / 365

	// One contract per leg unless the config overrides; the butterfly
	// body keeps its structural 2x multiplier either way.
	base := 1.0
	if s.cfg.MaxPositionSize > 0 {
		base = s.cfg.MaxPositionSize
	}
	quantity := contracts * base

	return core.Signal{
		Strategy:   s.cfg.Name,
		Symbol:     tick.Symbol,
		Kind:       kind,
		Price:      s.legPrice(tick.Symbol, tick.Price, strike, isCall, timeToExp),
		Quantity:   quantity,
		Confidence: confidence,
		Reason:     reason,
		Time:       tick.Time,
		Strike:     strike,
		Expiration: expiry,
		IsCall:     isCall,
	}
}
