package core

import "time"

// Tick is a point-in-time market observation for a symbol.
// Immutable once accepted by the engine.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Bid       float64
	Ask       float64
	High      float64
	Low       float64
	ChangePct float64
	Time      time.Time
}

// IsValid checks if the tick has required fields.
func (t Tick) IsValid() bool {
	return t.Symbol != "" && t.Price > 0
}

// SignalKind represents a trading signal action.
type SignalKind string

const (
	SignalBuy           SignalKind = "BUY"
	SignalSell          SignalKind = "SELL"
	SignalHold          SignalKind = "HOLD"
	SignalBuyCall       SignalKind = "BUY_CALL"
	SignalSellCall      SignalKind = "SELL_CALL"
	SignalBuyPut        SignalKind = "BUY_PUT"
	SignalSellPut       SignalKind = "SELL_PUT"
	SignalClosePosition SignalKind = "CLOSE_POSITION"
)

// IsOption reports whether the signal kind trades an option contract.
func (k SignalKind) IsOption() bool {
	switch k {
	case SignalBuyCall, SignalSellCall, SignalBuyPut, SignalSellPut:
		return true
	}
	return false
}

// IsLong reports whether the kind accumulates positive quantity.
func (k SignalKind) IsLong() bool {
	switch k {
	case SignalBuy, SignalBuyCall, SignalBuyPut:
		return true
	}
	return false
}

// Signal represents a trading signal emitted by a strategy.
type Signal struct {
	Strategy   string
	Symbol     string
	Kind       SignalKind
	Price      float64
	Quantity   float64
	Confidence float64
	Reason     string
	Time       time.Time

	// Option legs only.
	Strike     float64
	Expiration time.Time
	IsCall     bool
}

// Validate checks signal invariants: finite confidence in [0,1] and a
// positive quantity for anything other than HOLD.
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return WrapError(ErrInvalidParams, errFieldf("signal symbol empty"))
	}
	if s.Confidence != s.Confidence || s.Confidence < 0 || s.Confidence > 1 {
		return WrapError(ErrInvalidParams, errFieldf("confidence %v outside [0,1]", s.Confidence))
	}
	if s.Kind != SignalHold && s.Quantity <= 0 {
		return WrapError(ErrInvalidParams, errFieldf("quantity %v must be positive", s.Quantity))
	}
	return nil
}

// Greeks holds option sensitivities. Theta is per calendar day, vega per
// 1 vol-point, rho per 1% rate move.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// OptionKey identifies an option contract series. Non-option positions
// leave everything but Symbol zero.
type OptionKey struct {
	Symbol     string
	Strike     float64
	Expiration time.Time
	IsCall     bool
}

// IsOption reports whether the key refers to an option series.
func (k OptionKey) IsOption() bool {
	return k.Strike != 0 || !k.Expiration.IsZero()
}

// Position is a holding keyed by (symbol, strike, expiration, is_call);
// plain stock positions key on symbol alone.
type Position struct {
	Symbol       string
	Quantity     float64 // signed: long > 0, short < 0
	AveragePrice float64
	CurrentPrice float64
	UnrealizedPL float64
	EntryTime    time.Time

	// Option contracts only.
	Strike     float64
	Expiration time.Time
	IsCall     bool
	IsOption   bool
	Greeks     Greeks
}

// Key returns the aggregation key for the position.
func (p Position) Key() OptionKey {
	if !p.IsOption {
		return OptionKey{Symbol: p.Symbol}
	}
	return OptionKey{Symbol: p.Symbol, Strike: p.Strike, Expiration: p.Expiration, IsCall: p.IsCall}
}

// MarketValue returns the signed market value of the position.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// StrategyType identifies a strategy variant.
type StrategyType string

const (
	StrategyMomentum      StrategyType = "MOMENTUM"
	StrategyStraddle      StrategyType = "STRADDLE"
	StrategyStrangle      StrategyType = "STRANGLE"
	StrategyCoveredCall   StrategyType = "COVERED_CALL"
	StrategyProtectivePut StrategyType = "PROTECTIVE_PUT"
	StrategyIronCondor    StrategyType = "IRON_CONDOR"
	StrategyButterfly     StrategyType = "BUTTERFLY"
)

// StrategyConfig holds a strategy's configuration. Owned by the engine;
// strategies see it read-only.
type StrategyConfig struct {
	Type            StrategyType
	Name            string
	Params          map[string]float64
	Symbols         []string
	Enabled         bool
	MaxPositionSize float64
	StopLossPct     float64 // reserved; triggering semantics undefined
	TakeProfitPct   float64 // reserved; triggering semantics undefined
}

// Param returns a named parameter or the given default.
func (c StrategyConfig) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}
