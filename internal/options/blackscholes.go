// Package options implements Black–Scholes pricing, Greeks, implied
// volatility and Monte-Carlo option valuation.
package options

import (
	"math"

	"github.com/newthinker/quantcore/internal/core"
)

// Params describes a European option contract for pricing.
type Params struct {
	Spot       float64 // S
	Strike     float64 // K
	TimeToExp  float64 // T, in years
	RiskFree   float64 // r, annualized
	Volatility float64 // sigma, annualized
	IsCall     bool
}

func (p Params) validate() error {
	if p.Spot <= 0 || p.Strike <= 0 {
		return core.WrapError(core.ErrInvalidParams, errf("spot %v / strike %v must be positive", p.Spot, p.Strike))
	}
	if p.TimeToExp < 0 {
		return core.WrapError(core.ErrInvalidParams, errf("time to expiry %v negative", p.TimeToExp))
	}
	if p.Volatility <= 0 {
		return core.WrapError(core.ErrInvalidParams, errf("volatility %v must be positive", p.Volatility))
	}
	return nil
}

// intrinsic is the exercise value at expiry.
func (p Params) intrinsic() float64 {
	if p.IsCall {
		return math.Max(0, p.Spot-p.Strike)
	}
	return math.Max(0, p.Strike-p.Spot)
}

// normCDF is the standard normal CDF computed via the complementary
// error function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func d1(p Params) float64 {
	return (math.Log(p.Spot/p.Strike) + (p.RiskFree+0.5*p.Volatility*p.Volatility)*p.TimeToExp) /
		(p.Volatility * math.Sqrt(p.TimeToExp))
}

func d2(p Params) float64 {
	return d1(p) - p.Volatility*math.Sqrt(p.TimeToExp)
}

// Price returns the Black–Scholes premium. At expiry (T = 0) the
// intrinsic value is returned; a negative T fails with INVALID_PARAMS.
// Extreme inputs saturate to +Inf rather than producing NaN.
func Price(p Params) (float64, error) {
	if p.TimeToExp < 0 {
		return 0, core.WrapError(core.ErrInvalidParams, errf("time to expiry %v negative", p.TimeToExp))
	}
	if p.TimeToExp == 0 {
		if p.Spot <= 0 || p.Strike <= 0 {
			return 0, core.WrapError(core.ErrInvalidParams, errf("spot %v / strike %v must be positive", p.Spot, p.Strike))
		}
		return p.intrinsic(), nil
	}
	if err := p.validate(); err != nil {
		return 0, err
	}

	d1v := d1(p)
	d2v := d2(p)

	var price float64
	if p.IsCall {
		price = p.Spot*normCDF(d1v) - p.Strike*math.Exp(-p.RiskFree*p.TimeToExp)*normCDF(d2v)
	} else {
		price = p.Strike*math.Exp(-p.RiskFree*p.TimeToExp)*normCDF(-d2v) - p.Spot*normCDF(-d1v)
	}
	if math.IsNaN(price) {
		price = math.Inf(1)
	}
	return price, nil
}

// Greeks returns the option sensitivities. Theta is per calendar day,
// vega per 1 vol-point, rho per 1% rate move. At expiry all Greeks are
// zero except delta, which indicates moneyness. A negative T fails with
// INVALID_PARAMS.
func Greeks(p Params) (core.Greeks, error) {
	if p.TimeToExp < 0 {
		return core.Greeks{}, core.WrapError(core.ErrInvalidParams, errf("time to expiry %v negative", p.TimeToExp))
	}
	if p.TimeToExp == 0 {
		if p.Spot <= 0 || p.Strike <= 0 {
			return core.Greeks{}, core.WrapError(core.ErrInvalidParams, errf("spot %v / strike %v must be positive", p.Spot, p.Strike))
		}
		var g core.Greeks
		if p.IsCall && p.Spot > p.Strike {
			g.Delta = 1.0
		} else if !p.IsCall && p.Spot < p.Strike {
			g.Delta = -1.0
		}
		return g, nil
	}
	if err := p.validate(); err != nil {
		return core.Greeks{}, err
	}

	d1v := d1(p)
	d2v := d2(p)
	nd2 := normCDF(d2v)
	npd1 := normPDF(d1v)
	sqrtT := math.Sqrt(p.TimeToExp)
	disc := math.Exp(-p.RiskFree * p.TimeToExp)

	var g core.Greeks

	if p.IsCall {
		g.Delta = normCDF(d1v)
	} else {
		g.Delta = normCDF(d1v) - 1.0
	}

	g.Gamma = npd1 / (p.Spot * p.Volatility * sqrtT)

	thetaCommon := -(p.Spot * npd1 * p.Volatility) / (2 * sqrtT)
	if p.IsCall {
		g.Theta = thetaCommon - p.RiskFree*p.Strike*disc*nd2
	} else {
		g.Theta = thetaCommon + p.RiskFree*p.Strike*disc*normCDF(-d2v)
	}
	g.Theta /= 365.0

	g.Vega = p.Spot * npd1 * sqrtT / 100.0

	if p.IsCall {
		g.Rho = p.Strike * p.TimeToExp * disc * nd2 / 100.0
	} else {
		g.Rho = -p.Strike * p.TimeToExp * disc * normCDF(-d2v) / 100.0
	}

	return g, nil
}

// Implied-volatility bisection bounds and defaults.
const (
	ivVolLow        = 0.01
	ivVolHigh       = 5.0
	IVTolerance     = 1e-6
	IVMaxIterations = 100
)

// ImpliedVolatility inverts Black–Scholes by bisection over sigma in
// [0.01, 5.0]. The params' Volatility field is ignored. Returns the
// bisection midpoint even when the iteration cap is reached. Prices
// outside the no-arbitrage bounds fail with NOT_INVERTIBLE.
func ImpliedVolatility(marketPrice float64, p Params) (float64, error) {
	return ImpliedVolatilityTol(marketPrice, p, IVTolerance, IVMaxIterations)
}

// ImpliedVolatilityTol is ImpliedVolatility with explicit tolerance and
// iteration cap.
func ImpliedVolatilityTol(marketPrice float64, p Params, tolerance float64, maxIterations int) (float64, error) {
	if p.Spot <= 0 || p.Strike <= 0 || p.TimeToExp < 0 {
		return 0, core.WrapError(core.ErrInvalidParams, errf("spot %v, strike %v, T %v", p.Spot, p.Strike, p.TimeToExp))
	}

	// No-arbitrage bounds: intrinsic <= price <= S (call) / K*e^{-rT} (put).
	intrinsicNow := p.intrinsic()
	var upper float64
	if p.IsCall {
		upper = p.Spot
	} else {
		upper = p.Strike * math.Exp(-p.RiskFree*p.TimeToExp)
	}
	if marketPrice < intrinsicNow || marketPrice > upper {
		return 0, core.WrapError(core.ErrNotInvertible,
			errf("price %v outside [%v, %v]", marketPrice, intrinsicNow, upper))
	}

	volLow, volHigh := ivVolLow, ivVolHigh
	volMid := (volLow + volHigh) / 2.0

	for i := 0; i < maxIterations; i++ {
		trial := p
		trial.Volatility = volMid

		calculated, err := Price(trial)
		if err != nil {
			return 0, err
		}
		diff := calculated - marketPrice

		if math.Abs(diff) < tolerance {
			return volMid, nil
		}

		if diff > 0 {
			volHigh = volMid
		} else {
			volLow = volMid
		}
		volMid = (volLow + volHigh) / 2.0
	}

	return volMid, nil
}
