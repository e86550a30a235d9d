package options

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/newthinker/quantcore/internal/core"
)

func errf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// MCResult holds a Monte-Carlo valuation with its sampling error.
type MCResult struct {
	Price    float64
	StdError float64
	CILow    float64 // 95% confidence interval
	CIHigh   float64
}

// MonteCarlo prices options by simulating Geometric Brownian Motion
// price paths. A fixed seed gives reproducible runs.
type MonteCarlo struct {
	rng *rand.Rand
}

// NewMonteCarlo creates a simulator seeded for reproducibility.
func NewMonteCarlo(seed int64) *MonteCarlo {
	return &MonteCarlo{rng: rand.New(rand.NewSource(seed))}
}

// Price simulates numPaths GBM paths of numSteps each and returns the
// discounted mean payoff with standard error and 95% confidence bounds.
// Drift is r - sigma^2/2 under the risk-neutral measure.
func (mc *MonteCarlo) Price(p Params, numPaths, numSteps int) (MCResult, error) {
	if err := p.validate(); err != nil {
		return MCResult{}, err
	}
	if numPaths < 2 || numSteps < 1 {
		return MCResult{}, core.WrapError(core.ErrInvalidParams,
			errf("numPaths %d, numSteps %d", numPaths, numSteps))
	}

	dt := p.TimeToExp / float64(numSteps)
	drift := p.RiskFree - 0.5*p.Volatility*p.Volatility
	sqrtDt := math.Sqrt(dt)

	payoffs := make([]float64, numPaths)
	var sum float64
	for sim := 0; sim < numPaths; sim++ {
		price := p.Spot
		for step := 0; step < numSteps; step++ {
			dW := mc.rng.NormFloat64() * sqrtDt
			price *= math.Exp(drift*dt + p.Volatility*dW)
		}
		payoff := terminalPayoff(price, p.Strike, p.IsCall)
		payoffs[sim] = payoff
		sum += payoff
	}

	discount := math.Exp(-p.RiskFree * p.TimeToExp)
	meanPayoff := sum / float64(numPaths)
	optionPrice := meanPayoff * discount

	var variance float64
	for _, payoff := range payoffs {
		variance += (payoff - meanPayoff) * (payoff - meanPayoff)
	}
	variance /= float64(numPaths - 1)
	stdError := math.Sqrt(variance/float64(numPaths)) * discount

	const zScore = 1.96 // 95% confidence
	margin := zScore * stdError

	return MCResult{
		Price:    optionPrice,
		StdError: stdError,
		CILow:    optionPrice - margin,
		CIHigh:   optionPrice + margin,
	}, nil
}

// Path simulates a single GBM price path of numSteps increments over
// horizon years, starting at spot. The returned slice includes the
// starting point.
func (mc *MonteCarlo) Path(spot, drift, volatility, horizon float64, numSteps int) []float64 {
	path := make([]float64, 0, numSteps+1)
	path = append(path, spot)

	dt := horizon / float64(numSteps)
	sqrtDt := math.Sqrt(dt)
	price := spot

	for i := 0; i < numSteps; i++ {
		dW := mc.rng.NormFloat64() * sqrtDt
		price *= math.Exp((drift-0.5*volatility*volatility)*dt + volatility*dW)
		path = append(path, price)
	}
	return path
}

func terminalPayoff(finalPrice, strike float64, isCall bool) float64 {
	if isCall {
		return math.Max(0, finalPrice-strike)
	}
	return math.Max(0, strike-finalPrice)
}
