package risk

import (
	"github.com/newthinker/quantcore/internal/core"
)

// DefaultPriceShock applies to symbols a scenario does not name.
const DefaultPriceShock = -0.05

// Scenario describes a stress shock set: per-symbol price shocks
// (fractions), an absolute rate shock, an absolute volatility shock and
// a correlation adjustment.
type Scenario struct {
	Name        string
	Description string
	PriceShocks map[string]float64
	RateShock   float64
	VolShock    float64
	CorrShock   float64
}

// StressResult is the outcome of one scenario applied to a portfolio.
type StressResult struct {
	Scenario        string
	PortfolioPnL    float64
	PortfolioReturn float64
	PositionPnL     map[string]float64
	WorstSymbol     string
	WorstLoss       float64
	BreachedLimits  []Limit
}

// RunStressTest applies the scenario to every position: the symbol's
// price shock (or the default), plus vega and rho terms for options.
// Limits are then re-evaluated on the stressed book.
func (e *Engine) RunStressTest(positions []core.Position, scenario Scenario, limits []Limit) StressResult {
	result := StressResult{
		Scenario:    scenario.Name,
		PositionPnL: make(map[string]float64),
	}

	var totalValue float64
	for _, pos := range positions {
		totalValue += pos.MarketValue()
	}

	for _, pos := range positions {
		shock, ok := scenario.PriceShocks[pos.Symbol]
		if !ok {
			shock = DefaultPriceShock
		}
		pnl := pos.MarketValue() * shock

		if pos.IsOption {
			pnl += (pos.Greeks.Vega*scenario.VolShock + pos.Greeks.Rho*scenario.RateShock) * pos.Quantity
		}

		result.PositionPnL[pos.Symbol] += pnl
		result.PortfolioPnL += pnl

		if pnl < result.WorstLoss {
			result.WorstLoss = pnl
			result.WorstSymbol = pos.Symbol
		}
	}

	if totalValue != 0 {
		result.PortfolioReturn = result.PortfolioPnL / totalValue
	}

	// Re-check limits on the stressed portfolio.
	stressed := make([]core.Position, len(positions))
	copy(stressed, positions)
	for i := range stressed {
		shock, ok := scenario.PriceShocks[stressed[i].Symbol]
		if !ok {
			shock = DefaultPriceShock
		}
		stressed[i].CurrentPrice *= 1 + shock
	}
	checked := e.CheckLimits(stressed, limits)
	for _, l := range checked {
		if l.Breached {
			result.BreachedLimits = append(result.BreachedLimits, l)
		}
	}

	return result
}

// RunStandardStressTests applies every built-in scenario.
func (e *Engine) RunStandardStressTests(positions []core.Position, limits []Limit) []StressResult {
	scenarios := StandardScenarios()
	results := make([]StressResult, 0, len(scenarios))
	for _, s := range scenarios {
		results = append(results, e.RunStressTest(positions, s, limits))
	}
	return results
}

// StandardScenarios returns the built-in stress book.
func StandardScenarios() []Scenario {
	return []Scenario{
		marketCrashScenario(),
		interestRateShockScenario(),
		volatilitySpikeScenario(),
		sectorRotationScenario(),
	}
}

func marketCrashScenario() Scenario {
	return Scenario{
		Name:        "Market Crash",
		Description: "Severe broad market downturn, 2008 style",
		PriceShocks: map[string]float64{
			"AAPL":  -0.30,
			"GOOGL": -0.35,
			"TSLA":  -0.45,
			"MSFT":  -0.25,
			"AMZN":  -0.40,
			"SPY":   -0.30,
		},
		RateShock: -0.02,
		VolShock:  0.15,
		CorrShock: 0.3,
	}
}

func interestRateShockScenario() Scenario {
	return Scenario{
		Name:        "Interest Rate Shock",
		Description: "Sudden 300 basis point rate increase",
		PriceShocks: map[string]float64{
			"AAPL":  -0.10,
			"GOOGL": -0.08,
			"TSLA":  -0.15,
			"MSFT":  -0.12,
		},
		RateShock: 0.03,
		VolShock:  0.05,
		CorrShock: 0.1,
	}
}

func volatilitySpikeScenario() Scenario {
	return Scenario{
		Name:        "Volatility Spike",
		Description: "Vol shock with modest price moves",
		PriceShocks: map[string]float64{
			"AAPL":  -0.05,
			"GOOGL": -0.08,
			"TSLA":  -0.12,
		},
		VolShock:  0.25,
		CorrShock: 0.2,
	}
}

func sectorRotationScenario() Scenario {
	return Scenario{
		Name:        "Sector Rotation",
		Description: "Rotation out of technology into value",
		PriceShocks: map[string]float64{
			"AAPL":  -0.20,
			"GOOGL": -0.25,
			"MSFT":  -0.18,
			"TSLA":  -0.30,
			"AMZN":  -0.22,
		},
		RateShock: 0.01,
		VolShock:  0.08,
		CorrShock: -0.1,
	}
}

// WorstCase returns the scenario result with the deepest portfolio
// loss.
func WorstCase(results []StressResult) (StressResult, bool) {
	if len(results) == 0 {
		return StressResult{}, false
	}
	worst := results[0]
	for _, r := range results[1:] {
		if r.PortfolioPnL < worst.PortfolioPnL {
			worst = r
		}
	}
	return worst, true
}
