package risk

import "github.com/newthinker/quantcore/internal/core"

// PortfolioGreeks aggregates position Greeks linearly in contract
// count. Stock contributes delta 1 per share; gamma, theta, vega and
// rho sum over options only. Theta stays per calendar day.
func PortfolioGreeks(positions []core.Position) core.Greeks {
	var g core.Greeks
	for _, pos := range positions {
		if pos.IsOption {
			g.Delta += pos.Greeks.Delta * pos.Quantity
			g.Gamma += pos.Greeks.Gamma * pos.Quantity
			g.Theta += pos.Greeks.Theta * pos.Quantity
			g.Vega += pos.Greeks.Vega * pos.Quantity
			g.Rho += pos.Greeks.Rho * pos.Quantity
		} else {
			g.Delta += pos.Quantity
		}
	}
	return g
}
