package risk

import (
	"fmt"
	"math"

	"github.com/newthinker/quantcore/internal/core"
)

// LimitType classifies a risk limit.
type LimitType string

const (
	LimitPortfolioVaR  LimitType = "PORTFOLIO_VAR"
	LimitLeverage      LimitType = "LEVERAGE"
	LimitConcentration LimitType = "CONCENTRATION"
)

// Limit is a hard risk limit with its latest evaluation.
type Limit struct {
	Type           LimitType
	Symbol         string // optional, for symbol-scoped limits
	Limit          float64
	Current        float64
	UtilizationPct float64
	Breached       bool
	Description    string
}

// Default limit levels.
const (
	DefaultVaRLimit           = 0.02
	DefaultLeverageLimit      = 3.0
	DefaultConcentrationLimit = 0.10
)

// DefaultLimits returns the built-in limit book.
func DefaultLimits() []Limit {
	return []Limit{
		{
			Type:        LimitPortfolioVaR,
			Limit:       DefaultVaRLimit,
			Description: "Daily portfolio VaR, 95% confidence",
		},
		{
			Type:        LimitLeverage,
			Limit:       DefaultLeverageLimit,
			Description: "Maximum portfolio leverage",
		},
		{
			Type:        LimitConcentration,
			Limit:       DefaultConcentrationLimit,
			Description: "Maximum single-position concentration",
		},
	}
}

// CheckLimits recomputes each limit's current value and utilization on
// the given positions and marks breaches. The returned slice is a new
// evaluation; the input is not mutated.
func (e *Engine) CheckLimits(positions []core.Position, limits []Limit) []Limit {
	metrics := Metrics{}
	for _, pos := range positions {
		mv := pos.MarketValue()
		metrics.PortfolioValue += mv
		metrics.GrossExposure += math.Abs(mv)
	}
	if metrics.PortfolioValue != 0 {
		metrics.Leverage = metrics.GrossExposure / math.Abs(metrics.PortfolioValue)
	}
	metrics.VaR95 = e.ParametricVaR(positions, 0.95)

	out := make([]Limit, len(limits))
	copy(out, limits)

	for i := range out {
		switch out[i].Type {
		case LimitPortfolioVaR:
			out[i].Current = metrics.VaR95
		case LimitLeverage:
			out[i].Current = metrics.Leverage
		case LimitConcentration:
			var maxConcentration float64
			if metrics.PortfolioValue != 0 {
				for _, pos := range positions {
					c := math.Abs(pos.MarketValue()) / math.Abs(metrics.PortfolioValue)
					if c > maxConcentration {
						maxConcentration = c
					}
				}
			}
			out[i].Current = maxConcentration
		}

		if out[i].Limit > 0 {
			out[i].UtilizationPct = out[i].Current / out[i].Limit * 100
		}
		out[i].Breached = out[i].Current > out[i].Limit
	}

	return out
}

// BreachedLimits filters an evaluation down to the breaches.
func BreachedLimits(limits []Limit) []Limit {
	var out []Limit
	for _, l := range limits {
		if l.Breached {
			out = append(out, l)
		}
	}
	return out
}

// Alert thresholds, softer than the hard limits.
const (
	AlertVaRThreshold      = 0.015
	AlertDrawdownThreshold = 0.05
	AlertLeverageThreshold = 2.5
)

// CheckAlerts returns informational alerts for metrics approaching
// their limits. Alerts never reject anything; breaches do.
func CheckAlerts(m Metrics) []string {
	var alerts []string
	if m.VaR95 > AlertVaRThreshold {
		alerts = append(alerts, fmt.Sprintf("VaR approaching limit: %.2f%%", m.VaR95*100))
	}
	if m.Leverage > AlertLeverageThreshold {
		alerts = append(alerts, fmt.Sprintf("high leverage: %.2fx", m.Leverage))
	}
	if m.MaxDrawdown > AlertDrawdownThreshold {
		alerts = append(alerts, fmt.Sprintf("drawdown alert: %.2f%%", m.MaxDrawdown*100))
	}
	return alerts
}
