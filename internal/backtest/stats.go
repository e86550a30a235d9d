package backtest

import (
	"math"

	"github.com/newthinker/quantcore/internal/risk"
)

const riskFreeRate = 0.02

// CalculateStats computes the full performance metric set from the
// round-trip trades, the equity curve and its daily returns.
func CalculateStats(trades []Trade, equity, returns []float64, startingCapital, endingCapital float64) Stats {
	s := Stats{}

	if startingCapital > 0 {
		s.TotalReturn = (endingCapital - startingCapital) / startingCapital
	}

	if len(returns) > 0 {
		var mean float64
		for _, r := range returns {
			mean += r
		}
		mean /= float64(len(returns))
		s.AnnualizedReturn = mean * risk.TradingDaysPerYear
		s.Volatility = stdDev(returns, mean) * math.Sqrt(risk.TradingDaysPerYear)
	}

	if s.Volatility > 0 {
		s.SharpeRatio = (s.AnnualizedReturn - riskFreeRate) / s.Volatility
	}
	if downside := downsideDev(returns); downside > 0 {
		s.SortinoRatio = (s.AnnualizedReturn - riskFreeRate) / (downside * math.Sqrt(risk.TradingDaysPerYear))
	}

	s.MaxDrawdown = maxDrawdown(equity)
	s.VaR95 = risk.HistoricalVaR(returns, 0.95)
	s.CVaR95 = risk.ExpectedShortfall(returns, 0.95)

	// Trade statistics.
	var grossWin, grossLoss float64
	for _, t := range trades {
		s.TotalTrades++
		if t.IsWin() {
			s.WinningTrades++
			grossWin += t.PnL
			if t.PnL > s.LargestWin {
				s.LargestWin = t.PnL
			}
		} else {
			s.LosingTrades++
			grossLoss += -t.PnL
			if t.PnL < s.LargestLoss {
				s.LargestLoss = t.PnL
			}
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	if s.WinningTrades > 0 {
		s.AvgWin = grossWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = -grossLoss / float64(s.LosingTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	}

	return s
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

func downsideDev(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}

// maxDrawdown is the deepest peak-to-trough decline of the equity
// curve, as a positive fraction.
func maxDrawdown(equity []float64) float64 {
	var maxDD, peak float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
