// Package risk implements the portfolio risk engine: VaR, expected
// shortfall, aggregate Greeks, stress tests and risk-limit
// enforcement.
package risk

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/core"
)

const (
	// DefaultAnnualVol is assumed when no return history is wired.
	DefaultAnnualVol = 0.20

	// TradingDaysPerYear converts annual to daily volatility.
	TradingDaysPerYear = 252

	// DefaultMCSimulations is the Monte-Carlo VaR path count.
	DefaultMCSimulations = 10_000
)

// Metrics is the portfolio risk summary produced by each sample.
type Metrics struct {
	PortfolioValue float64
	GrossExposure  float64
	NetExposure    float64
	Leverage       float64

	VaR95             float64 // 1-day, positive fractional loss
	VaR99             float64
	CVaR95            float64
	ExpectedShortfall float64

	Volatility  float64 // annualized
	SharpeRatio float64
	Beta        float64
	MaxDrawdown float64

	Greeks core.Greeks

	Time time.Time
}

// Engine computes portfolio risk. Return history is supplied per
// symbol; symbols without history fall back to the default vol
// assumption.
type Engine struct {
	mu      sync.RWMutex
	history map[string][]float64
	rng     *rand.Rand
	logger  *zap.Logger
}

// NewEngine creates a risk engine. The seed fixes the Monte-Carlo
// draw for reproducible runs.
func NewEngine(seed int64, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		history: make(map[string][]float64),
		rng:     rand.New(rand.NewSource(seed)),
		logger:  logger,
	}
}

// SetReturnHistory installs the daily return series for a symbol.
func (e *Engine) SetReturnHistory(symbol string, returns []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history[symbol] = append([]float64(nil), returns...)
	e.logger.Debug("return history updated",
		zap.String("symbol", symbol),
		zap.Int("points", len(returns)),
	)
}

// ReturnHistory returns the stored series for a symbol.
func (e *Engine) ReturnHistory(symbol string) ([]float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.history[symbol]
	return r, ok
}

// zScore returns the one-sided normal quantile for the supported
// confidence levels.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.326
	default:
		return 1.645
	}
}

// dailyVol returns a symbol's daily return volatility from history, or
// the default assumption.
func (e *Engine) dailyVol(symbol string) float64 {
	e.mu.RLock()
	returns, ok := e.history[symbol]
	e.mu.RUnlock()

	if !ok || len(returns) < 2 {
		return DefaultAnnualVol / math.Sqrt(TradingDaysPerYear)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

// ParametricVaR assumes a normal 1-day portfolio return. Returned as a
// positive fractional loss of portfolio value.
func (e *Engine) ParametricVaR(positions []core.Position, confidence float64) float64 {
	if len(positions) == 0 {
		return 0
	}

	value := portfolioValue(positions)
	if value == 0 {
		return 0
	}

	// Value-weighted daily volatility across positions.
	var weighted float64
	for _, pos := range positions {
		weight := math.Abs(pos.MarketValue()) / math.Abs(value)
		weighted += weight * e.dailyVol(pos.Symbol)
	}

	return zScore(confidence) * weighted
}

// HistoricalVaR sorts the return series ascending and reads the
// (1-confidence) quantile, reported as a positive loss.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	index := int((1.0 - confidence) * float64(len(sorted)))
	index = clamp(index, 0, len(sorted)-1)

	return -sorted[index]
}

// MonteCarloVaR simulates one-day portfolio returns, drawing each
// position's return from N(0, dailyVol^2) weighted by market value,
// then applies HistoricalVaR to the simulated distribution.
func (e *Engine) MonteCarloVaR(positions []core.Position, simulations int, confidence float64) float64 {
	if len(positions) == 0 {
		return 0
	}
	if simulations <= 0 {
		simulations = DefaultMCSimulations
	}

	value := portfolioValue(positions)
	if value == 0 {
		return 0
	}

	vols := make([]float64, len(positions))
	for i, pos := range positions {
		vols[i] = e.dailyVol(pos.Symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	simulated := make([]float64, simulations)
	for i := 0; i < simulations; i++ {
		var pnl float64
		for j, pos := range positions {
			pnl += pos.MarketValue() * e.rng.NormFloat64() * vols[j]
		}
		simulated[i] = pnl / value
	}

	return HistoricalVaR(simulated, confidence)
}

// ExpectedShortfall is the mean loss at or below the VaR quantile,
// reported positive.
func ExpectedShortfall(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	varIndex := clamp(int((1.0-confidence)*float64(len(sorted))), 0, len(sorted)-1)

	var sum float64
	for i := 0; i <= varIndex; i++ {
		sum += sorted[i]
	}
	return -(sum / float64(varIndex+1))
}

// PortfolioMetrics computes the full risk summary for a position
// snapshot.
func (e *Engine) PortfolioMetrics(positions []core.Position) Metrics {
	m := Metrics{Time: time.Now()}

	for _, pos := range positions {
		mv := pos.MarketValue()
		m.PortfolioValue += mv
		m.GrossExposure += math.Abs(mv)
		m.NetExposure += mv
	}
	if m.PortfolioValue != 0 {
		m.Leverage = m.GrossExposure / math.Abs(m.PortfolioValue)
	}

	m.VaR95 = e.ParametricVaR(positions, 0.95)
	m.VaR99 = e.ParametricVaR(positions, 0.99)

	// Expected shortfall over the simulated 1-day distribution.
	if len(positions) > 0 && m.PortfolioValue != 0 {
		simulated := e.simulateReturns(positions, 1000)
		m.CVaR95 = ExpectedShortfall(simulated, 0.95)
		m.ExpectedShortfall = m.CVaR95
	}

	// Annualized portfolio volatility from the value-weighted daily vol.
	if m.PortfolioValue != 0 {
		var weighted float64
		for _, pos := range positions {
			weighted += math.Abs(pos.MarketValue()) / m.GrossExposure * e.dailyVol(pos.Symbol)
		}
		if m.GrossExposure > 0 {
			m.Volatility = weighted * math.Sqrt(TradingDaysPerYear)
		}
	}

	if m.Volatility > 0 {
		const riskFree, expectedReturn = 0.02, 0.08
		m.SharpeRatio = (expectedReturn - riskFree) / m.Volatility
	}
	m.Beta = 1.0

	m.Greeks = PortfolioGreeks(positions)

	return m
}

// simulateReturns draws value-weighted one-day portfolio returns.
func (e *Engine) simulateReturns(positions []core.Position, n int) []float64 {
	value := portfolioValue(positions)
	if value == 0 {
		return nil
	}

	vols := make([]float64, len(positions))
	for i, pos := range positions {
		vols[i] = e.dailyVol(pos.Symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var r float64
		for j, pos := range positions {
			r += pos.MarketValue() / value * e.rng.NormFloat64() * vols[j]
		}
		out[i] = r
	}
	return out
}

func portfolioValue(positions []core.Position) float64 {
	var total float64
	for _, pos := range positions {
		total += pos.MarketValue()
	}
	return total
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
