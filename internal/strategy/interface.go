// Package strategy defines the trading strategy capability interface
// and the registry that owns strategy configuration.
package strategy

import (
	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/indicator"
)

// Context is the per-symbol view handed to a strategy for one tick
// cycle: the latest tick plus a consistent indicator snapshot.
type Context struct {
	Tick       core.Tick
	Indicators indicator.Snapshot
}

// Strategy is the capability set every trading strategy implements.
// Implementations own their state privately; configuration is owned by
// the registry and exposed read-only through Config.
type Strategy interface {
	// Name returns the engine-unique strategy name.
	Name() string

	// Config returns a copy of the strategy's configuration.
	Config() core.StrategyConfig

	// GenerateSignals consumes the tick contexts for the strategy's
	// symbol universe and returns zero or more signals. Errors are
	// isolated by the caller; they never halt the engine.
	GenerateSignals(ctxs []Context) ([]core.Signal, error)

	// UpdatePosition informs the strategy of a position change it
	// caused, keyed by the position's aggregation key.
	UpdatePosition(pos core.Position)

	// CalculateRisk estimates the risk the strategy attributes to the
	// given positions, in currency terms.
	CalculateRisk(positions []core.Position) float64
}
