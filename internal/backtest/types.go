package backtest

import (
	"time"

	"github.com/newthinker/quantcore/internal/core"
)

// Bar is one historical OHLCV observation.
type Bar struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// Tick converts the bar into the engine's tick shape.
func (b Bar) Tick() core.Tick {
	return core.Tick{
		Symbol: b.Symbol,
		Price:  b.Close,
		Volume: b.Volume,
		High:   b.High,
		Low:    b.Low,
		Time:   b.Time,
	}
}

// Trade is a simulated round trip: entry fill to exit fill, both
// synthesized at signal price.
type Trade struct {
	Strategy   string
	Symbol     string
	Side       core.SignalKind
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64
	ReturnPct  float64
	Closed     bool
}

// IsWin reports whether the trade was profitable.
func (t Trade) IsWin() bool { return t.PnL > 0 }

// Config holds backtest parameters.
type Config struct {
	Strategy        string
	Symbols         []string
	StartingCapital float64
	Commission      float64 // per round trip
}

// Result is the complete backtest output.
type Result struct {
	Strategy        string
	Symbol          string
	StartDate       time.Time
	EndDate         time.Time
	StartingCapital float64
	EndingCapital   float64

	Signals      []core.Signal
	Trades       []Trade
	EquityCurve  []float64
	DailyReturns []float64

	Stats Stats
}

// Stats holds the performance metric set.
type Stats struct {
	TotalReturn      float64 // fraction
	AnnualizedReturn float64
	Volatility       float64 // annualized
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64 // fraction, positive
	VaR95            float64
	CVaR95           float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // fraction
	AvgWin        float64
	AvgLoss       float64
	ProfitFactor  float64
	LargestWin    float64
	LargestLoss   float64
}
