// Package backtest replays historical bars through a strategy and
// measures the resulting performance. Fills are synthesized at signal
// price; the live order book is bypassed.
package backtest

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/indicator"
	"github.com/newthinker/quantcore/internal/strategy"
)

// Backtester runs strategy backtests against historical data.
type Backtester struct {
	logger *zap.Logger
}

// New creates a Backtester.
func New(logger *zap.Logger) *Backtester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backtester{logger: logger}
}

// Run replays the bars, oldest first, through the strategy and returns
// the full result. Bars may cover a single symbol; multi-symbol books
// run one backtest per symbol and compare.
func (b *Backtester) Run(ctx context.Context, strat strategy.Strategy, bars []Bar, cfg Config) (*Result, error) {
	if len(bars) == 0 {
		return nil, errors.New("no historical data available")
	}
	if cfg.StartingCapital <= 0 {
		cfg.StartingCapital = 1_000_000
	}

	sorted := append([]Bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	frame := indicator.NewFrame(sorted[0].Symbol)

	var (
		allSignals []core.Signal
		trades     []Trade
		open       *Trade
		realized   float64
		equity     []float64
	)

	for i := range sorted {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bar := sorted[i]
		tick := bar.Tick()
		frame.Update(tick)

		signals, err := strat.GenerateSignals([]strategy.Context{{
			Tick:       tick,
			Indicators: frame.Snapshot(),
		}})
		if err != nil {
			// Skip bars with analysis errors; the replay continues.
			b.logger.Debug("strategy error during replay", zap.Time("bar", bar.Time), zap.Error(err))
			continue
		}

		for _, sig := range signals {
			if sig.Strategy == "" {
				sig.Strategy = strat.Name()
			}
			if sig.Price == 0 {
				sig.Price = bar.Close
			}
			allSignals = append(allSignals, sig)

			switch sig.Kind {
			case core.SignalBuy, core.SignalBuyCall, core.SignalBuyPut:
				if open == nil {
					open = &Trade{
						Strategy:   sig.Strategy,
						Symbol:     sig.Symbol,
						Side:       sig.Kind,
						Quantity:   sig.Quantity,
						EntryPrice: sig.Price,
						EntryTime:  sig.Time,
					}
				}
			case core.SignalSell, core.SignalSellCall, core.SignalSellPut, core.SignalClosePosition:
				if open != nil {
					closed := *open
					closed.ExitPrice = sig.Price
					closed.ExitTime = sig.Time
					closed.PnL = (closed.ExitPrice-closed.EntryPrice)*closed.Quantity - cfg.Commission
					if closed.EntryPrice != 0 {
						closed.ReturnPct = (closed.ExitPrice - closed.EntryPrice) / closed.EntryPrice
					}
					closed.Closed = true
					trades = append(trades, closed)
					realized += closed.PnL
					open = nil
				}
			}
		}

		// Mark equity at the bar close.
		markedEquity := cfg.StartingCapital + realized
		if open != nil {
			markedEquity += (bar.Close - open.EntryPrice) * open.Quantity
		}
		equity = append(equity, markedEquity)
	}

	// A still-open position marks out at the final close.
	if open != nil {
		last := sorted[len(sorted)-1]
		final := *open
		final.ExitPrice = last.Close
		final.ExitTime = last.Time
		final.PnL = (final.ExitPrice - final.EntryPrice) * final.Quantity
		if final.EntryPrice != 0 {
			final.ReturnPct = (final.ExitPrice - final.EntryPrice) / final.EntryPrice
		}
		trades = append(trades, final)
		realized += final.PnL
	}

	returns := dailyReturns(equity)
	ending := cfg.StartingCapital + realized

	result := &Result{
		Strategy:        strat.Name(),
		Symbol:          sorted[0].Symbol,
		StartDate:       sorted[0].Time,
		EndDate:         sorted[len(sorted)-1].Time,
		StartingCapital: cfg.StartingCapital,
		EndingCapital:   ending,
		Signals:         allSignals,
		Trades:          trades,
		EquityCurve:     equity,
		DailyReturns:    returns,
		Stats:           CalculateStats(trades, equity, returns, cfg.StartingCapital, ending),
	}

	b.logger.Info("backtest complete",
		zap.String("strategy", result.Strategy),
		zap.String("symbol", result.Symbol),
		zap.Int("bars", len(sorted)),
		zap.Int("trades", len(trades)),
		zap.Float64("total_return", result.Stats.TotalReturn),
	)

	return result, nil
}

// RunComparison backtests several strategies over the same bars.
func (b *Backtester) RunComparison(ctx context.Context, strategies []strategy.Strategy, bars []Bar, cfg Config) ([]*Result, error) {
	results := make([]*Result, 0, len(strategies))
	for _, strat := range strategies {
		r, err := b.Run(ctx, strat, bars, cfg)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}

// GenerateBars builds a deterministic synthetic bar series, useful for
// demos and tests.
func GenerateBars(symbol string, n int, start time.Time, startPrice float64) []Bar {
	bars := make([]Bar, 0, n)
	price := startPrice
	for i := 0; i < n; i++ {
		// Deterministic wave with drift.
		move := 0.002*float64((i%7)-3) + 0.0004
		price *= 1 + move
		bars = append(bars, Bar{
			Symbol: symbol,
			Open:   price * 0.998,
			High:   price * 1.005,
			Low:    price * 0.995,
			Close:  price,
			Volume: 1500 + float64((i%5)*700),
			Time:   start.AddDate(0, 0, i),
		})
	}
	return bars
}
