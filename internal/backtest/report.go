package backtest

import (
	"fmt"
	"io"
	"strings"
)

// WritePerformanceReport renders the plain-text performance report for
// one backtest.
func WritePerformanceReport(w io.Writer, r *Result) error {
	var b strings.Builder

	b.WriteString("=== BACKTESTING PERFORMANCE REPORT ===\n")
	fmt.Fprintf(&b, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(&b, "Period: %s to %s\n\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))

	b.WriteString("=== PERFORMANCE METRICS ===\n")
	fmt.Fprintf(&b, "Starting Capital: $%.2f\n", r.StartingCapital)
	fmt.Fprintf(&b, "Ending Capital: $%.2f\n", r.EndingCapital)
	fmt.Fprintf(&b, "Total Return: %.2f%%\n", r.Stats.TotalReturn*100)
	fmt.Fprintf(&b, "Annualized Return: %.2f%%\n", r.Stats.AnnualizedReturn*100)
	fmt.Fprintf(&b, "Volatility: %.2f%%\n", r.Stats.Volatility*100)
	fmt.Fprintf(&b, "Sharpe Ratio: %.3f\n", r.Stats.SharpeRatio)
	fmt.Fprintf(&b, "Sortino Ratio: %.3f\n", r.Stats.SortinoRatio)
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n", r.Stats.MaxDrawdown*100)
	fmt.Fprintf(&b, "VaR (95%%): %.2f%%\n", r.Stats.VaR95*100)
	fmt.Fprintf(&b, "CVaR (95%%): %.2f%%\n\n", r.Stats.CVaR95*100)

	b.WriteString("=== TRADING STATISTICS ===\n")
	fmt.Fprintf(&b, "Total Trades: %d\n", r.Stats.TotalTrades)
	fmt.Fprintf(&b, "Winning Trades: %d\n", r.Stats.WinningTrades)
	fmt.Fprintf(&b, "Losing Trades: %d\n", r.Stats.LosingTrades)
	fmt.Fprintf(&b, "Win Rate: %.1f%%\n", r.Stats.WinRate*100)
	fmt.Fprintf(&b, "Average Win: $%.2f\n", r.Stats.AvgWin)
	fmt.Fprintf(&b, "Average Loss: $%.2f\n", r.Stats.AvgLoss)
	fmt.Fprintf(&b, "Profit Factor: %.2f\n", r.Stats.ProfitFactor)
	fmt.Fprintf(&b, "Largest Win: $%.2f\n", r.Stats.LargestWin)
	fmt.Fprintf(&b, "Largest Loss: $%.2f\n", r.Stats.LargestLoss)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteComparisonReport renders the fixed-width strategy comparison
// table.
func WriteComparisonReport(w io.Writer, results []*Result) error {
	var b strings.Builder

	b.WriteString("=== STRATEGY COMPARISON REPORT ===\n\n")
	fmt.Fprintf(&b, "%-20s%-15s%-15s%-15s%-15s%-15s\n",
		"Strategy", "Total Return", "Sharpe Ratio", "Max Drawdown", "Win Rate", "Total Trades")
	b.WriteString(strings.Repeat("-", 95))
	b.WriteString("\n")

	for _, r := range results {
		fmt.Fprintf(&b, "%-20s%-15s%-15.3f%-15s%-15s%-15d\n",
			r.Strategy,
			fmt.Sprintf("%.2f%%", r.Stats.TotalReturn*100),
			r.Stats.SharpeRatio,
			fmt.Sprintf("%.2f%%", r.Stats.MaxDrawdown*100),
			fmt.Sprintf("%.1f%%", r.Stats.WinRate*100),
			r.Stats.TotalTrades,
		)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
