package risk

import (
	"fmt"

	"github.com/newthinker/quantcore/internal/core"
)

// Risk egress records, CSV-like, consumed by external collaborators.

// FormatMetricsRecord renders a RISK_METRICS record.
func FormatMetricsRecord(m Metrics) string {
	return fmt.Sprintf("RISK_METRICS,%.2f,%.6f,%.6f,%.4f,%.6f,%.4f,%.4f",
		m.PortfolioValue, m.VaR95, m.VaR99, m.Leverage, m.Volatility, m.SharpeRatio, m.Beta)
}

// FormatGreeksRecord renders a PORTFOLIO_GREEKS record.
func FormatGreeksRecord(g core.Greeks) string {
	return fmt.Sprintf("PORTFOLIO_GREEKS,%.4f,%.6f,%.4f,%.4f",
		g.Delta, g.Gamma, g.Theta, g.Vega)
}

// FormatStressRecord renders a STRESS_TEST_RESULT record.
func FormatStressRecord(r StressResult) string {
	return fmt.Sprintf("STRESS_TEST_RESULT,%s,%.2f,%.4f,%s,%.2f",
		r.Scenario, r.PortfolioPnL, r.PortfolioReturn, r.WorstSymbol, r.WorstLoss)
}

// FormatAlertRecord renders a RISK_ALERT record.
func FormatAlertRecord(text string) string {
	return "RISK_ALERT," + text
}

// FormatLimitBreachRecord renders a RISK_LIMIT_BREACH record.
func FormatLimitBreachRecord(l Limit) string {
	return fmt.Sprintf("RISK_LIMIT_BREACH,%s,%.6f,%.6f,%.1f,%s",
		l.Type, l.Current, l.Limit, l.UtilizationPct, l.Description)
}
