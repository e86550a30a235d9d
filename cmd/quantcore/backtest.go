package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/quantcore/internal/backtest"
	"github.com/newthinker/quantcore/internal/config"
	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/logger"
	"github.com/newthinker/quantcore/internal/strategy"
	"github.com/newthinker/quantcore/internal/strategy/momentum"
	"github.com/newthinker/quantcore/internal/strategy/optionstrat"
)

var (
	backtestSymbol  string
	backtestFrom    string
	backtestTo      string
	backtestCapital float64
	backtestReport  string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run a backtest for a configured strategy",
	Long:  "Replay a deterministic synthetic daily bar series (backtest.GenerateBars) for the symbol and date range through a strategy and print the performance report. With no strategy argument, every configured strategy runs (a default momentum strategy when none is configured); a comparison table prints when more than one strategy runs.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "AAPL", "Symbol to backtest")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 1_000_000, "Starting capital")
	backtestCmd.Flags().StringVar(&backtestReport, "report", "", "Write the report to a file instead of stdout")

	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	fromDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
	}
	toDate, err := time.Parse("2006-01-02", backtestTo)
	if err != nil {
		return fmt.Errorf("invalid to date (expected YYYY-MM-DD): %w", err)
	}
	if toDate.Before(fromDate) {
		return fmt.Errorf("end date must be after start date")
	}

	var cfg *config.Config
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	strategies, err := backtestStrategies(cfg, args)
	if err != nil {
		return err
	}

	days := int(toDate.Sub(fromDate).Hours()/24) + 1
	bars := backtest.GenerateBars(backtestSymbol, days, fromDate, 100)

	bt := backtest.New(log)
	btCfg := backtest.Config{
		Symbols:         []string{backtestSymbol},
		StartingCapital: backtestCapital,
	}

	out := os.Stdout
	if backtestReport != "" {
		f, err := os.Create(backtestReport)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if len(strategies) == 1 {
		result, err := bt.Run(context.Background(), strategies[0], bars, btCfg)
		if err != nil {
			return err
		}
		return backtest.WritePerformanceReport(out, result)
	}

	results, err := bt.RunComparison(context.Background(), strategies, bars, btCfg)
	if err != nil {
		return err
	}
	return backtest.WriteComparisonReport(out, results)
}

func backtestStrategies(cfg *config.Config, args []string) ([]strategy.Strategy, error) {
	build := func(name string, sc config.StrategyConfig) (strategy.Strategy, error) {
		cc := sc.CoreStrategyConfig(name)
		if cc.Type == core.StrategyMomentum {
			return momentum.New(cc), nil
		}
		return optionstrat.New(cc), nil
	}

	if len(args) == 1 {
		sc, ok := cfg.Strategies[args[0]]
		if !ok {
			return nil, fmt.Errorf("strategy %q not configured", args[0])
		}
		s, err := build(args[0], sc)
		if err != nil {
			return nil, err
		}
		return []strategy.Strategy{s}, nil
	}

	if len(cfg.Strategies) == 0 {
		// Nothing configured: default to a momentum strategy.
		cc := core.StrategyConfig{
			Type:            core.StrategyMomentum,
			Name:            "momentum",
			Symbols:         []string{backtestSymbol},
			Enabled:         true,
			MaxPositionSize: 100,
		}
		return []strategy.Strategy{momentum.New(cc)}, nil
	}

	var out []strategy.Strategy
	for name, sc := range cfg.Strategies {
		s, err := build(name, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
