// Package app wires the trading cores together: market-data feed,
// algorithmic engine, risk service and per-symbol order books.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/config"
	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/engine"
	"github.com/newthinker/quantcore/internal/marketdata"
	"github.com/newthinker/quantcore/internal/metrics"
	"github.com/newthinker/quantcore/internal/orderbook"
	"github.com/newthinker/quantcore/internal/portfolio"
	"github.com/newthinker/quantcore/internal/risk"
	"github.com/newthinker/quantcore/internal/strategy"
	"github.com/newthinker/quantcore/internal/strategy/momentum"
	"github.com/newthinker/quantcore/internal/strategy/optionstrat"
)

// App is the application orchestrator. Shutdown runs leaf-first:
// market-data feed, then engine, then risk service; the order books are
// passive and need no teardown.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry

	registry  *strategy.Registry
	portfolio *portfolio.Book
	engine    *engine.Engine
	riskEng   *risk.Engine
	riskSvc   *risk.Service
	feed      *marketdata.Feed
	limiter   *marketdata.RateLimiter

	lines chan string
	emit  func(string)

	mu         sync.Mutex
	books      map[string]*orderbook.Book
	chains     map[string]*optionstrat.Chain
	optionStrs []*optionstrat.Strategy
	external   map[string]marketdata.IndicatorRecord
	running    bool
}

// Option customizes the App.
type Option func(*App)

// WithEmitter overrides the egress record sink; the default logs.
func WithEmitter(emit func(string)) Option {
	return func(a *App) { a.emit = emit }
}

// WithMetrics installs a Prometheus registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(a *App) { a.metrics = m }
}

// New builds the full application from configuration.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		lines:    make(chan string, 1024),
		books:    make(map[string]*orderbook.Book),
		chains:   make(map[string]*optionstrat.Chain),
		external: make(map[string]marketdata.IndicatorRecord),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.emit == nil {
		a.emit = func(record string) {
			logger.Info("egress", zap.String("record", record))
		}
	}

	a.registry = strategy.NewRegistry(logger)
	a.portfolio = portfolio.NewBook(cfg.Engine.StartingCapital)
	a.riskEng = risk.NewEngine(time.Now().UnixNano(), logger)

	if err := a.buildStrategies(); err != nil {
		return nil, err
	}

	engCfg := engine.Config{
		MaxPortfolioRisk:       cfg.Engine.MaxPortfolioRisk,
		TickInterval:           cfg.Engine.TickInterval(),
		RiskSampleEveryNCycles: cfg.Engine.RiskSampleEveryNTicks,
	}
	a.engine = engine.New(engCfg, a.registry, a.portfolio, a.riskEng, logger, a.metrics)
	a.engine.SetSignalHook(a.routeSignal)

	a.riskSvc = risk.NewService(a.riskEng, a.engine.Positions, logger,
		risk.WithIntervals(cfg.Risk.SampleInterval(), cfg.Risk.StressInterval()),
		risk.WithEmitter(a.emit),
		risk.WithLimits([]risk.Limit{
			{Type: risk.LimitPortfolioVaR, Limit: cfg.Risk.VaRLimit, Description: "Daily portfolio VaR, 95% confidence"},
			{Type: risk.LimitLeverage, Limit: cfg.Risk.LeverageLimit, Description: "Maximum portfolio leverage"},
			{Type: risk.LimitConcentration, Limit: cfg.Risk.ConcentrationLimit, Description: "Maximum single-position concentration"},
		}),
	)

	a.limiter = marketdata.NewRateLimiter(cfg.MarketData.RateLimitCalls,
		time.Duration(cfg.MarketData.RateLimitWindowSeconds)*time.Second)

	a.feed = marketdata.NewFeed(a.lines, marketdata.Handlers{
		Tick:       func(t core.Tick) { a.engine.Ingest(t) },
		Indicators: a.acceptIndicators,
		Options:    a.acceptOptionQuote,
	}, logger)

	return a, nil
}

func (a *App) buildStrategies() error {
	for name, sc := range a.cfg.Strategies {
		cc := sc.CoreStrategyConfig(name)

		var s strategy.Strategy
		switch cc.Type {
		case core.StrategyMomentum:
			s = momentum.New(cc)
		case core.StrategyStraddle, core.StrategyStrangle, core.StrategyCoveredCall,
			core.StrategyProtectivePut, core.StrategyIronCondor, core.StrategyButterfly:
			os := optionstrat.New(cc)
			a.optionStrs = append(a.optionStrs, os)
			s = os
		default:
			return core.WrapError(core.ErrInvalidParams,
				fmt.Errorf("strategy %q has unknown type %q", name, cc.Type))
		}

		if err := a.registry.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Start brings the cores up: risk first, then engine, then the feed so
// nothing flows before its consumer is ready.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	a.riskSvc.Start(ctx)
	a.engine.Start(ctx)
	a.feed.Start(ctx)

	a.logger.Info("quantcore started",
		zap.Int("strategies", len(a.cfg.Strategies)),
		zap.Strings("symbols", a.cfg.MarketData.Symbols),
	)
}

// Stop shuts down leaf-first: feed, engine, risk.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	a.feed.Stop()
	a.engine.Stop()
	a.riskSvc.Stop()
	a.logger.Info("quantcore stopped")
}

// Lines is the raw ingress channel for collaborator records.
func (a *App) Lines() chan<- string { return a.lines }

// Ingest pushes one raw record, honoring the fetch rate limiter.
// Returns RATE_LIMITED when the window is exhausted.
func (a *App) Ingest(record string) error {
	if !a.limiter.TryCall() {
		return core.WrapError(core.ErrRateLimited,
			fmt.Errorf("retry in %ds", a.limiter.SecondsUntilReset()))
	}
	select {
	case a.lines <- record:
		return nil
	default:
		return core.WrapError(core.ErrTransient, fmt.Errorf("ingress buffer full"))
	}
}

// Book returns the order book for a symbol, creating it on first use.
func (a *App) Book(symbol string) *orderbook.Book {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.books[symbol]
	if !ok {
		b = orderbook.New(symbol, a.logger)
		a.books[symbol] = b
	}
	return b
}

// Portfolio returns the position book.
func (a *App) Portfolio() *portfolio.Book { return a.portfolio }

// RiskService returns the risk service.
func (a *App) RiskService() *risk.Service { return a.riskSvc }

// Registry returns the strategy registry.
func (a *App) Registry() *strategy.Registry { return a.registry }

// ExternalIndicators returns the latest collaborator-supplied
// indicator record for a symbol.
func (a *App) ExternalIndicators(symbol string) (marketdata.IndicatorRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.external[symbol]
	return rec, ok
}

// routeSignal converts an executed equity signal into a limit order on
// the symbol's book and emits trade egress records for any matches.
// Option legs stay off the book; they fill at model price.
func (a *App) routeSignal(sig core.Signal) {
	if sig.Kind != core.SignalBuy && sig.Kind != core.SignalSell {
		return
	}

	side := orderbook.SideBuy
	if sig.Kind == core.SignalSell {
		side = orderbook.SideSell
	}
	order := orderbook.Order{
		Symbol:   sig.Symbol,
		Side:     side,
		Type:     orderbook.TypeLimit,
		Price:    sig.Price,
		Quantity: sig.Quantity,
		Time:     sig.Time,
		ClientID: sig.Strategy,
	}

	book := a.Book(sig.Symbol)
	trades, err := book.AddOrder(order)
	if err != nil {
		a.logger.Warn("order routing failed", zap.String("symbol", sig.Symbol), zap.Error(err))
		return
	}
	if a.metrics != nil {
		a.metrics.OrderAdded(string(side))
	}
	for _, t := range trades {
		if a.metrics != nil {
			a.metrics.TradeMatched(t.Quantity)
		}
		a.emit(marketdata.FormatTradeRecord(t))
	}
}

func (a *App) acceptIndicators(rec marketdata.IndicatorRecord) {
	a.mu.Lock()
	a.external[rec.Symbol] = rec
	a.mu.Unlock()
}

// acceptOptionQuote folds a chain entry into the per-underlying chain
// and refreshes every options strategy.
func (a *App) acceptOptionQuote(q marketdata.OptionQuote) {
	a.mu.Lock()
	chain, ok := a.chains[q.Underlying]
	if !ok {
		chain = &optionstrat.Chain{
			Underlying:  q.Underlying,
			CallMarks:   make(map[float64]float64),
			PutMarks:    make(map[float64]float64),
			ImpliedVols: make(map[float64]float64),
		}
		a.chains[q.Underlying] = chain
	}

	known := false
	for _, k := range chain.Strikes {
		if k == q.Strike {
			known = true
			break
		}
	}
	if !known {
		chain.Strikes = append(chain.Strikes, q.Strike)
	}
	if q.IsCall {
		chain.CallMarks[q.Strike] = q.Price
	} else {
		chain.PutMarks[q.Strike] = q.Price
	}
	if q.IV > 0 {
		chain.ImpliedVols[q.Strike] = q.IV
	}
	chain.Expiration = q.Expiration
	a.mu.Unlock()

	for _, s := range a.optionStrs {
		s.SetChain(chain)
	}
}
