// Package engine runs the algorithmic trading loop: tick ingest,
// strategy dispatch, signal validation, position mutation,
// mark-to-market and periodic risk sampling.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/core"
	"github.com/newthinker/quantcore/internal/indicator"
	"github.com/newthinker/quantcore/internal/metrics"
	"github.com/newthinker/quantcore/internal/options"
	"github.com/newthinker/quantcore/internal/portfolio"
	"github.com/newthinker/quantcore/internal/risk"
	"github.com/newthinker/quantcore/internal/strategy"
)

// Config holds the engine options.
type Config struct {
	// MaxPortfolioRisk caps a single signal's value as a fraction of
	// portfolio value.
	MaxPortfolioRisk float64
	// MinConfidence rejects signals below this confidence.
	MinConfidence float64
	// TickInterval is the cycle sleep.
	TickInterval time.Duration
	// RiskSampleEveryNCycles sets the risk sampling cadence.
	RiskSampleEveryNCycles int
	// ReturnHistoryCap bounds the per-symbol return series kept for the
	// risk engine.
	ReturnHistoryCap int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxPortfolioRisk:       0.02,
		MinConfidence:          0.6,
		TickInterval:           time.Second,
		RiskSampleEveryNCycles: 60,
		ReturnHistoryCap:       252,
	}
}

// Engine is the single-threaded cooperative scheduler. Only the engine
// goroutine mutates frames and positions; tick ingress hands off
// through a channel.
type Engine struct {
	cfg      Config
	registry *strategy.Registry
	book     *portfolio.Book
	risk     *risk.Engine
	logger   *zap.Logger
	metrics  *metrics.Registry

	frames    map[string]*indicator.Frame
	latest    map[string]core.Tick
	lastPrice map[string]float64
	returns   map[string][]float64

	ticks chan core.Tick

	// onSignal observes every executed signal; the app uses it to route
	// orders to the book.
	onSignal func(core.Signal)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	cycles int
}

// SetSignalHook installs the executed-signal observer. Must be called
// before Start.
func (e *Engine) SetSignalHook(hook func(core.Signal)) {
	e.onSignal = hook
}

// New creates an engine. The metrics registry may be nil.
func New(cfg Config, reg *strategy.Registry, book *portfolio.Book, riskEngine *risk.Engine, logger *zap.Logger, m *metrics.Registry) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPortfolioRisk <= 0 {
		cfg.MaxPortfolioRisk = 0.02
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.RiskSampleEveryNCycles <= 0 {
		cfg.RiskSampleEveryNCycles = 60
	}
	if cfg.ReturnHistoryCap <= 0 {
		cfg.ReturnHistoryCap = 252
	}
	return &Engine{
		cfg:       cfg,
		registry:  reg,
		book:      book,
		risk:      riskEngine,
		logger:    logger,
		metrics:   m,
		frames:    make(map[string]*indicator.Frame),
		latest:    make(map[string]core.Tick),
		lastPrice: make(map[string]float64),
		returns:   make(map[string][]float64),
		ticks:     make(chan core.Tick, 1024),
	}
}

// Ingest hands a tick to the engine thread. It never blocks; a full
// buffer drops the tick and reports false.
func (e *Engine) Ingest(t core.Tick) bool {
	if !t.IsValid() {
		return false
	}
	select {
	case e.ticks <- t:
		return true
	default:
		e.logger.Warn("tick buffer full, dropping", zap.String("symbol", t.Symbol))
		return false
	}
}

// Start launches the engine loop.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.loop(loopCtx)

	e.logger.Info("algorithmic engine started", zap.Duration("tick_interval", e.cfg.TickInterval))
}

// Stop halts the loop cooperatively and waits for it.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("algorithmic engine stopped")
}

// Running reports the lifecycle state.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Positions returns a consistent snapshot of the portfolio, for the
// risk service.
func (e *Engine) Positions() []core.Position {
	return e.book.Snapshot()
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunCycle()
		}
	}
}

// RunCycle executes one full engine cycle: drain pending ticks, then
// dispatch, validate, execute, mark to market and sample risk on its
// cadence. Exposed for synchronous use by tests.
func (e *Engine) RunCycle() {
	started := time.Now()

	e.drainTicks()
	if len(e.latest) == 0 {
		return
	}

	signals := e.registry.GenerateSignals(e.contexts())
	for _, sig := range signals {
		if e.metrics != nil {
			e.metrics.SignalGenerated(sig.Strategy)
		}
		if err := e.validateSignal(sig); err != nil {
			// Rejections are logged, never raised.
			e.logger.Info("signal rejected",
				zap.String("strategy", sig.Strategy),
				zap.String("symbol", sig.Symbol),
				zap.String("kind", string(sig.Kind)),
				zap.Error(err),
			)
			continue
		}
		e.executeSignal(sig)
	}

	e.markToMarket()

	e.cycles++
	if e.cycles%e.cfg.RiskSampleEveryNCycles == 0 {
		e.sampleRisk()
	}

	if e.metrics != nil {
		e.metrics.CycleCompleted(time.Since(started).Seconds())
		e.metrics.SetOpenPositions(e.book.Len())
		e.metrics.SetPortfolioValue(e.book.Value())
	}
}

// ProcessTick ingests one tick synchronously and runs a cycle. Test
// convenience; the live path goes through Ingest + the loop.
func (e *Engine) ProcessTick(t core.Tick) {
	if t.IsValid() {
		e.acceptTick(t)
	}
	e.RunCycle()
}

func (e *Engine) drainTicks() {
	for {
		select {
		case t := <-e.ticks:
			e.acceptTick(t)
		default:
			return
		}
	}
}

func (e *Engine) acceptTick(t core.Tick) {
	frame, ok := e.frames[t.Symbol]
	if !ok {
		frame = indicator.NewFrame(t.Symbol)
		e.frames[t.Symbol] = frame
	}
	frame.Update(t)
	e.latest[t.Symbol] = t

	if last, ok := e.lastPrice[t.Symbol]; ok && last > 0 {
		r := (t.Price - last) / last
		series := append(e.returns[t.Symbol], r)
		if len(series) > e.cfg.ReturnHistoryCap {
			series = series[len(series)-e.cfg.ReturnHistoryCap:]
		}
		e.returns[t.Symbol] = series
	}
	e.lastPrice[t.Symbol] = t.Price

	if e.metrics != nil {
		e.metrics.TickIngested()
	}
}

func (e *Engine) contexts() map[string]strategy.Context {
	out := make(map[string]strategy.Context, len(e.latest))
	for sym, tick := range e.latest {
		out[sym] = strategy.Context{
			Tick:       tick,
			Indicators: e.frames[sym].Snapshot(),
		}
	}
	return out
}

// validateSignal applies the risk gate: structural validity, position
// value versus portfolio risk budget, and minimum confidence.
func (e *Engine) validateSignal(sig core.Signal) error {
	if err := sig.Validate(); err != nil {
		if e.metrics != nil {
			e.metrics.SignalRejected("invalid")
		}
		return err
	}
	if sig.Kind == core.SignalHold {
		return nil
	}

	portfolioValue := e.book.Value()
	if portfolioValue > 0 {
		positionValue := sig.Price * sig.Quantity
		if positionValue/portfolioValue > e.cfg.MaxPortfolioRisk {
			if e.metrics != nil {
				e.metrics.SignalRejected("portfolio_risk")
			}
			return core.WrapError(core.ErrRiskRejected,
				errValue("position value %.2f exceeds %.2f%% of portfolio", positionValue, e.cfg.MaxPortfolioRisk*100))
		}
	}

	if sig.Confidence < e.cfg.MinConfidence {
		if e.metrics != nil {
			e.metrics.SignalRejected("confidence")
		}
		return core.WrapError(core.ErrRiskRejected,
			errValue("confidence %.2f below %.2f", sig.Confidence, e.cfg.MinConfidence))
	}

	return nil
}

func (e *Engine) executeSignal(sig core.Signal) {
	pos, err := e.book.Apply(sig)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// CLOSE_POSITION for something already flat.
			e.logger.Debug("close for missing position", zap.String("symbol", sig.Symbol))
			return
		}
		e.logger.Warn("signal execution failed", zap.String("symbol", sig.Symbol), zap.Error(err))
		return
	}

	if pos.IsOption && pos.Quantity != 0 {
		e.markOption(pos)
	}

	if s, ok := e.registry.Get(sig.Strategy); ok {
		s.UpdatePosition(pos)
	}
	if e.onSignal != nil {
		e.onSignal(sig)
	}

	e.logger.Info("signal executed",
		zap.String("strategy", sig.Strategy),
		zap.String("symbol", sig.Symbol),
		zap.String("kind", string(sig.Kind)),
		zap.Float64("price", sig.Price),
		zap.Float64("quantity", sig.Quantity),
		zap.Float64("confidence", sig.Confidence),
	)
}

// markToMarket refreshes every position from the latest tick; options
// are repriced with the model and their Greeks refreshed.
func (e *Engine) markToMarket() {
	for _, pos := range e.book.Snapshot() {
		tick, ok := e.latest[pos.Symbol]
		if !ok {
			continue
		}
		if pos.IsOption {
			pos.CurrentPrice = tick.Price // spot carried for repricing
			e.markOption(pos)
			continue
		}
		e.book.Mark(pos.Key(), tick.Price, nil)
	}
}

// markOption reprices an option position off the latest underlying
// spot with the placeholder vol and refreshes its Greeks.
func (e *Engine) markOption(pos core.Position) {
	tick, ok := e.latest[pos.Symbol]
	if !ok {
		return
	}

	timeToExp := pos.Expiration.Sub(tick.Time).Hours() / 24 / 365
	if timeToExp < 0 {
		timeToExp = 0
	}
	params := options.Params{
		Spot:       tick.Price,
		Strike:     pos.Strike,
		TimeToExp:  timeToExp,
		RiskFree:   0.05,
		Volatility: 0.20,
		IsCall:     pos.IsCall,
	}

	price, err := options.Price(params)
	if err != nil {
		e.logger.Debug("option mark failed", zap.String("symbol", pos.Symbol), zap.Error(err))
		return
	}
	greeks, err := options.Greeks(params)
	if err != nil {
		greeks = core.Greeks{}
	}
	e.book.Mark(pos.Key(), price, &greeks)
}

// sampleRisk pushes the captured return history into the risk engine
// and computes a metrics sample.
func (e *Engine) sampleRisk() {
	started := time.Now()

	for sym, series := range e.returns {
		if len(series) > 1 {
			e.risk.SetReturnHistory(sym, series)
		}
	}

	m := e.risk.PortfolioMetrics(e.book.Snapshot())
	e.logger.Info("risk sample",
		zap.Float64("portfolio_value", m.PortfolioValue),
		zap.Float64("var95", m.VaR95),
		zap.Float64("leverage", m.Leverage),
	)

	if e.metrics != nil {
		e.metrics.RiskSampled(time.Since(started).Seconds())
	}
}

func errValue(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
