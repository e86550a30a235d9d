package risk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/core"
)

// Default sampling cadences.
const (
	DefaultSampleInterval = 30 * time.Second
	DefaultStressInterval = 5 * time.Minute
)

// PositionSource supplies a consistent position snapshot on demand.
type PositionSource func() []core.Position

// Service runs the risk engine on its own cadence: a fast metrics
// sample and a slower stress sweep. Start/Stop is a boolean lifecycle;
// the service owns its loop goroutine and stops cooperatively.
type Service struct {
	engine *Engine
	source PositionSource
	limits []Limit
	logger *zap.Logger

	sampleInterval time.Duration
	stressInterval time.Duration

	// Emit receives formatted risk egress records; nil drops them.
	emit func(record string)

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastMetrics Metrics
	lastLimits  []Limit
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithIntervals overrides the sample and stress cadences.
func WithIntervals(sample, stress time.Duration) ServiceOption {
	return func(s *Service) {
		if sample > 0 {
			s.sampleInterval = sample
		}
		if stress > 0 {
			s.stressInterval = stress
		}
	}
}

// WithEmitter wires the risk egress record sink.
func WithEmitter(emit func(string)) ServiceOption {
	return func(s *Service) { s.emit = emit }
}

// WithLimits replaces the default limit book.
func WithLimits(limits []Limit) ServiceOption {
	return func(s *Service) { s.limits = limits }
}

// NewService creates a risk service over the engine and position
// source.
func NewService(engine *Engine, source PositionSource, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		engine:         engine,
		source:         source,
		limits:         DefaultLimits(),
		logger:         logger,
		sampleInterval: DefaultSampleInterval,
		stressInterval: DefaultStressInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins sampling. It is a no-op when already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("risk monitoring started",
		zap.Duration("sample_interval", s.sampleInterval),
		zap.Duration("stress_interval", s.stressInterval),
	)
}

// Stop halts sampling and waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("risk monitoring stopped")
}

// Running reports the lifecycle state.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastMetrics returns the most recent sample.
func (s *Service) LastMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMetrics
}

// LastLimits returns the most recent limit evaluation.
func (s *Service) LastLimits() []Limit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Limit(nil), s.lastLimits...)
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	sampleTicker := time.NewTicker(s.sampleInterval)
	stressTicker := time.NewTicker(s.stressInterval)
	defer sampleTicker.Stop()
	defer stressTicker.Stop()

	// Take an immediate first sample so consumers see state promptly.
	s.Sample()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sampleTicker.C:
			s.Sample()
		case <-stressTicker.C:
			s.Stress()
		}
	}
}

// Sample recomputes metrics, limits and alerts over a fresh snapshot.
// One bad sample never halts the loop.
func (s *Service) Sample() Metrics {
	positions := s.source()

	metrics := s.engine.PortfolioMetrics(positions)
	limits := s.engine.CheckLimits(positions, s.limits)

	s.mu.Lock()
	s.lastMetrics = metrics
	s.lastLimits = limits
	s.mu.Unlock()

	s.publish(FormatMetricsRecord(metrics))
	s.publish(FormatGreeksRecord(metrics.Greeks))

	for _, alert := range CheckAlerts(metrics) {
		s.logger.Warn("risk alert", zap.String("alert", alert))
		s.publish(FormatAlertRecord(alert))
	}
	for _, breach := range BreachedLimits(limits) {
		s.logger.Error("risk limit breached",
			zap.String("type", string(breach.Type)),
			zap.Float64("current", breach.Current),
			zap.Float64("limit", breach.Limit),
		)
		s.publish(FormatLimitBreachRecord(breach))
	}

	return metrics
}

// Stress runs the standard scenario book over a fresh snapshot.
func (s *Service) Stress() []StressResult {
	positions := s.source()
	results := s.engine.RunStandardStressTests(positions, s.limits)

	for _, r := range results {
		s.logger.Info("stress scenario",
			zap.String("scenario", r.Scenario),
			zap.Float64("pnl", r.PortfolioPnL),
			zap.Float64("return", r.PortfolioReturn),
			zap.String("worst", r.WorstSymbol),
		)
		s.publish(FormatStressRecord(r))
	}
	return results
}

func (s *Service) publish(record string) {
	if s.emit != nil {
		s.emit(record)
	}
}
