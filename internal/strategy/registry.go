package strategy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/core"
)

// Registry manages strategies and owns their enabled flag. Strategies
// never mutate their own configuration; toggling goes through the
// owner.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *zap.Logger
}

type entry struct {
	strategy Strategy
	enabled  bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a strategy under its name. The initial enabled state
// comes from the strategy's configuration.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if name == "" {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("strategy name empty"))
	}
	if _, exists := r.entries[name]; exists {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("strategy %q already registered", name))
	}
	r.entries[name] = &entry{strategy: s, enabled: s.Config().Enabled}
	r.logger.Info("strategy registered", zap.String("strategy", name))
	return nil
}

// Remove deletes a strategy by name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return core.WrapError(core.ErrNotFound, fmt.Errorf("strategy %q", name))
	}
	delete(r.entries, name)
	r.logger.Info("strategy removed", zap.String("strategy", name))
	return nil
}

// SetEnabled toggles a strategy through the owner.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[name]
	if !exists {
		return core.WrapError(core.ErrNotFound, fmt.Errorf("strategy %q", name))
	}
	e.enabled = enabled
	r.logger.Info("strategy toggled", zap.String("strategy", name), zap.Bool("enabled", enabled))
	return nil
}

// Get returns a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.strategy, true
}

// Enabled returns the currently enabled strategies.
func (r *Registry) Enabled() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Strategy, 0, len(r.entries))
	for _, e := range r.entries {
		if e.enabled {
			out = append(out, e.strategy)
		}
	}
	return out
}

// GenerateSignals runs each enabled strategy over the contexts matching
// its symbol universe. A failing or panicking strategy is logged and
// skipped for the cycle; it never brings down the caller.
func (r *Registry) GenerateSignals(bySymbol map[string]Context) []core.Signal {
	strategies := r.Enabled()

	var all []core.Signal
	for _, s := range strategies {
		ctxs := contextsFor(s, bySymbol)
		if len(ctxs) == 0 {
			continue
		}

		signals, err := generateIsolated(s, ctxs)
		if err != nil {
			r.logger.Warn("strategy signal generation failed",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}

		for i := range signals {
			if signals[i].Strategy == "" {
				signals[i].Strategy = s.Name()
			}
		}
		all = append(all, signals...)
	}
	return all
}

func contextsFor(s Strategy, bySymbol map[string]Context) []Context {
	cfg := s.Config()
	ctxs := make([]Context, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		if ctx, ok := bySymbol[sym]; ok {
			ctxs = append(ctxs, ctx)
		}
	}
	return ctxs
}

// generateIsolated converts a strategy panic into an error so one bad
// strategy cannot halt the cycle.
func generateIsolated(s Strategy, ctxs []Context) (signals []core.Signal, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			signals = nil
			err = fmt.Errorf("strategy panic: %v", rec)
		}
	}()
	return s.GenerateSignals(ctxs)
}
