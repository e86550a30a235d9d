// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/quantcore/internal/core"
)

// Config is the full application configuration.
type Config struct {
	Engine     EngineConfig              `mapstructure:"engine"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Risk       RiskConfig                `mapstructure:"risk"`
	MarketData MarketDataConfig          `mapstructure:"marketdata"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
}

// EngineConfig holds the algorithmic engine options.
type EngineConfig struct {
	MaxPortfolioRisk      float64 `mapstructure:"max_portfolio_risk"`
	StartingCapital       float64 `mapstructure:"starting_capital"`
	TickIntervalSeconds   int     `mapstructure:"tick_interval_seconds"`
	RiskSampleEveryNTicks int     `mapstructure:"risk_sample_every_n_ticks"`
}

// TickInterval returns the cycle sleep as a duration.
func (e EngineConfig) TickInterval() time.Duration {
	return time.Duration(e.TickIntervalSeconds) * time.Second
}

// StrategyConfig holds one strategy's settings.
type StrategyConfig struct {
	Type            string             `mapstructure:"type"`
	Enabled         bool               `mapstructure:"enabled"`
	Symbols         []string           `mapstructure:"symbols"`
	MaxPositionSize float64            `mapstructure:"max_position_size"`
	StopLossPct     float64            `mapstructure:"stop_loss_pct"`
	TakeProfitPct   float64            `mapstructure:"take_profit_pct"`
	Params          map[string]float64 `mapstructure:"params"`
}

// RiskConfig holds the risk service options.
type RiskConfig struct {
	SampleIntervalSeconds int     `mapstructure:"sample_interval_seconds"`
	StressIntervalSeconds int     `mapstructure:"stress_interval_seconds"`
	VaRLimit              float64 `mapstructure:"var_limit"`
	LeverageLimit         float64 `mapstructure:"leverage_limit"`
	ConcentrationLimit    float64 `mapstructure:"concentration_limit"`
}

// SampleInterval returns the metrics cadence.
func (r RiskConfig) SampleInterval() time.Duration {
	return time.Duration(r.SampleIntervalSeconds) * time.Second
}

// StressInterval returns the stress cadence.
func (r RiskConfig) StressInterval() time.Duration {
	return time.Duration(r.StressIntervalSeconds) * time.Second
}

// MarketDataConfig holds the market-data collaborator options.
type MarketDataConfig struct {
	Symbols                []string `mapstructure:"symbols"`
	RateLimitCalls         int      `mapstructure:"rate_limit_calls"`
	RateLimitWindowSeconds int      `mapstructure:"rate_limit_window_seconds"`
}

// MetricsConfig holds metrics exposure options.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("QUANTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with the documented defaults.
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxPortfolioRisk:      0.02,
			StartingCapital:       1_000_000,
			TickIntervalSeconds:   1,
			RiskSampleEveryNTicks: 60,
		},
		Strategies: map[string]StrategyConfig{},
		Risk: RiskConfig{
			SampleIntervalSeconds: 30,
			StressIntervalSeconds: 300,
			VaRLimit:              0.02,
			LeverageLimit:         3.0,
			ConcentrationLimit:    0.10,
		},
		MarketData: MarketDataConfig{
			Symbols:                []string{"AAPL", "GOOGL", "TSLA", "MSFT", "AMZN"},
			RateLimitCalls:         4,
			RateLimitWindowSeconds: 60,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Engine.MaxPortfolioRisk <= 0 || c.Engine.MaxPortfolioRisk > 1 {
		return core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("max_portfolio_risk must be in (0,1], got %f", c.Engine.MaxPortfolioRisk))
	}
	if c.Engine.StartingCapital <= 0 {
		return core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("starting_capital must be positive, got %f", c.Engine.StartingCapital))
	}
	if c.Engine.TickIntervalSeconds <= 0 {
		return core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("tick_interval_seconds must be positive, got %d", c.Engine.TickIntervalSeconds))
	}
	if c.Engine.RiskSampleEveryNTicks <= 0 {
		return core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("risk_sample_every_n_ticks must be positive, got %d", c.Engine.RiskSampleEveryNTicks))
	}

	if c.Risk.SampleIntervalSeconds <= 0 || c.Risk.StressIntervalSeconds <= 0 {
		return core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("risk intervals must be positive"))
	}
	if c.Risk.VaRLimit <= 0 || c.Risk.LeverageLimit <= 0 || c.Risk.ConcentrationLimit <= 0 {
		return core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("risk limits must be positive"))
	}

	if c.MarketData.RateLimitCalls <= 0 || c.MarketData.RateLimitWindowSeconds <= 0 {
		return core.WrapError(core.ErrInvalidParams,
			fmt.Errorf("rate limit must allow at least one call per window"))
	}

	for name, sc := range c.Strategies {
		if name == "" {
			return core.WrapError(core.ErrInvalidParams, fmt.Errorf("strategy name empty"))
		}
		if sc.Enabled && len(sc.Symbols) == 0 {
			return core.WrapError(core.ErrInvalidParams,
				fmt.Errorf("strategy %q enabled without symbols", name))
		}
		if sc.MaxPositionSize < 0 {
			return core.WrapError(core.ErrInvalidParams,
				fmt.Errorf("strategy %q max_position_size negative", name))
		}
	}

	return nil
}

// CoreStrategyConfig converts a config entry into the engine's
// strategy configuration.
func (s StrategyConfig) CoreStrategyConfig(name string) core.StrategyConfig {
	params := make(map[string]float64, len(s.Params))
	for k, v := range s.Params {
		params[k] = v
	}
	return core.StrategyConfig{
		Type:            core.StrategyType(strings.ToUpper(s.Type)),
		Name:            name,
		Params:          params,
		Symbols:         append([]string(nil), s.Symbols...),
		Enabled:         s.Enabled,
		MaxPositionSize: s.MaxPositionSize,
		StopLossPct:     s.StopLossPct,
		TakeProfitPct:   s.TakeProfitPct,
	}
}
