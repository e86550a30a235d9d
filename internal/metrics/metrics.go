// Package metrics exposes the Prometheus instrumentation for the
// trading cores.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Engine metrics
	ticksIngested    prometheus.Counter
	engineCycles     prometheus.Counter
	cycleDuration    prometheus.Histogram
	signalsGenerated *prometheus.CounterVec
	signalsRejected  *prometheus.CounterVec
	openPositions    prometheus.Gauge
	portfolioValue   prometheus.Gauge

	// Order book metrics
	ordersAdded     *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	tradesMatched   prometheus.Counter
	tradedVolume    prometheus.Counter

	// Risk metrics
	riskSamples        prometheus.Counter
	riskSampleDuration prometheus.Histogram
	limitBreaches      *prometheus.CounterVec
	alertsRaised       prometheus.Counter
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		ticksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_ticks_ingested_total",
			Help: "Total market ticks accepted by the engine",
		}),
		engineCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_cycles_total",
			Help: "Total engine dispatch cycles",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_cycle_duration_seconds",
			Help:    "Engine cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		signalsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_generated_total",
			Help: "Signals generated, by strategy",
		}, []string{"strategy"}),
		signalsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_rejected_total",
			Help: "Signals rejected by validation, by reason",
		}, []string{"reason"}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Open positions in the portfolio",
		}),
		portfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_portfolio_value",
			Help: "Marked portfolio value including cash",
		}),

		ordersAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbook_orders_added_total",
			Help: "Orders admitted to the book, by side",
		}, []string{"side"}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderbook_orders_cancelled_total",
			Help: "Orders cancelled",
		}),
		tradesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderbook_trades_matched_total",
			Help: "Trades produced by matching",
		}),
		tradedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderbook_traded_volume_total",
			Help: "Total matched quantity",
		}),

		riskSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risk_samples_total",
			Help: "Risk metric samples computed",
		}),
		riskSampleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_sample_duration_seconds",
			Help:    "Risk sample duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		limitBreaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_limit_breaches_total",
			Help: "Risk limit breaches, by limit type",
		}, []string{"type"}),
		alertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risk_alerts_total",
			Help: "Informational risk alerts raised",
		}),
	}

	reg.MustRegister(
		r.ticksIngested,
		r.engineCycles,
		r.cycleDuration,
		r.signalsGenerated,
		r.signalsRejected,
		r.openPositions,
		r.portfolioValue,
		r.ordersAdded,
		r.ordersCancelled,
		r.tradesMatched,
		r.tradedVolume,
		r.riskSamples,
		r.riskSampleDuration,
		r.limitBreaches,
		r.alertsRaised,
	)

	return r
}

// TickIngested counts one accepted tick.
func (r *Registry) TickIngested() { r.ticksIngested.Inc() }

// CycleCompleted counts one engine cycle with its duration.
func (r *Registry) CycleCompleted(seconds float64) {
	r.engineCycles.Inc()
	r.cycleDuration.Observe(seconds)
}

// SignalGenerated counts a signal for a strategy.
func (r *Registry) SignalGenerated(strategy string) {
	r.signalsGenerated.WithLabelValues(strategy).Inc()
}

// SignalRejected counts a rejected signal by reason.
func (r *Registry) SignalRejected(reason string) {
	r.signalsRejected.WithLabelValues(reason).Inc()
}

// SetOpenPositions records the current open position count.
func (r *Registry) SetOpenPositions(n int) { r.openPositions.Set(float64(n)) }

// SetPortfolioValue records the marked portfolio value.
func (r *Registry) SetPortfolioValue(v float64) { r.portfolioValue.Set(v) }

// OrderAdded counts an admitted order by side.
func (r *Registry) OrderAdded(side string) { r.ordersAdded.WithLabelValues(side).Inc() }

// OrderCancelled counts a cancellation.
func (r *Registry) OrderCancelled() { r.ordersCancelled.Inc() }

// TradeMatched counts a trade and its quantity.
func (r *Registry) TradeMatched(quantity float64) {
	r.tradesMatched.Inc()
	r.tradedVolume.Add(quantity)
}

// RiskSampled counts a risk sample with its duration.
func (r *Registry) RiskSampled(seconds float64) {
	r.riskSamples.Inc()
	r.riskSampleDuration.Observe(seconds)
}

// LimitBreached counts a breach by limit type.
func (r *Registry) LimitBreached(limitType string) {
	r.limitBreaches.WithLabelValues(limitType).Inc()
}

// AlertRaised counts an informational alert.
func (r *Registry) AlertRaised() { r.alertsRaised.Inc() }
