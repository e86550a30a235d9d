package risk

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/quantcore/internal/core"
)

type recordSink struct {
	mu      sync.Mutex
	records []string
}

func (r *recordSink) emit(record string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *recordSink) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.records...)
}

func fixedSource(positions ...core.Position) PositionSource {
	return func() []core.Position { return positions }
}

func TestService_SampleEmitsRecords(t *testing.T) {
	e := NewEngine(1, nil)
	sink := &recordSink{}

	svc := NewService(e, fixedSource(stockPos("AAPL", 1000, 100)), nil, WithEmitter(sink.emit))
	m := svc.Sample()

	if m.PortfolioValue != 100_000 {
		t.Errorf("sample portfolio value %f", m.PortfolioValue)
	}

	records := sink.all()
	var hasMetrics, hasGreeks bool
	for _, r := range records {
		if strings.HasPrefix(r, "RISK_METRICS,") {
			hasMetrics = true
		}
		if strings.HasPrefix(r, "PORTFOLIO_GREEKS,") {
			hasGreeks = true
		}
	}
	if !hasMetrics || !hasGreeks {
		t.Errorf("sample should emit metrics and greeks records: %v", records)
	}

	if got := svc.LastMetrics(); got.PortfolioValue != m.PortfolioValue {
		t.Error("LastMetrics should return the sampled value")
	}
	if got := svc.LastLimits(); len(got) != 3 {
		t.Errorf("expected 3 evaluated limits, got %d", len(got))
	}
}

func TestService_SampleEmitsBreaches(t *testing.T) {
	e := NewEngine(1, nil)
	sink := &recordSink{}

	// Concentrated single-name book: concentration breach guaranteed.
	svc := NewService(e, fixedSource(stockPos("AAPL", 1000, 100)), nil, WithEmitter(sink.emit))
	svc.Sample()

	var breach bool
	for _, r := range sink.all() {
		if strings.HasPrefix(r, "RISK_LIMIT_BREACH,") {
			breach = true
		}
	}
	if !breach {
		t.Error("fully concentrated book should emit a limit breach record")
	}
}

func TestService_StressEmitsAllScenarios(t *testing.T) {
	e := NewEngine(1, nil)
	sink := &recordSink{}

	svc := NewService(e, fixedSource(stockPos("AAPL", 1000, 100)), nil, WithEmitter(sink.emit))
	results := svc.Stress()
	if len(results) != 4 {
		t.Fatalf("expected 4 scenario results, got %d", len(results))
	}

	var stressRecords int
	for _, r := range sink.all() {
		if strings.HasPrefix(r, "STRESS_TEST_RESULT,") {
			stressRecords++
		}
	}
	if stressRecords != 4 {
		t.Errorf("expected 4 stress records, got %d", stressRecords)
	}
}

func TestService_Lifecycle(t *testing.T) {
	e := NewEngine(1, nil)
	svc := NewService(e, fixedSource(stockPos("AAPL", 10, 100)), nil,
		WithIntervals(10*time.Millisecond, time.Hour))

	if svc.Running() {
		t.Fatal("not started yet")
	}

	svc.Start(context.Background())
	if !svc.Running() {
		t.Fatal("should be running")
	}

	// Idempotent start.
	svc.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	svc.Stop()
	if svc.Running() {
		t.Fatal("should be stopped")
	}

	// The immediate first sample must have landed.
	if svc.LastMetrics().PortfolioValue != 1000 {
		t.Errorf("first sample missing: %+v", svc.LastMetrics())
	}

	// Idempotent stop.
	svc.Stop()
}

func TestService_CustomLimits(t *testing.T) {
	e := NewEngine(1, nil)
	tight := []Limit{{Type: LimitLeverage, Limit: 0.5, Description: "tight"}}

	svc := NewService(e, fixedSource(stockPos("AAPL", 10, 100)), nil, WithLimits(tight))
	svc.Sample()

	limits := svc.LastLimits()
	if len(limits) != 1 || limits[0].Type != LimitLeverage {
		t.Fatalf("custom limits not used: %+v", limits)
	}
	if !limits[0].Breached {
		t.Error("1x leverage should breach a 0.5x limit")
	}
}
