package marketdata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quantcore/internal/core"
)

// Handlers receives decoded ingress records. Nil handlers drop their
// record type.
type Handlers struct {
	Tick       func(core.Tick)
	Indicators func(IndicatorRecord)
	Options    func(OptionQuote)
}

// Feed drains raw ingress records from a line channel, decodes them and
// dispatches to the handlers. Unparsable records are dropped with a
// warning; they never stop the feed. The loop honors a cooperative
// stop via its context.
type Feed struct {
	lines    <-chan string
	handlers Handlers
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewFeed creates a feed over the line source.
func NewFeed(lines <-chan string, handlers Handlers, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		lines:    lines,
		handlers: handlers,
		logger:   logger,
	}
}

// Start launches the dispatch loop.
func (f *Feed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return
	}
	f.running = true

	loopCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	go f.loop(loopCtx)
}

// Stop halts the loop and waits for it to exit. Records still buffered
// in the line channel are not dispatched.
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	cancel := f.cancel
	f.mu.Unlock()

	cancel()
	f.wg.Wait()
}

func (f *Feed) loop(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-f.lines:
			if !ok {
				return
			}
			f.Dispatch(line)
		}
	}
}

// Dispatch decodes one record and routes it. Exposed for synchronous
// use in tests.
func (f *Feed) Dispatch(line string) {
	switch {
	case strings.HasPrefix(line, RecordMarketData+","):
		tick, err := ParseTick(line, time.Now())
		if err != nil {
			f.warn(line, err)
			return
		}
		if f.handlers.Tick != nil {
			f.handlers.Tick(tick)
		}

	case strings.HasPrefix(line, RecordIndicators+","):
		rec, err := ParseIndicators(line)
		if err != nil {
			f.warn(line, err)
			return
		}
		if f.handlers.Indicators != nil {
			f.handlers.Indicators(rec)
		}

	case strings.HasPrefix(line, RecordOptions+","):
		quote, err := ParseOptionQuote(line)
		if err != nil {
			f.warn(line, err)
			return
		}
		if f.handlers.Options != nil {
			f.handlers.Options(quote)
		}

	default:
		f.warn(line, errors.New("unknown record type"))
	}
}

func (f *Feed) warn(line string, err error) {
	f.logger.Warn("dropping unparsable record",
		zap.String("record", line),
		zap.Error(err),
	)
}
