package indicator

import (
	"math"

	"github.com/newthinker/quantcore/internal/core"
)

// Standard frame periods.
const (
	smaShortPeriod  = 20
	smaLongPeriod   = 50
	rsiPeriod       = 14
	bollPeriod      = 20
	bollStdDev      = 2.0
	macdFastPeriod  = 12
	macdSlowPeriod  = 26
	macdSignalSpan  = 9
	atrPeriod       = 14
)

// Frame is the per-symbol streaming indicator state, updated once per
// tick. Each indicator keeps only the minimal rolling state it needs.
// Values must not be read before the matching Ready predicate holds.
type Frame struct {
	symbol string
	count  int

	// Rolling close window, long enough for SMA(50) and Bollinger(20).
	window  []float64
	sumShort, sumLong float64

	// RSI(14), Wilder smoothing.
	prevClose        float64
	avgGain, avgLoss float64

	// MACD(12,26,9); EMAs seeded with the first observation.
	emaFast, emaSlow, macdSignal float64
	macdCount                    int

	// ATR(14).
	atr      float64
	atrCount int

	// VWAP from session start.
	pvSum, volSum float64
}

// NewFrame creates an empty frame for the symbol.
func NewFrame(symbol string) *Frame {
	return &Frame{symbol: symbol}
}

// Symbol returns the frame's symbol.
func (f *Frame) Symbol() string { return f.symbol }

// Count returns the number of ticks ingested.
func (f *Frame) Count() int { return f.count }

// Update ingests one tick. Ticks with a non-positive price are ignored.
func (f *Frame) Update(t core.Tick) {
	if t.Price <= 0 {
		return
	}
	price := t.Price

	// Rolling window and running sums.
	f.window = append(f.window, price)
	f.sumShort += price
	f.sumLong += price
	if n := len(f.window); n > smaShortPeriod {
		f.sumShort -= f.window[n-smaShortPeriod-1]
	}
	if n := len(f.window); n > smaLongPeriod {
		f.sumLong -= f.window[0]
		f.window = f.window[1:]
	}

	// RSI.
	if f.count > 0 {
		change := price - f.prevClose
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		if f.count <= rsiPeriod {
			// Accumulate the simple mean of the first period changes.
			f.avgGain += gain / rsiPeriod
			f.avgLoss += loss / rsiPeriod
		} else {
			f.avgGain = (f.avgGain*(rsiPeriod-1) + gain) / rsiPeriod
			f.avgLoss = (f.avgLoss*(rsiPeriod-1) + loss) / rsiPeriod
		}
	}

	// ATR needs a previous close plus high/low on the tick.
	if f.count > 0 && t.High > 0 && t.Low > 0 {
		tr := TrueRange(t.High, t.Low, f.prevClose)
		f.atrCount++
		if f.atrCount <= atrPeriod {
			f.atr += (tr - f.atr) / float64(f.atrCount)
		} else {
			f.atr = (f.atr*(atrPeriod-1) + tr) / atrPeriod
		}
	}

	// MACD EMAs, seeded with the first observation.
	alpha := func(p int) float64 { return 2.0 / float64(p+1) }
	if f.count == 0 {
		f.emaFast = price
		f.emaSlow = price
	} else {
		f.emaFast += alpha(macdFastPeriod) * (price - f.emaFast)
		f.emaSlow += alpha(macdSlowPeriod) * (price - f.emaSlow)
	}
	macd := f.emaFast - f.emaSlow
	if f.macdCount == 0 {
		f.macdSignal = macd
	} else {
		f.macdSignal += alpha(macdSignalSpan) * (macd - f.macdSignal)
	}
	f.macdCount++

	// VWAP.
	f.pvSum += price * t.Volume
	f.volSum += t.Volume

	f.prevClose = price
	f.count++
}

// SMA20Ready reports whether SMA(20) is warm.
func (f *Frame) SMA20Ready() bool { return f.count >= smaShortPeriod }

// SMA50Ready reports whether SMA(50) is warm.
func (f *Frame) SMA50Ready() bool { return f.count >= smaLongPeriod }

// RSIReady reports whether RSI(14) is warm.
func (f *Frame) RSIReady() bool { return f.count >= rsiPeriod+1 }

// BollingerReady reports whether the Bollinger bands are warm.
func (f *Frame) BollingerReady() bool { return f.count >= bollPeriod }

// MACDReady reports whether MACD and its signal line are warm.
func (f *Frame) MACDReady() bool { return f.count >= macdSlowPeriod + macdSignalSpan }

// ATRReady reports whether ATR(14) is warm.
func (f *Frame) ATRReady() bool { return f.atrCount >= atrPeriod }

// VWAPReady reports whether any volume has been observed.
func (f *Frame) VWAPReady() bool { return f.volSum > 0 }

// SMA20 returns the 20-tick simple moving average.
func (f *Frame) SMA20() (float64, error) {
	if !f.SMA20Ready() {
		return 0, core.ErrWarmupIncomplete
	}
	return f.sumShort / smaShortPeriod, nil
}

// SMA50 returns the 50-tick simple moving average.
func (f *Frame) SMA50() (float64, error) {
	if !f.SMA50Ready() {
		return 0, core.ErrWarmupIncomplete
	}
	return f.sumLong / smaLongPeriod, nil
}

// RSI returns the Wilder-smoothed 14-tick relative strength index.
func (f *Frame) RSI() (float64, error) {
	if !f.RSIReady() {
		return 0, core.ErrWarmupIncomplete
	}
	return rsiValue(f.avgGain, f.avgLoss), nil
}

// Bollinger returns the 20-tick 2-sigma upper and lower bands.
func (f *Frame) Bollinger() (upper, lower float64, err error) {
	if !f.BollingerReady() {
		return 0, 0, core.ErrWarmupIncomplete
	}
	mean := f.sumShort / bollPeriod
	window := f.window[len(f.window)-bollPeriod:]
	var variance float64
	for _, p := range window {
		variance += (p - mean) * (p - mean)
	}
	sd := math.Sqrt(variance / bollPeriod)
	return mean + bollStdDev*sd, mean - bollStdDev*sd, nil
}

// MACD returns the MACD line and its signal line.
func (f *Frame) MACD() (macd, signal float64, err error) {
	if !f.MACDReady() {
		return 0, 0, core.ErrWarmupIncomplete
	}
	return f.emaFast - f.emaSlow, f.macdSignal, nil
}

// ATR returns the Wilder-smoothed 14-tick average true range.
func (f *Frame) ATR() (float64, error) {
	if !f.ATRReady() {
		return 0, core.ErrWarmupIncomplete
	}
	return f.atr, nil
}

// VWAP returns the session volume-weighted average price.
func (f *Frame) VWAP() (float64, error) {
	if !f.VWAPReady() {
		return 0, core.ErrWarmupIncomplete
	}
	return f.pvSum / f.volSum, nil
}

// Snapshot is a consistent copy of a frame's readable values with their
// warmth flags. Consumers must check the Ready flag before using the
// matching value; a cold value is meaningless, not zero.
type Snapshot struct {
	Symbol string

	SMA20      float64
	SMA20Ready bool

	SMA50      float64
	SMA50Ready bool

	RSI      float64
	RSIReady bool

	BollingerUpper float64
	BollingerLower float64
	BollingerReady bool

	MACD       float64
	MACDSignal float64
	MACDReady  bool

	ATR      float64
	ATRReady bool

	VWAP      float64
	VWAPReady bool
}

// Snapshot captures the frame's current values and warmth.
func (f *Frame) Snapshot() Snapshot {
	s := Snapshot{Symbol: f.symbol}
	if v, err := f.SMA20(); err == nil {
		s.SMA20, s.SMA20Ready = v, true
	}
	if v, err := f.SMA50(); err == nil {
		s.SMA50, s.SMA50Ready = v, true
	}
	if v, err := f.RSI(); err == nil {
		s.RSI, s.RSIReady = v, true
	}
	if up, lo, err := f.Bollinger(); err == nil {
		s.BollingerUpper, s.BollingerLower, s.BollingerReady = up, lo, true
	}
	if m, sig, err := f.MACD(); err == nil {
		s.MACD, s.MACDSignal, s.MACDReady = m, sig, true
	}
	if v, err := f.ATR(); err == nil {
		s.ATR, s.ATRReady = v, true
	}
	if v, err := f.VWAP(); err == nil {
		s.VWAP, s.VWAPReady = v, true
	}
	return s
}
