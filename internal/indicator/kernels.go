// Package indicator provides technical indicator kernels over price
// slices and a streaming per-symbol Frame with explicit warmth.
package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// EMA calculates Exponential Moving Average
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	multiplier := 2.0 / float64(period+1)

	// Start with SMA as first EMA value
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result = append(result, ema)

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result = append(result, ema)
	}

	return result
}

// RSI calculates the Relative Strength Index with Wilder smoothing.
// The first value is the simple average of the first period changes;
// subsequent values use avg' = (avg*(period-1) + current) / period.
// Returns slice of length: len(prices) - period.
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period+1 {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period)

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result = append(result, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bollinger calculates Bollinger Bands: SMA(period) +/- numStdDev
// population standard deviations. Returns upper and lower slices, each
// of length len(prices) - period + 1.
func Bollinger(prices []float64, period int, numStdDev float64) (upper, lower []float64) {
	if period <= 0 || len(prices) < period {
		return []float64{}, []float64{}
	}

	sma := SMA(prices, period)
	upper = make([]float64, 0, len(sma))
	lower = make([]float64, 0, len(sma))

	for i, mean := range sma {
		window := prices[i : i+period]
		var variance float64
		for _, p := range window {
			variance += (p - mean) * (p - mean)
		}
		sd := math.Sqrt(variance / float64(period))
		upper = append(upper, mean+numStdDev*sd)
		lower = append(lower, mean-numStdDev*sd)
	}

	return upper, lower
}

// MACD calculates EMA(fast) - EMA(slow) and its EMA(signal) line.
// The macd slice starts at index slow-1 of prices; the signal slice
// starts signal-1 further in.
func MACD(prices []float64, fast, slow, signal int) (macd, signalLine []float64) {
	if len(prices) < slow {
		return []float64{}, []float64{}
	}

	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	// Align: slowEMA[i] pairs with fastEMA[i + slow - fast].
	offset := slow - fast
	macd = make([]float64, 0, len(slowEMA))
	for i := range slowEMA {
		macd = append(macd, fastEMA[i+offset]-slowEMA[i])
	}

	signalLine = EMA(macd, signal)
	return macd, signalLine
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if hc := math.Abs(high - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

// ATR calculates the Wilder-smoothed Average True Range over parallel
// high/low/close slices. Returns slice of length len(closes) - period.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return []float64{}
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += TrueRange(highs[i], lows[i], closes[i-1])
	}
	atr /= float64(period)

	result := make([]float64, 0, n-period)
	result = append(result, atr)

	for i := period + 1; i < n; i++ {
		tr := TrueRange(highs[i], lows[i], closes[i-1])
		atr = (atr*float64(period-1) + tr) / float64(period)
		result = append(result, atr)
	}

	return result
}

// VWAP calculates the running volume-weighted average price from
// session start. Zero-volume prefixes yield the plain price.
func VWAP(prices, volumes []float64) []float64 {
	n := len(prices)
	if n == 0 || len(volumes) != n {
		return []float64{}
	}

	result := make([]float64, 0, n)
	var pvSum, vSum float64
	for i := 0; i < n; i++ {
		pvSum += prices[i] * volumes[i]
		vSum += volumes[i]
		if vSum == 0 {
			result = append(result, prices[i])
			continue
		}
		result = append(result, pvSum/vSum)
	}
	return result
}
