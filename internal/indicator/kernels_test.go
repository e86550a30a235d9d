package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	expected := []float64{11, 12, 13, 14}
	if len(sma) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(sma))
	}
	for i, v := range expected {
		if sma[i] != v {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	if got := SMA([]float64{10, 11}, 5); len(got) != 0 {
		t.Errorf("expected empty slice, got %d values", len(got))
	}
}

func TestEMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}
	ema := EMA(prices, 3)

	if len(ema) != 4 {
		t.Fatalf("expected 4 values, got %d", len(ema))
	}

	// First EMA is SMA(3) = 11; multiplier = 0.5.
	if ema[0] != 11 {
		t.Errorf("ema[0] = %f, want 11", ema[0])
	}
	if ema[1] != 12 { // (13-11)*0.5 + 11
		t.Errorf("ema[1] = %f, want 12", ema[1])
	}
}

func TestRSI_AllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	rsi := RSI(prices, 14)
	if len(rsi) == 0 {
		t.Fatal("expected RSI values")
	}
	for i, v := range rsi {
		if v != 100 {
			t.Errorf("rsi[%d] = %f, want 100 with zero losses", i, v)
		}
	}
}

func TestRSI_Neutral(t *testing.T) {
	// Alternating equal gains and losses should hover near 50.
	prices := make([]float64, 40)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 100
		} else {
			prices[i] = 101
		}
	}

	rsi := RSI(prices, 14)
	last := rsi[len(rsi)-1]
	if last < 40 || last > 60 {
		t.Errorf("balanced series RSI = %f, want near 50", last)
	}
}

func TestRSI_NotEnoughData(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); len(got) != 0 {
		t.Errorf("expected empty, got %d", len(got))
	}
}

func TestBollinger_ConstantPrices(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 50
	}

	upper, lower := Bollinger(prices, 20, 2)
	if len(upper) != 6 || len(lower) != 6 {
		t.Fatalf("expected 6 values, got %d/%d", len(upper), len(lower))
	}
	for i := range upper {
		if upper[i] != 50 || lower[i] != 50 {
			t.Errorf("constant series bands should collapse to the mean: %f / %f", upper[i], lower[i])
		}
	}
}

func TestBollinger_Symmetry(t *testing.T) {
	prices := []float64{20, 21, 19, 22, 18, 23, 20, 21, 19, 22, 18, 23, 20, 21, 19, 22, 18, 23, 20, 21}
	upper, lower := Bollinger(prices, 20, 2)

	if len(upper) != 1 {
		t.Fatalf("expected 1 value, got %d", len(upper))
	}
	mean := SMA(prices, 20)[0]
	if math.Abs((upper[0]-mean)-(mean-lower[0])) > 1e-12 {
		t.Error("bands should be symmetric around the mean")
	}
	if upper[0] <= lower[0] {
		t.Error("upper band must exceed lower band")
	}
}

func TestMACD_Alignment(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}

	macd, signal := MACD(prices, 12, 26, 9)
	if len(macd) != 60-26+1 {
		t.Fatalf("macd length %d, want %d", len(macd), 60-26+1)
	}
	if len(signal) != len(macd)-9+1 {
		t.Fatalf("signal length %d, want %d", len(signal), len(macd)-9+1)
	}

	// Steady uptrend: fast EMA above slow EMA.
	if macd[len(macd)-1] <= 0 {
		t.Errorf("uptrend MACD should be positive, got %f", macd[len(macd)-1])
	}
}

func TestTrueRange(t *testing.T) {
	if tr := TrueRange(105, 100, 102); tr != 5 {
		t.Errorf("plain range: %f, want 5", tr)
	}
	// Gap up: previous close far below the low.
	if tr := TrueRange(110, 108, 100); tr != 10 {
		t.Errorf("gap up: %f, want 10", tr)
	}
	// Gap down.
	if tr := TrueRange(95, 92, 100); tr != 8 {
		t.Errorf("gap down: %f, want 8", tr)
	}
}

func TestATR_ConstantRange(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = 102
		lows[i] = 98
		closes[i] = 100
	}

	atr := ATR(highs, lows, closes, 14)
	if len(atr) != n-14 {
		t.Fatalf("expected %d values, got %d", n-14, len(atr))
	}
	for i, v := range atr {
		if math.Abs(v-4) > 1e-9 {
			t.Errorf("atr[%d] = %f, want 4", i, v)
		}
	}
}

func TestVWAP(t *testing.T) {
	prices := []float64{10, 20, 30}
	volumes := []float64{100, 100, 200}

	vwap := VWAP(prices, volumes)
	if len(vwap) != 3 {
		t.Fatalf("expected 3 values, got %d", len(vwap))
	}
	if vwap[0] != 10 {
		t.Errorf("vwap[0] = %f, want 10", vwap[0])
	}
	if vwap[1] != 15 {
		t.Errorf("vwap[1] = %f, want 15", vwap[1])
	}
	want := (10*100 + 20*100 + 30*200) / 400.0
	if math.Abs(vwap[2]-want) > 1e-12 {
		t.Errorf("vwap[2] = %f, want %f", vwap[2], want)
	}
}
