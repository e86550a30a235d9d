package indicator

import (
	"math"
	"time"
)

// DefaultHistoryCap is the default bound for PriceHistory.
const DefaultHistoryCap = 50

// PricePoint is one (timestamp, price) observation.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// PriceHistory is a bounded ordered sequence of price points with FIFO
// eviction. Momentum lookbacks use it independently of the Frame.
type PriceHistory struct {
	points []PricePoint
	cap    int
}

// NewPriceHistory creates a history bounded at capacity; non-positive
// capacities use DefaultHistoryCap.
func NewPriceHistory(capacity int) *PriceHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &PriceHistory{cap: capacity}
}

// Push appends a point, evicting the oldest when full.
func (h *PriceHistory) Push(t time.Time, price float64) {
	if len(h.points) == h.cap {
		copy(h.points, h.points[1:])
		h.points = h.points[:h.cap-1]
	}
	h.points = append(h.points, PricePoint{Time: t, Price: price})
}

// Len returns the number of stored points.
func (h *PriceHistory) Len() int { return len(h.points) }

// Last returns the most recent price; ok is false when empty.
func (h *PriceHistory) Last() (float64, bool) {
	if len(h.points) == 0 {
		return 0, false
	}
	return h.points[len(h.points)-1].Price, true
}

// Lookback returns the price n points before the latest; ok is false
// when fewer than n+1 points are stored.
func (h *PriceHistory) Lookback(n int) (float64, bool) {
	idx := len(h.points) - n - 1
	if idx < 0 {
		return 0, false
	}
	return h.points[idx].Price, true
}

// Momentum returns the fractional price change over the last n points:
// (p_t - p_{t-n}) / p_{t-n}. ok is false before warmth.
func (h *PriceHistory) Momentum(n int) (float64, bool) {
	past, ok := h.Lookback(n)
	if !ok || past == 0 {
		return 0, false
	}
	current, _ := h.Last()
	return (current - past) / past, true
}

// ReturnsStdDev returns the standard deviation of the last n arithmetic
// returns. ok is false when fewer than n+1 points are stored.
func (h *PriceHistory) ReturnsStdDev(n int) (float64, bool) {
	if len(h.points) < n+1 {
		return 0, false
	}

	start := len(h.points) - n - 1
	returns := make([]float64, 0, n)
	for i := start; i < len(h.points)-1; i++ {
		prev := h.points[i].Price
		if prev == 0 {
			return 0, false
		}
		returns = append(returns, (h.points[i+1].Price-prev)/prev)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance), true
}

// Prices returns a copy of the stored prices, oldest first.
func (h *PriceHistory) Prices() []float64 {
	out := make([]float64, len(h.points))
	for i, p := range h.points {
		out[i] = p.Price
	}
	return out
}
