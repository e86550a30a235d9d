package optionstrat

import (
	"math"
	"time"
)

// Chain holds the option series state for one underlying: listed
// strikes, call/put marks and per-strike implied vols.
type Chain struct {
	Underlying  string
	Expiration  time.Time
	Strikes     []float64
	CallMarks   map[float64]float64
	PutMarks    map[float64]float64
	ImpliedVols map[float64]float64
}

// MeanIV returns the average implied vol across the chain; ok is false
// when no vols are stored.
func (c *Chain) MeanIV() (float64, bool) {
	if c == nil || len(c.ImpliedVols) == 0 {
		return 0, false
	}
	var sum float64
	for _, iv := range c.ImpliedVols {
		sum += iv
	}
	return sum / float64(len(c.ImpliedVols)), true
}

// ATMStrike returns the listed strike closest to spot; ok is false when
// no strikes are listed.
func (c *Chain) ATMStrike(spot float64) (float64, bool) {
	if c == nil || len(c.Strikes) == 0 {
		return 0, false
	}
	best := c.Strikes[0]
	for _, k := range c.Strikes[1:] {
		if math.Abs(k-spot) < math.Abs(best-spot) {
			best = k
		}
	}
	return best, true
}

// IVAt returns the implied vol at the listed strike nearest to strike;
// ok is false when the chain carries no vols.
func (c *Chain) IVAt(strike float64) (float64, bool) {
	if c == nil || len(c.ImpliedVols) == 0 {
		return 0, false
	}
	bestK := math.NaN()
	for k := range c.ImpliedVols {
		if math.IsNaN(bestK) || math.Abs(k-strike) < math.Abs(bestK-strike) {
			bestK = k
		}
	}
	return c.ImpliedVols[bestK], true
}
