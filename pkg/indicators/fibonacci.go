package indicators

import "sort"

// FibRatios are the retracement ratios measured from the range low.
var FibRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// FibLevels returns ascending retracement prices between low and high.
func FibLevels(low, high float64) []float64 {
	if high <= low {
		return nil
	}
	levels := make([]float64, len(FibRatios))
	for i, r := range FibRatios {
		levels[i] = low + (high-low)*r
	}
	sort.Float64s(levels)
	return levels
}

// NextLevelAbove returns the first level strictly above price.
func NextLevelAbove(levels []float64, price float64) (float64, bool) {
	for _, l := range levels {
		if l > price {
			return l, true
		}
	}
	return 0, false
}

// NextLevelBelow returns the nearest level strictly below price.
func NextLevelBelow(levels []float64, price float64) (float64, bool) {
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i] < price {
			return levels[i], true
		}
	}
	return 0, false
}

// RangePosition places price inside [low, high] as 0..1 (clamped).
func RangePosition(low, high, price float64) float64 {
	if high <= low {
		return 0.5
	}
	p := (price - low) / (high - low)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
