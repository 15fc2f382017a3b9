// Package stats implements the statistical primitives behind the feature
// extractor. All functions are pure; callers decide how undefined results map
// to feature sentinels.
package stats

import "math"

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs, or 0 when xs has
// fewer than two elements.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// CoV returns the coefficient of variation (stddev/mean). ok is false when the mean
// is zero or xs is empty, in which case the ratio is undefined.
func CoV(xs []float64) (float64, bool) {
	m := Mean(xs)
	if len(xs) == 0 || m == 0 {
		return 0, false
	}
	return StdDev(xs) / m, true
}

// ZScore returns (x - mean)/sigma. ok is false when sigma is zero (all observations
// identical), in which case the z-score is undefined.
func ZScore(x, mean, stddev float64) (float64, bool) {
	if stddev == 0 {
		return 0, false
	}
	return (x - mean) / stddev, true
}

// HHI returns the Herfindahl-Hirschman concentration index over the given
// amounts, on the conventional 0-10000 scale: the sum of squared percentage
// market shares. Non-positive amounts contribute no share. Returns 0 when the
// total is zero.
func HHI(amounts []float64) float64 {
	var total float64
	for _, a := range amounts {
		if a > 0 {
			total += a
		}
	}
	if total == 0 {
		return 0
	}
	var hhi float64
	for _, a := range amounts {
		if a <= 0 {
			continue
		}
		share := a / total * 100
		hhi += share * share
	}
	return hhi
}

// PercentileRank returns the fraction of xs that is <= v, in [0, 1].
// Returns 0 for an empty slice.
func PercentileRank(xs []float64, v float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var n int
	for _, x := range xs {
		if x <= v {
			n++
		}
	}
	return float64(n) / float64(len(xs))
}

// SpikeRatio returns current/previous as a rolling-window activity ratio.
// ok is false when previous is zero.
func SpikeRatio(current, previous float64) (float64, bool) {
	if previous == 0 {
		return 0, false
	}
	return current / previous, true
}

// PairCount returns the number of unordered pairs among n items: n*(n-1)/2.
func PairCount(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}
