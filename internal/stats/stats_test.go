package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{7}))
	// Population stddev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
}

func TestCoV(t *testing.T) {
	_, ok := CoV(nil)
	assert.False(t, ok)

	_, ok = CoV([]float64{0, 0})
	assert.False(t, ok, "zero mean is undefined")

	cov, ok := CoV([]float64{100, 100, 100})
	assert.True(t, ok)
	assert.Equal(t, 0.0, cov, "identical bids have zero variation")

	cov, ok = CoV([]float64{90, 110})
	assert.True(t, ok)
	assert.InDelta(t, 0.1, cov, 1e-12)
}

func TestZScore(t *testing.T) {
	_, ok := ZScore(5, 5, 0)
	assert.False(t, ok, "zero stddev is undefined")

	z, ok := ZScore(80, 100, 10)
	assert.True(t, ok)
	assert.Equal(t, -2.0, z)
}

func TestHHI_Bounds(t *testing.T) {
	assert.Equal(t, 0.0, HHI(nil))
	assert.Equal(t, 0.0, HHI([]float64{0, 0}))

	// Monopoly: single bidder takes the whole market.
	assert.InDelta(t, 10000, HHI([]float64{5000}), 1e-9)

	// Two equal shares: 50^2 + 50^2 = 5000.
	assert.InDelta(t, 5000, HHI([]float64{100, 100}), 1e-9)

	// Any multiset stays in [0, 10000] and finite.
	cases := [][]float64{
		{1, 2, 3, 4, 5},
		{1e9, 1, 1},
		{-5, 10, 10},
		{0.001, 0.002},
	}
	for _, c := range cases {
		h := HHI(c)
		assert.False(t, math.IsNaN(h) || math.IsInf(h, 0))
		assert.GreaterOrEqual(t, h, 0.0)
		assert.LessOrEqual(t, h, 10000.0+1e-9)
	}
}

func TestPercentileRank(t *testing.T) {
	assert.Equal(t, 0.0, PercentileRank(nil, 5))
	assert.Equal(t, 0.5, PercentileRank([]float64{1, 2, 3, 4}, 2))
	assert.Equal(t, 1.0, PercentileRank([]float64{1, 2, 3, 4}, 4))
}

func TestSpikeRatio(t *testing.T) {
	_, ok := SpikeRatio(10, 0)
	assert.False(t, ok)

	r, ok := SpikeRatio(10, 4)
	assert.True(t, ok)
	assert.Equal(t, 2.5, r)
}

func TestPairCount(t *testing.T) {
	assert.Equal(t, 0, PairCount(0))
	assert.Equal(t, 0, PairCount(1))
	assert.Equal(t, 1, PairCount(2))
	assert.Equal(t, 10, PairCount(5))
}
