package features

import (
	"math"

	"github.com/procurewatch/riskengine/internal/stats"
)

var priceNames = []string{
	"estimated_value",
	"actual_value",
	"has_estimated_value",
	"has_actual_value",
	"price_deviation_ratio",
	"price_deviation_abs",
	"price_exact_match_estimate",
	"price_above_estimate",
	"price_below_estimate",
	"bid_count_with_amount",
	"bid_mean",
	"bid_min",
	"bid_max",
	"bid_range",
	"bid_range_ratio",
	"bid_stddev",
	"bid_cov",
	"bid_cov_low",
	"bid_cov_zero",
	"winner_bid_amount",
	"winner_zscore",
	"winner_extremely_low",
	"winner_below_mean",
	"winner_to_mean_ratio",
	"winner_to_estimate_ratio",
	"winner_is_lowest_bid",
	"winner_savings_ratio",
	"bid_mean_vs_category_avg",
	"bid_mean_vs_institution_avg",
	"estimated_vs_category_avg",
}

// buildPrice produces the price block: estimate-vs-actual deviation, bid
// dispersion, winner positioning and baseline-normalized levels.
func buildPrice(d *tenderData) []float64 {
	t := d.tender
	hasEst := t.EstimatedValue > 0
	hasActual := t.ActualValue > 0

	// Deviation of the awarded value from the estimate. Signed; defaults to
	// 0 when either side is missing, with has_* carrying presence.
	var deviation float64
	if hasEst && hasActual {
		deviation = (t.ActualValue - t.EstimatedValue) / t.EstimatedValue
	}
	exactMatch := hasEst && hasActual && math.Abs(deviation) < 0.01

	bids := d.positiveBids()
	var bidMin, bidMax float64
	if len(bids) > 0 {
		bidMin, bidMax = bids[0], bids[0]
		for _, b := range bids[1:] {
			bidMin = math.Min(bidMin, b)
			bidMax = math.Max(bidMax, b)
		}
	}
	bidMean := stats.Mean(bids)
	bidStdDev := stats.StdDev(bids)

	cov, covOK := stats.CoV(bids)
	covVal := SentinelRatio
	if covOK {
		covVal = cov
	}

	var winnerBid float64
	if w := d.winner(); w != nil && w.BidAmount > 0 {
		winnerBid = w.BidAmount
	}

	// Winner z-score against the bid distribution. Defaults to 0 when the
	// distribution has no variance or the winner bid is missing.
	var zVal float64
	var zOK bool
	if winnerBid > 0 {
		zVal, zOK = stats.ZScore(winnerBid, bidMean, bidStdDev)
	}

	savings := 0.0
	if hasEst && winnerBid > 0 {
		savings = (t.EstimatedValue - winnerBid) / t.EstimatedValue
	}

	return []float64{
		t.EstimatedValue,
		t.ActualValue,
		b01(hasEst),
		b01(hasActual),
		deviation,
		math.Abs(deviation),
		b01(exactMatch),
		b01(hasEst && hasActual && deviation > 0.01),
		b01(hasEst && hasActual && deviation < -0.01),
		float64(len(bids)),
		bidMean,
		bidMin,
		bidMax,
		bidMax - bidMin,
		ratioOr(bidMax-bidMin, bidMean, SentinelRatio),
		bidStdDev,
		covVal,
		b01(covOK && cov < 0.05),
		b01(covOK && len(bids) >= 2 && bidStdDev == 0),
		winnerBid,
		zVal,
		b01(zOK && zVal <= -2),
		b01(zOK && zVal < 0),
		ratioOr(winnerBid, bidMean, SentinelRatio),
		ratioOr(winnerBid, t.EstimatedValue, SentinelRatio),
		b01(winnerBid > 0 && len(bids) > 0 && winnerBid <= bidMin),
		savings,
		ratioOr(bidMean, d.catBaseline.AvgBidAmount, SentinelRatio),
		ratioOr(bidMean, d.instBaseline.AvgBidAmount, SentinelRatio),
		ratioOr(t.EstimatedValue, d.catBaseline.AvgEstimatedValue, SentinelRatio),
	}
}
