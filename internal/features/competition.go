package features

import (
	"github.com/procurewatch/riskengine/internal/stats"
	"github.com/procurewatch/riskengine/internal/store"
)

var competitionNames = []string{
	"bidder_count",
	"single_bidder",
	"two_bidders",
	"bidder_count_vs_institution_avg",
	"institution_avg_bidder_count",
	"hhi",
	"hhi_high",
	"bidder_clustering_score",
	"clustered_pair_count",
	"co_bid_pair_count",
	"new_bidder_ratio",
	"returning_bidder_ratio",
	"disqualified_count",
	"disqualification_rate",
}

// buildCompetition produces the competition block: how many bidders showed
// up, how concentrated their bids are, and how often they travel together.
func buildCompetition(d *tenderData, coBidMin int) []float64 {
	n := len(d.bidders)

	hhi := stats.HHI(d.positiveBids())

	// Clustering: fraction of bidder pairs that have co-bid on at least
	// coBidMin prior tenders.
	totalPairs := stats.PairCount(n)
	var clustered int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			key := store.PairKey(d.bidders[i].Company, d.bidders[j].Company)
			if d.coBidCounts[key] >= coBidMin {
				clustered++
			}
		}
	}
	clusterScore := 0.0
	if totalPairs > 0 {
		clusterScore = float64(clustered) / float64(totalPairs)
	}

	var newBidders, disqualified int
	for _, b := range d.bidders {
		if d.priorCounts[b.Company] == 0 {
			newBidders++
		}
		if b.Disqualified {
			disqualified++
		}
	}
	newRatio, returningRatio, disqRate := 0.0, 0.0, 0.0
	if n > 0 {
		newRatio = float64(newBidders) / float64(n)
		returningRatio = 1 - newRatio
		disqRate = float64(disqualified) / float64(n)
	}

	return []float64{
		float64(n),
		b01(n == 1),
		b01(n == 2),
		ratioOr(float64(n), d.instStats.AvgBidderCount, SentinelRatio),
		d.instStats.AvgBidderCount,
		hhi,
		b01(hhi > 2500),
		clusterScore,
		float64(clustered),
		float64(totalPairs),
		newRatio,
		returningRatio,
		float64(disqualified),
		disqRate,
	}
}
