package features

import "github.com/procurewatch/riskengine/internal/model"

var relationshipNames = []string{
	"winner_prior_bids_at_institution",
	"winner_prior_wins_at_institution",
	"winner_win_rate_at_institution",
	"winner_high_win_rate",
	"repeat_winner",
	"frequent_winner",
	"winner_awarded_value_at_institution",
	"institution_total_awarded_value",
	"winner_market_share_at_institution",
	"dominant_supplier",
	"winner_total_bids",
	"winner_total_wins",
	"winner_overall_win_rate",
	"known_relationship",
	"related_pair_count",
	"institution_tender_count",
	"institution_single_bidder_count",
	"institution_single_bidder_rate",
	"institution_high_single_bidder_rate",
}

// buildRelationship produces the relationship block: how entangled the winner
// is with this institution, and how concentrated the institution's history is.
func buildRelationship(d *tenderData) []float64 {
	var priorBids, priorWins int
	var winRate, awardedValue, marketShare, totalBids, totalWins, overallRate float64

	if d.winnerInstStats != nil {
		priorBids = d.winnerInstStats.Bids
		priorWins = d.winnerInstStats.Wins
		// The institution history includes the tender being extracted once
		// it is awarded; back it out so these stay prior counts.
		if d.tender.Status == model.TenderStatusAwarded {
			if priorBids > 0 {
				priorBids--
			}
			if priorWins > 0 {
				priorWins--
			}
		}
		if priorBids > 0 {
			winRate = float64(priorWins) / float64(priorBids)
		}
		awardedValue = d.winnerInstStats.AwardedValue
		if d.instStats.TotalAwardedValue > 0 {
			marketShare = awardedValue / d.instStats.TotalAwardedValue
		}
	}
	if d.winnerStats != nil {
		totalBids = float64(d.winnerStats.Bids)
		totalWins = float64(d.winnerStats.Wins)
		overallRate = d.winnerStats.WinRate()
	}

	singleRate := d.instStats.SingleBidderRate()

	return []float64{
		float64(priorBids),
		float64(priorWins),
		winRate,
		b01(priorBids > 0 && winRate > 0.5),
		b01(priorWins > 0),
		b01(priorWins >= 5),
		awardedValue,
		d.instStats.TotalAwardedValue,
		marketShare,
		b01(marketShare > 0.5),
		totalBids,
		totalWins,
		overallRate,
		b01(d.relatedHits > 0),
		float64(d.relatedHits),
		float64(d.instStats.TenderCount),
		float64(d.instStats.SingleBidderCount),
		singleRate,
		b01(singleRate > 0.3),
	}
}
