package features

import (
	"time"

	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/store"
)

// tenderData gathers every raw input a single extraction needs. The extractor
// fills it from the store (via the shared lookup layer); category builders
// only read it.
type tenderData struct {
	tender    *model.Tender
	bidders   []model.Bidder
	documents []model.Document

	instStats    *store.InstitutionStats
	catBaseline  *store.Baseline
	instBaseline *store.Baseline

	// Winner history; nil when the tender has no recorded winner.
	winnerInstStats *store.CompanyInstitutionStats
	winnerStats     *store.CompanyStats

	coBidCounts map[string]int // PairKey -> prior shared tenders
	priorCounts map[string]int // company -> prior tender participations
	relatedHits int            // known relationships among this tender's bidders

	monthCurrent  int
	monthPrevious int

	now time.Time
}

func (d *tenderData) winner() *model.Bidder {
	for i := range d.bidders {
		if d.bidders[i].Winner {
			return &d.bidders[i]
		}
	}
	return nil
}

// positiveBids returns the bid amounts usable for price statistics.
func (d *tenderData) positiveBids() []float64 {
	var bids []float64
	for _, b := range d.bidders {
		if b.BidAmount > 0 {
			bids = append(bids, b.BidAmount)
		}
	}
	return bids
}

// b01 encodes a boolean feature.
func b01(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// ratioOr returns num/den, or the sentinel when den is not positive.
func ratioOr(num, den, sentinel float64) float64 {
	if den <= 0 {
		return sentinel
	}
	return num / den
}
