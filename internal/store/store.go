// Package store provides read-only access to the procurement records the
// engine consumes: tenders, bidders, documents and corruption flags, plus the
// historical aggregates behind relationship and competition features.
package store

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a requested tender or entity does not exist.
var ErrNotFound = eris.New("store: not found")

// InstitutionStats summarizes a procuring entity's history up to now,
// bounded by the configured historical window.
type InstitutionStats struct {
	Institution       string  `json:"institution"`
	TenderCount       int     `json:"tender_count"`
	AvgBidderCount    float64 `json:"avg_bidder_count"`
	SingleBidderCount int     `json:"single_bidder_count"`
	TotalAwardedValue float64 `json:"total_awarded_value"`
}

// SingleBidderRate returns the fraction of the institution's tenders that
// attracted exactly one bidder, or 0 when it has no history.
func (s *InstitutionStats) SingleBidderRate() float64 {
	if s.TenderCount == 0 {
		return 0
	}
	return float64(s.SingleBidderCount) / float64(s.TenderCount)
}

// CompanyInstitutionStats summarizes one company's history at one institution.
type CompanyInstitutionStats struct {
	Company      string  `json:"company"`
	Institution  string  `json:"institution"`
	Bids         int     `json:"bids"`
	Wins         int     `json:"wins"`
	AwardedValue float64 `json:"awarded_value"`
}

// WinRate returns wins/bids, or 0 when the company has no bids there.
func (s *CompanyInstitutionStats) WinRate() float64 {
	if s.Bids == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Bids)
}

// CompanyStats summarizes one company's history across all institutions.
type CompanyStats struct {
	Company string `json:"company"`
	Bids    int    `json:"bids"`
	Wins    int    `json:"wins"`
}

// WinRate returns wins/bids, or 0 when the company has no bids.
func (s *CompanyStats) WinRate() float64 {
	if s.Bids == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Bids)
}

// Baseline holds average price levels for a category or institution, used to
// normalize absolute price features.
type Baseline struct {
	AvgEstimatedValue float64 `json:"avg_estimated_value"`
	AvgActualValue    float64 `json:"avg_actual_value"`
	AvgBidAmount      float64 `json:"avg_bid_amount"`
}

// WindowStart converts a historical window in days to the cutoff passed to
// the windowed queries. A zero or negative window means all time.
func WindowStart(now time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -windowDays)
}

// PairKey returns the canonical lookup key for an unordered company pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
