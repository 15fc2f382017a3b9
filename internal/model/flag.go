package model

import "time"

// Severity is the rule engine's severity assignment for a flag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for comparison and sorting. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Known flag types produced by the rule engine. The engine aggregates any
// type it sees; this list exists for readers, not for validation.
const (
	FlagSingleBidder  = "single_bidder"
	FlagRepeatWinner  = "repeat_winner"
	FlagPriceAnomaly  = "price_anomaly"
	FlagBidClustering = "bid_clustering"
	FlagShortDeadline = "short_deadline"
)

// Flag is a rule-derived indicator of a suspicious pattern on a tender.
// Produced by the detection rule engine; read-only here.
type Flag struct {
	TenderID      string    `json:"tender_id"`
	Type          string    `json:"type"`
	Severity      Severity  `json:"severity"`
	FalsePositive bool      `json:"false_positive"`
	DetectedAt    time.Time `json:"detected_at"`
}

// RiskLevel is the bucketed form of a composite risk score.
type RiskLevel string

const (
	RiskLevelMinimal  RiskLevel = "minimal"
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskScore is the composite result for one tender.
type RiskScore struct {
	TenderID  string    `json:"tender_id"`
	Score     int       `json:"risk_score"`
	Level     RiskLevel `json:"risk_level"`
	FlagCount int       `json:"flag_count"`
}
