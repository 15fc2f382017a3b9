package model

import "time"

// FlaggedTender is one row of the flagged_tenders derived view: a tender with
// at least one active flag, pre-scored for dashboard reads.
type FlaggedTender struct {
	TenderID       string    `json:"tender_id"`
	Title          string    `json:"title"`
	Institution    string    `json:"institution"`
	Winner         string    `json:"winner,omitempty"`
	EstimatedValue float64   `json:"estimated_value"`
	FlagCount      int       `json:"flag_count"`
	FlagTypes      []string  `json:"flag_types"`
	MaxSeverity    Severity  `json:"max_severity"`
	SeverityRank   int       `json:"severity_rank"`
	RiskScore      int       `json:"risk_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	LastDetectedAt time.Time `json:"last_detected_at"`
}

// CorruptionStats is the single-row global view over all active flags.
type CorruptionStats struct {
	TotalFlags         int            `json:"total_flags"`
	TotalFlaggedTender int            `json:"total_flagged_tenders"`
	TotalValueAtRisk   float64        `json:"total_value_at_risk"`
	BySeverity         map[string]int `json:"by_severity"`
	ByType             map[string]int `json:"by_type"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// RefreshResult reports the outcome of one view rebuild.
type RefreshResult struct {
	View        string        `json:"view"`
	RowsWritten int64         `json:"rows_written"`
	Duration    time.Duration `json:"duration_ms"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}
