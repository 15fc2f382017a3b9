// Package model defines the domain types shared across the risk engine.
package model

import "time"

// TenderStatus represents the lifecycle state of a tender.
type TenderStatus string

const (
	TenderStatusActive    TenderStatus = "active"
	TenderStatusClosed    TenderStatus = "closed"
	TenderStatusAwarded   TenderStatus = "awarded"
	TenderStatusCancelled TenderStatus = "cancelled"
)

// EvaluationMethod describes how bids are ranked for award.
type EvaluationMethod string

const (
	EvaluationLowestPrice EvaluationMethod = "lowest_price"
	EvaluationWeighted    EvaluationMethod = "weighted"
)

// ProcedureType describes how the tender was conducted.
type ProcedureType string

const (
	ProcedureOpen       ProcedureType = "open"
	ProcedureRestricted ProcedureType = "restricted"
	ProcedureNegotiated ProcedureType = "negotiated"
)

// Tender is a procurement notice as ingested from the source register.
// Read-only to the engine; amendment fields are the only part that changes
// after award.
type Tender struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Category        string           `json:"category"`
	Institution     string           `json:"institution"`
	PublishedAt     time.Time        `json:"published_at"`
	ClosingAt       *time.Time       `json:"closing_at,omitempty"`
	AwardedAt       *time.Time       `json:"awarded_at,omitempty"`
	EstimatedValue  float64          `json:"estimated_value"`
	ActualValue     float64          `json:"actual_value"`
	Status          TenderStatus     `json:"status"`
	Procedure       ProcedureType    `json:"procedure"`
	Evaluation      EvaluationMethod `json:"evaluation"`
	SecurityDeposit float64          `json:"security_deposit"`
	CPVCode         string           `json:"cpv_code"`
	LotCount        int              `json:"lot_count"`
	AmendmentCount  int              `json:"amendment_count"`
	LastAmendmentAt *time.Time       `json:"last_amendment_at,omitempty"`
	UpdateCount     int              `json:"update_count"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Winner returns the company name of the winning bidder, or "" if none.
func Winner(bidders []Bidder) string {
	for _, b := range bidders {
		if b.Winner {
			return b.Company
		}
	}
	return ""
}

// Bidder is one company's participation in a tender.
type Bidder struct {
	TenderID      string  `json:"tender_id"`
	Company       string  `json:"company"`
	BidAmount     float64 `json:"bid_amount"`
	Rank          int     `json:"rank"`
	Winner        bool    `json:"winner"`
	Disqualified  bool    `json:"disqualified"`
	DisqualReason string  `json:"disqual_reason,omitempty"`
}

// ExtractionStatus mirrors the document pipeline's status enum. The engine
// consumes these values as-is and never transitions them.
type ExtractionStatus string

const (
	ExtractionPending          ExtractionStatus = "pending"
	ExtractionSuccess          ExtractionStatus = "success"
	ExtractionFailed           ExtractionStatus = "failed"
	ExtractionSkipEmpty        ExtractionStatus = "skip_empty"
	ExtractionSkipMinimal      ExtractionStatus = "skip_minimal"
	ExtractionSkipBankGuar     ExtractionStatus = "skip_bank_guarantee"
	ExtractionSkipBoilerplate  ExtractionStatus = "skip_boilerplate"
	ExtractionSkipExternalBank ExtractionStatus = "skip_external_bank"
	ExtractionDuplicate        ExtractionStatus = "duplicate"
)

// Document is a tender attachment as seen by the text-extraction pipeline.
type Document struct {
	TenderID        string           `json:"tender_id"`
	Name            string           `json:"name"`
	Status          ExtractionStatus `json:"extraction_status"`
	ContentLength   int64            `json:"content_length"`
	ContentHash     string           `json:"content_hash,omitempty"`
	IsSpecification bool             `json:"is_specification"`
}
