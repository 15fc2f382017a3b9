// Package ingest seeds the development schema from public register exports:
// XML feeds (with nested bidders) and XLSX dumps. Production data arrives
// through the ingestion service; this exists so a local engine has something
// to extract from.
package ingest

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurewatch/riskengine/internal/db"
)

var tenderColumns = []string{
	"id", "title", "category", "institution", "published_at", "closing_at", "awarded_at",
	"estimated_value", "actual_value", "status", "procedure", "evaluation",
	"security_deposit", "cpv_code", "lot_count",
}

var bidderColumns = []string{
	"tender_id", "company", "bid_amount", "rank", "winner", "disqualified",
}

// Result reports how many records a load wrote.
type Result struct {
	Tenders int64
	Bidders int64
}

// Loader bulk-loads register exports into the source tables.
type Loader struct {
	pool db.Pool
}

// NewLoader creates a Loader over the given pool.
func NewLoader(pool db.Pool) *Loader {
	return &Loader{pool: pool}
}

// LoadXML streams a register XML feed into the tenders and bidders tables.
func (l *Loader) LoadXML(ctx context.Context, r io.Reader) (*Result, error) {
	tenderCh, errCh := streamTenders(ctx, r)

	var tenders []xmlTender
	for t := range tenderCh {
		tenders = append(tenders, t)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	return l.load(ctx, tenders)
}

// LoadXLSX loads an XLSX register dump into the tenders table. Dump files
// carry no bidder data.
func (l *Loader) LoadXLSX(ctx context.Context, path string) (*Result, error) {
	tenders, err := readTendersXLSX(path)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, tenders)
}

func (l *Loader) load(ctx context.Context, tenders []xmlTender) (*Result, error) {
	var tenderRows, bidderRows [][]any
	for _, t := range tenders {
		published, err := parseTime(t.PublishedAt)
		if err != nil {
			return nil, eris.Wrapf(err, "tender %s published_at", t.ID)
		}
		closing, err := parseNullableTime(t.ClosingAt)
		if err != nil {
			return nil, eris.Wrapf(err, "tender %s closing_at", t.ID)
		}
		awarded, err := parseNullableTime(t.AwardedAt)
		if err != nil {
			return nil, eris.Wrapf(err, "tender %s awarded_at", t.ID)
		}

		status := t.Status
		if status == "" {
			status = "active"
		}

		tenderRows = append(tenderRows, []any{
			t.ID, t.Title, t.Category, t.Institution, published, closing, awarded,
			t.EstimatedValue, t.ActualValue, status, orDefault(t.Procedure, "open"),
			orDefault(t.Evaluation, "lowest_price"), t.SecurityDeposit, t.CPVCode, t.LotCount,
		})
		for _, b := range t.Bidders {
			bidderRows = append(bidderRows, []any{
				t.ID, b.Company, b.BidAmount, b.Rank, b.Winner, b.Disqualified,
			})
		}
	}

	nTenders, err := db.CopyFrom(ctx, l.pool, "tenders", tenderColumns, tenderRows)
	if err != nil {
		return nil, err
	}
	nBidders, err := db.CopyFrom(ctx, l.pool, "bidders", bidderColumns, bidderRows)
	if err != nil {
		return nil, err
	}

	zap.L().Info("ingest: loaded",
		zap.Int64("tenders", nTenders),
		zap.Int64("bidders", nBidders),
	)
	return &Result{Tenders: nTenders, Bidders: nBidders}, nil
}

func parseNullableTime(s string) (*time.Time, error) {
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	if t.IsZero() {
		return nil, nil
	}
	return &t, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
