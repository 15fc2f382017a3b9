package features

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/resilience"
	"github.com/procurewatch/riskengine/internal/store"
)

// Config tunes feature extraction.
type Config struct {
	// HistoricalWindowDays bounds historical lookups (win rates, market
	// shares, institution averages). 0 means all time.
	HistoricalWindowDays int
	// CoBidMinCount is the minimum number of prior shared tenders for a
	// bidder pair to count as clustered.
	CoBidMinCount int
}

// Extractor computes feature vectors from the store. It is read-only and
// safe for concurrent use.
type Extractor struct {
	store Store
	retry resilience.RetryConfig
	cfg   Config
	nowFn func() time.Time
}

// NewExtractor creates an Extractor over the given store.
func NewExtractor(s Store, retry resilience.RetryConfig, cfg Config) *Extractor {
	if cfg.CoBidMinCount <= 0 {
		cfg.CoBidMinCount = 3
	}
	return &Extractor{
		store: s,
		retry: retry,
		cfg:   cfg,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (e *Extractor) newLookups(ctx context.Context) *Lookups {
	return NewLookups(ctx, e.store, e.retry)
}

// Extract computes the feature vector for one tender. Returns an error
// wrapping store.ErrNotFound when the tender does not exist; missing
// optional data (bidders, documents, relationship table) degrades to the
// documented sentinels.
func (e *Extractor) Extract(ctx context.Context, tenderID string) (*model.FeatureVector, error) {
	return e.extract(ctx, e.newLookups(ctx), tenderID)
}

func (e *Extractor) extract(ctx context.Context, l *Lookups, tenderID string) (*model.FeatureVector, error) {
	now := e.nowFn()
	since := store.WindowStart(now, e.cfg.HistoricalWindowDays)

	tender, err := l.GetTender(ctx, tenderID)
	if err != nil {
		return nil, eris.Wrapf(err, "features: extract %s", tenderID)
	}

	bidders, err := l.ListBidders(ctx, tenderID)
	if err != nil {
		return nil, eris.Wrapf(err, "features: bidders for %s", tenderID)
	}
	documents, err := l.ListDocuments(ctx, tenderID)
	if err != nil {
		return nil, eris.Wrapf(err, "features: documents for %s", tenderID)
	}

	instStats, err := l.InstitutionStats(ctx, tender.Institution, since)
	if err != nil {
		return nil, eris.Wrapf(err, "features: institution stats for %s", tenderID)
	}
	catBaseline, err := l.CategoryBaseline(ctx, tender.Category)
	if err != nil {
		return nil, eris.Wrapf(err, "features: category baseline for %s", tenderID)
	}
	instBaseline, err := l.InstitutionBaseline(ctx, tender.Institution)
	if err != nil {
		return nil, eris.Wrapf(err, "features: institution baseline for %s", tenderID)
	}
	monthCur, monthPrev, err := l.InstitutionMonthCounts(ctx, tender.Institution, now)
	if err != nil {
		return nil, eris.Wrapf(err, "features: month counts for %s", tenderID)
	}

	companies := make([]string, 0, len(bidders))
	for _, b := range bidders {
		companies = append(companies, b.Company)
	}

	priorCounts, err := l.CompanyTenderCounts(ctx, companies, tender.PublishedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "features: prior bidder counts for %s", tenderID)
	}
	coBidCounts, err := l.CoBidPairCounts(ctx, companies, tenderID)
	if err != nil {
		return nil, eris.Wrapf(err, "features: co-bid counts for %s", tenderID)
	}
	relatedHits, err := l.RelatedCompanyCount(ctx, companies)
	if err != nil {
		return nil, eris.Wrapf(err, "features: related companies for %s", tenderID)
	}

	d := &tenderData{
		tender:        tender,
		bidders:       bidders,
		documents:     documents,
		instStats:     instStats,
		catBaseline:   catBaseline,
		instBaseline:  instBaseline,
		coBidCounts:   coBidCounts,
		priorCounts:   priorCounts,
		relatedHits:   relatedHits,
		monthCurrent:  monthCur,
		monthPrevious: monthPrev,
		now:           now,
	}

	if w := d.winner(); w != nil {
		d.winnerInstStats, err = l.CompanyInstitutionStats(ctx, w.Company, tender.Institution, since)
		if err != nil {
			return nil, eris.Wrapf(err, "features: winner institution stats for %s", tenderID)
		}
		d.winnerStats, err = l.CompanyStats(ctx, w.Company, since)
		if err != nil {
			return nil, eris.Wrapf(err, "features: winner stats for %s", tenderID)
		}
	}

	values := make([]float64, 0, TotalFeatures)
	values = append(values, buildCompetition(d, e.cfg.CoBidMinCount)...)
	values = append(values, buildPrice(d)...)
	values = append(values, buildTiming(d)...)
	values = append(values, buildRelationship(d)...)
	values = append(values, buildProcedural(d)...)
	values = append(values, buildDocument(d)...)
	values = append(values, buildHistorical(d)...)

	if len(values) != TotalFeatures {
		// Catalog and builders disagree; this is a bug, not bad data.
		return nil, eris.Errorf("features: built %d values, want %d", len(values), TotalFeatures)
	}

	vec := &model.FeatureVector{
		TenderID:      tender.ID,
		EngineVersion: EngineVersion,
		Names:         Names(),
		Values:        values,
		Title:         tender.Title,
		Institution:   tender.Institution,
		Winner:        model.Winner(bidders),
		PublishedAt:   tender.PublishedAt,
		ExtractedAt:   now,
	}

	zap.L().Debug("features: extracted",
		zap.String("tender_id", tender.ID),
		zap.Int("bidders", len(bidders)),
		zap.Int("documents", len(documents)),
	)

	return vec, nil
}
