package risk

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/procurewatch/riskengine/internal/model"
)

// FlagSource lists the active (non-false-positive) flags for a tender.
// *store.TenderStore satisfies it.
type FlagSource interface {
	GetTender(ctx context.Context, id string) (*model.Tender, error)
	ListActiveFlags(ctx context.Context, tenderID string) ([]model.Flag, error)
}

// Aggregator computes composite risk scores from flags.
type Aggregator struct {
	source  FlagSource
	weights Weights
}

// NewAggregator creates an Aggregator. The weight table must already be
// validated; NewAggregator rejects a bad one so a misconfigured process
// fails at startup.
func NewAggregator(source FlagSource, weights Weights) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{source: source, weights: weights}, nil
}

// Score computes the composite risk score for one tender. A tender with no
// active flags scores 0/minimal; a missing tender surfaces store.ErrNotFound.
func (a *Aggregator) Score(ctx context.Context, tenderID string) (*model.RiskScore, error) {
	if _, err := a.source.GetTender(ctx, tenderID); err != nil {
		return nil, eris.Wrapf(err, "risk: score %s", tenderID)
	}
	flags, err := a.source.ListActiveFlags(ctx, tenderID)
	if err != nil {
		return nil, eris.Wrapf(err, "risk: flags for %s", tenderID)
	}
	return ScoreFlags(tenderID, flags, a.weights), nil
}

// ScoreFlags computes the composite score for an already-loaded flag set.
// The view refresher uses this directly so the cache and the live Score
// endpoint can never disagree.
func ScoreFlags(tenderID string, flags []model.Flag, w Weights) *model.RiskScore {
	score, active := 0, 0
	for _, f := range flags {
		if f.FalsePositive {
			continue
		}
		active++
		score += w.Weight(f.Severity)
	}
	if score > 100 {
		score = 100
	}
	return &model.RiskScore{
		TenderID:  tenderID,
		Score:     score,
		Level:     w.Level(score),
		FlagCount: active,
	}
}
