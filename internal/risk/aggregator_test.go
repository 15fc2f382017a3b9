package risk

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/store"
)

type fakeFlagSource struct {
	tenders map[string]*model.Tender
	flags   map[string][]model.Flag
}

func (f *fakeFlagSource) GetTender(_ context.Context, id string) (*model.Tender, error) {
	t, ok := f.tenders[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "tender %s", id)
	}
	return t, nil
}

func (f *fakeFlagSource) ListActiveFlags(_ context.Context, tenderID string) ([]model.Flag, error) {
	return f.flags[tenderID], nil
}

func flag(severity model.Severity) model.Flag {
	return model.Flag{Severity: severity, DetectedAt: time.Now()}
}

func TestScoreSumsActiveFlagWeights(t *testing.T) {
	src := &fakeFlagSource{
		tenders: map[string]*model.Tender{"t-1": {ID: "t-1"}},
		flags: map[string][]model.Flag{
			"t-1": {flag(model.SeverityHigh), flag(model.SeverityMedium)},
		},
	}
	agg, err := NewAggregator(src, DefaultWeights())
	require.NoError(t, err)

	rs, err := agg.Score(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 65, rs.Score)
	assert.Equal(t, model.RiskLevelHigh, rs.Level)
	assert.Equal(t, 2, rs.FlagCount)
}

func TestScoreNoFlagsIsMinimal(t *testing.T) {
	src := &fakeFlagSource{tenders: map[string]*model.Tender{"t-1": {ID: "t-1"}}}
	agg, err := NewAggregator(src, DefaultWeights())
	require.NoError(t, err)

	rs, err := agg.Score(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Score)
	assert.Equal(t, model.RiskLevelMinimal, rs.Level)
	assert.Zero(t, rs.FlagCount)
}

func TestScoreMissingTender(t *testing.T) {
	src := &fakeFlagSource{tenders: map[string]*model.Tender{}}
	agg, err := NewAggregator(src, DefaultWeights())
	require.NoError(t, err)

	_, err = agg.Score(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestScoreCapsAtHundred(t *testing.T) {
	flags := make([]model.Flag, 5)
	for i := range flags {
		flags[i] = flag(model.SeverityCritical)
	}
	rs := ScoreFlags("t-1", flags, DefaultWeights())
	assert.Equal(t, 100, rs.Score)
	assert.Equal(t, model.RiskLevelCritical, rs.Level)
}

func TestScoreIgnoresFalsePositives(t *testing.T) {
	flags := []model.Flag{
		flag(model.SeverityCritical),
		{Severity: model.SeverityCritical, FalsePositive: true},
	}
	rs := ScoreFlags("t-1", flags, DefaultWeights())
	assert.Equal(t, 60, rs.Score)
	assert.Equal(t, 1, rs.FlagCount)
}

// Adding any flag never decreases the score; upgrading a flag's severity
// never decreases it either.
func TestScoreMonotonic(t *testing.T) {
	w := DefaultWeights()
	severities := []model.Severity{
		model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical,
	}

	base := []model.Flag{flag(model.SeverityMedium), flag(model.SeverityLow)}
	before := ScoreFlags("t-1", base, w).Score

	for _, s := range severities {
		after := ScoreFlags("t-1", append(append([]model.Flag{}, base...), flag(s)), w).Score
		assert.GreaterOrEqual(t, after, before, "adding %s flag decreased score", s)
	}

	for i := 1; i < len(severities); i++ {
		lower := ScoreFlags("t-1", []model.Flag{flag(severities[i-1])}, w).Score
		higher := ScoreFlags("t-1", []model.Flag{flag(severities[i])}, w).Score
		assert.GreaterOrEqual(t, higher, lower)
	}
}

func TestNewAggregatorRejectsBadWeights(t *testing.T) {
	w := DefaultWeights()
	w.High = 0
	_, err := NewAggregator(&fakeFlagSource{}, w)
	require.Error(t, err)
}
