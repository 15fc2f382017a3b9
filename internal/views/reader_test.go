package views

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/store"
)

func flaggedViewColumns() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"tender_id", "title", "institution", "winner", "estimated_value",
		"flag_count", "flag_types", "max_severity", "severity_rank",
		"risk_score", "risk_level", "last_detected_at",
	})
}

func TestFlaggedTendersDefault(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery(`FROM view_flagged_tenders ORDER BY risk_score DESC`).
		WithArgs(defaultFlaggedLimit).
		WillReturnRows(flaggedViewColumns().
			AddRow("T-1", "Road works", "City A", "Acme", 100000.0,
				2, []string{"short_deadline", "single_bidder"}, "high", 3, 65, "high", refreshNow).
			AddRow("T-2", "IT services", "City B", "", 50000.0,
				1, []string{"price_anomaly"}, "low", 1, 10, "minimal", refreshNow))

	out, err := m.FlaggedTenders(context.Background(), FlaggedFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "T-1", out[0].TenderID)
	assert.Equal(t, 65, out[0].RiskScore)
	assert.Equal(t, []string{"short_deadline", "single_bidder"}, out[0].FlagTypes)
	assert.Equal(t, model.RiskLevelMinimal, out[1].RiskLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlaggedTendersFiltered(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery(`WHERE max_severity = \$1 AND institution = \$2`).
		WithArgs("high", "City A", 25, 50).
		WillReturnRows(flaggedViewColumns())

	out, err := m.FlaggedTenders(context.Background(), FlaggedFilter{
		Severity:    model.SeverityHigh,
		Institution: "City A",
		Limit:       25,
		Offset:      50,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery(`FROM view_corruption_stats`).
		WillReturnRows(pgxmock.NewRows([]string{
			"total_flags", "total_flagged_tenders", "total_value_at_risk",
			"by_severity", "by_type", "generated_at",
		}).AddRow(3, 2, 150000.0,
			map[string]int{"high": 1, "medium": 1, "low": 1},
			map[string]int{"single_bidder": 1, "short_deadline": 1, "price_anomaly": 1},
			refreshNow))

	stats, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFlags)
	assert.Equal(t, 2, stats.TotalFlaggedTender)
	assert.Equal(t, 150000.0, stats.TotalValueAtRisk)
	assert.Equal(t, 1, stats.BySeverity["high"])
	assert.Equal(t, 1, stats.ByType["single_bidder"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsNotRefreshed(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectQuery(`FROM view_corruption_stats`).
		WillReturnError(pgx.ErrNoRows)

	_, err := m.Stats(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
