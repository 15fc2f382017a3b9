package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/store"
)

// FlaggedFilter narrows a flagged-tenders read. Zero values mean no filter.
type FlaggedFilter struct {
	Severity    model.Severity
	Institution string
	Winner      string
	Limit       int
	Offset      int
}

const defaultFlaggedLimit = 100

// FlaggedTenders reads the published flagged_tenders view, sorted by risk
// score descending.
func (m *Manager) FlaggedTenders(ctx context.Context, filter FlaggedFilter) ([]model.FlaggedTender, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Severity != "" {
		where = append(where, "max_severity = "+arg(string(filter.Severity)))
	}
	if filter.Institution != "" {
		where = append(where, "institution = "+arg(filter.Institution))
	}
	if filter.Winner != "" {
		where = append(where, "winner = "+arg(filter.Winner))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultFlaggedLimit
	}

	query := `SELECT tender_id, title, institution, winner, estimated_value,
		flag_count, flag_types, max_severity, severity_rank, risk_score, risk_level, last_detected_at
		FROM view_flagged_tenders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY risk_score DESC, severity_rank DESC, tender_id"
	query += " LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := m.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "views: query flagged tenders")
	}
	defer rows.Close()

	var out []model.FlaggedTender
	for rows.Next() {
		var ft model.FlaggedTender
		if err := rows.Scan(&ft.TenderID, &ft.Title, &ft.Institution, &ft.Winner,
			&ft.EstimatedValue, &ft.FlagCount, &ft.FlagTypes, &ft.MaxSeverity,
			&ft.SeverityRank, &ft.RiskScore, &ft.RiskLevel, &ft.LastDetectedAt); err != nil {
			return nil, eris.Wrap(err, "views: scan flagged tender")
		}
		out = append(out, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "views: read flagged tenders")
	}
	return out, nil
}

// Stats reads the published corruption_stats row. Returns ErrNotFound until
// the first refresh has run.
func (m *Manager) Stats(ctx context.Context) (*model.CorruptionStats, error) {
	stats := &model.CorruptionStats{}
	err := m.pool.QueryRow(ctx,
		`SELECT total_flags, total_flagged_tenders, total_value_at_risk, by_severity, by_type, generated_at
		FROM view_corruption_stats WHERE id = 1`).
		Scan(&stats.TotalFlags, &stats.TotalFlaggedTender, &stats.TotalValueAtRisk,
			&stats.BySeverity, &stats.ByType, &stats.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(store.ErrNotFound, "views: stats not yet refreshed")
		}
		return nil, eris.Wrap(err, "views: query stats")
	}
	return stats, nil
}
