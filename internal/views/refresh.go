package views

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurewatch/riskengine/internal/db"
	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/risk"
)

// sourceFlagsQuery joins active flags with their tenders and winning bidder.
// Ordered by tender so the refresher can group rows in a single pass.
const sourceFlagsQuery = `
SELECT f.tender_id, t.title, t.institution, COALESCE(w.company, ''), t.estimated_value,
       f.flag_type, f.severity, f.detected_at
FROM corruption_flags f
JOIN tenders t ON t.id = f.tender_id
LEFT JOIN (
	SELECT DISTINCT ON (tender_id) tender_id, company
	FROM bidders WHERE winner ORDER BY tender_id, rank
) w ON w.tender_id = f.tender_id
WHERE f.false_positive = false
ORDER BY f.tender_id, f.detected_at, f.flag_type`

// Refresh rebuilds one view by name.
func (m *Manager) Refresh(ctx context.Context, view string) (*model.RefreshResult, error) {
	switch view {
	case ViewFlaggedTenders:
		return m.RefreshFlaggedTenders(ctx)
	case ViewCorruptionStats:
		return m.RefreshStats(ctx)
	default:
		return nil, eris.Wrapf(ErrUnknownView, "%q", view)
	}
}

// RefreshAll rebuilds both views, flagged tenders first.
func (m *Manager) RefreshAll(ctx context.Context) ([]*model.RefreshResult, error) {
	var results []*model.RefreshResult
	for _, view := range []string{ViewFlaggedTenders, ViewCorruptionStats} {
		res, err := m.Refresh(ctx, view)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RefreshFlaggedTenders rebuilds the flagged_tenders view. Rows are computed
// from the source tables, bulk-copied into staging, then swapped into the
// live table inside one transaction. Returns ErrRefreshBusy if a rebuild of
// this view is already running.
func (m *Manager) RefreshFlaggedTenders(ctx context.Context) (*model.RefreshResult, error) {
	if !m.flaggedMu.TryLock() {
		return nil, eris.Wrapf(ErrRefreshBusy, "%s", ViewFlaggedTenders)
	}
	defer m.flaggedMu.Unlock()

	start := m.nowFn()
	runID := uuid.NewString()

	rows, err := m.computeFlaggedRows(ctx)
	if err != nil {
		return nil, err
	}

	columns := []string{
		"tender_id", "title", "institution", "winner", "estimated_value",
		"flag_count", "flag_types", "max_severity", "severity_rank",
		"risk_score", "risk_level", "last_detected_at",
	}
	staged := make([][]any, len(rows))
	for i, r := range rows {
		staged[i] = []any{
			r.TenderID, r.Title, r.Institution, r.Winner, r.EstimatedValue,
			r.FlagCount, r.FlagTypes, string(r.MaxSeverity), r.SeverityRank,
			r.RiskScore, string(r.RiskLevel), r.LastDetectedAt,
		}
	}

	written, err := m.swap(ctx, swapSpec{
		view:    ViewFlaggedTenders,
		staging: "view_flagged_tenders_staging",
		live:    "view_flagged_tenders",
		lockKey: lockKeyFlagged,
		columns: columns,
		rows:    staged,
		runID:   runID,
		start:   start,
	})
	if err != nil {
		return nil, err
	}

	res := &model.RefreshResult{
		View:        ViewFlaggedTenders,
		RowsWritten: written,
		Duration:    m.nowFn().Sub(start),
		RefreshedAt: m.nowFn(),
	}
	zap.L().Info("views: refreshed",
		zap.String("view", res.View),
		zap.String("run_id", runID),
		zap.Int64("rows", res.RowsWritten),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// computeFlaggedRows loads the flag/tender join and folds it into one row per
// flagged tender, scored with the same weight table as the live endpoint.
func (m *Manager) computeFlaggedRows(ctx context.Context) ([]model.FlaggedTender, error) {
	rows, err := m.pool.Query(ctx, sourceFlagsQuery)
	if err != nil {
		return nil, eris.Wrap(err, "views: load flags")
	}
	defer rows.Close()

	var out []model.FlaggedTender
	var cur *model.FlaggedTender
	var curFlags []model.Flag
	var curTypes map[string]bool

	flush := func() {
		if cur == nil {
			return
		}
		rs := risk.ScoreFlags(cur.TenderID, curFlags, m.weights)
		cur.FlagCount = rs.FlagCount
		cur.RiskScore = rs.Score
		cur.RiskLevel = rs.Level
		cur.FlagTypes = sortedKeys(curTypes)
		out = append(out, *cur)
	}

	for rows.Next() {
		var (
			tenderID, title, institution, winner string
			estimatedValue                       float64
			flagType                             string
			severity                             model.Severity
			detectedAt                           time.Time
		)
		if err := rows.Scan(&tenderID, &title, &institution, &winner, &estimatedValue,
			&flagType, &severity, &detectedAt); err != nil {
			return nil, eris.Wrap(err, "views: scan flag row")
		}

		if cur == nil || cur.TenderID != tenderID {
			flush()
			cur = &model.FlaggedTender{
				TenderID:       tenderID,
				Title:          title,
				Institution:    institution,
				Winner:         winner,
				EstimatedValue: estimatedValue,
			}
			curFlags = curFlags[:0]
			curTypes = make(map[string]bool)
		}

		curFlags = append(curFlags, model.Flag{TenderID: tenderID, Type: flagType, Severity: severity})
		curTypes[flagType] = true
		if severity.Rank() > cur.SeverityRank {
			cur.SeverityRank = severity.Rank()
			cur.MaxSeverity = severity
		}
		if detectedAt.After(cur.LastDetectedAt) {
			cur.LastDetectedAt = detectedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "views: read flag rows")
	}
	flush()

	return out, nil
}

// RefreshStats rebuilds the corruption_stats singleton row.
func (m *Manager) RefreshStats(ctx context.Context) (*model.RefreshResult, error) {
	if !m.statsMu.TryLock() {
		return nil, eris.Wrapf(ErrRefreshBusy, "%s", ViewCorruptionStats)
	}
	defer m.statsMu.Unlock()

	start := m.nowFn()
	runID := uuid.NewString()

	stats, err := m.computeStats(ctx)
	if err != nil {
		return nil, err
	}

	written, err := m.swap(ctx, swapSpec{
		view:    ViewCorruptionStats,
		staging: "",
		live:    "view_corruption_stats",
		lockKey: lockKeyStats,
		columns: nil,
		rows: [][]any{{
			1, stats.TotalFlags, stats.TotalFlaggedTender, stats.TotalValueAtRisk,
			stats.BySeverity, stats.ByType, stats.GeneratedAt,
		}},
		runID: runID,
		start: start,
	})
	if err != nil {
		return nil, err
	}

	res := &model.RefreshResult{
		View:        ViewCorruptionStats,
		RowsWritten: written,
		Duration:    m.nowFn().Sub(start),
		RefreshedAt: m.nowFn(),
	}
	zap.L().Info("views: refreshed",
		zap.String("view", res.View),
		zap.String("run_id", runID),
		zap.Int64("rows", res.RowsWritten),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

const sourceStatsQuery = `
SELECT f.tender_id, f.flag_type, f.severity, t.estimated_value
FROM corruption_flags f
JOIN tenders t ON t.id = f.tender_id
WHERE f.false_positive = false`

func (m *Manager) computeStats(ctx context.Context) (*model.CorruptionStats, error) {
	rows, err := m.pool.Query(ctx, sourceStatsQuery)
	if err != nil {
		return nil, eris.Wrap(err, "views: load stats")
	}
	defer rows.Close()

	stats := &model.CorruptionStats{
		BySeverity:  make(map[string]int),
		ByType:      make(map[string]int),
		GeneratedAt: m.nowFn(),
	}
	seenTenders := make(map[string]bool)

	for rows.Next() {
		var tenderID, flagType string
		var severity model.Severity
		var estimatedValue float64
		if err := rows.Scan(&tenderID, &flagType, &severity, &estimatedValue); err != nil {
			return nil, eris.Wrap(err, "views: scan stats row")
		}
		stats.TotalFlags++
		stats.BySeverity[string(severity)]++
		stats.ByType[flagType]++
		if !seenTenders[tenderID] {
			seenTenders[tenderID] = true
			stats.TotalFlaggedTender++
			stats.TotalValueAtRisk += estimatedValue
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "views: read stats rows")
	}
	return stats, nil
}

// swapSpec describes one rebuild-and-swap. When staging is empty, rows are
// inserted into the live table directly inside the transaction (used for the
// single-row stats view, where COPY buys nothing).
type swapSpec struct {
	view    string
	staging string
	live    string
	lockKey int64
	columns []string
	rows    [][]any
	runID   string
	start   time.Time
}

// swap publishes a computed view atomically. On any failure the transaction
// rolls back, discarding staging and leaving the live view untouched.
func (m *Manager) swap(ctx context.Context, spec swapSpec) (int64, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "views: begin swap %s", spec.view)
	}
	defer tx.Rollback(ctx)

	// Serialize against rebuilds of the same view in other processes.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", spec.lockKey); err != nil {
		return 0, eris.Wrapf(err, "views: advisory lock %s", spec.view)
	}

	var written int64
	if spec.staging != "" {
		if _, err := tx.Exec(ctx, "TRUNCATE "+spec.staging); err != nil {
			return 0, eris.Wrapf(err, "views: truncate staging %s", spec.view)
		}
		written, err = db.CopyFrom(ctx, tx, spec.staging, spec.columns, spec.rows)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM "+spec.live); err != nil {
			return 0, eris.Wrapf(err, "views: clear %s", spec.view)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO "+spec.live+" SELECT * FROM "+spec.staging); err != nil {
			return 0, eris.Wrapf(err, "views: publish %s", spec.view)
		}
	} else {
		if _, err := tx.Exec(ctx, "DELETE FROM "+spec.live); err != nil {
			return 0, eris.Wrapf(err, "views: clear %s", spec.view)
		}
		for _, row := range spec.rows {
			if _, err := tx.Exec(ctx,
				`INSERT INTO view_corruption_stats
					(id, total_flags, total_flagged_tenders, total_value_at_risk, by_severity, by_type, generated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`, row...); err != nil {
				return 0, eris.Wrapf(err, "views: publish %s", spec.view)
			}
			written++
		}
	}

	refreshedAt := m.nowFn()
	if _, err := tx.Exec(ctx,
		`INSERT INTO view_refresh (view_name, run_id, refreshed_at, rows_written, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (view_name) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			refreshed_at = EXCLUDED.refreshed_at,
			rows_written = EXCLUDED.rows_written,
			duration_ms = EXCLUDED.duration_ms`,
		spec.view, spec.runID, refreshedAt, written, refreshedAt.Sub(spec.start).Milliseconds()); err != nil {
		return 0, eris.Wrapf(err, "views: record refresh %s", spec.view)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "views: commit swap %s", spec.view)
	}
	return written, nil
}

// LastRefreshed returns the freshness timestamp for one view, or the zero
// time when the view has never been refreshed.
func (m *Manager) LastRefreshed(ctx context.Context, view string) (time.Time, error) {
	if view != ViewFlaggedTenders && view != ViewCorruptionStats {
		return time.Time{}, eris.Wrapf(ErrUnknownView, "%q", view)
	}
	var ts time.Time
	err := m.pool.QueryRow(ctx,
		"SELECT refreshed_at FROM view_refresh WHERE view_name = $1", view).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, eris.Wrapf(err, "views: last refreshed %s", view)
	}
	return ts, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
