// Package views maintains the engine-owned aggregation cache: two derived
// read models (flagged_tenders and corruption_stats) that the dashboard reads
// instead of recomputing aggregates from the source tables on every request.
// Refreshes rebuild a view from scratch into a staging table and swap it in
// atomically, so readers see either the old version or the new one.
package views

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/procurewatch/riskengine/internal/db"
	"github.com/procurewatch/riskengine/internal/risk"
)

// View names accepted by Refresh and LastRefreshed.
const (
	ViewFlaggedTenders  = "flagged_tenders"
	ViewCorruptionStats = "corruption_stats"
)

// ErrRefreshBusy is returned when a refresh of the same view is already
// running in this process.
var ErrRefreshBusy = eris.New("views: refresh already running")

// ErrUnknownView is returned for a view name outside the two defined views.
var ErrUnknownView = eris.New("views: unknown view")

// Per-view pg_advisory_xact_lock keys, guarding against concurrent rebuilds
// from other processes.
const (
	lockKeyFlagged = int64(0x5057_0001)
	lockKeyStats   = int64(0x5057_0002)
)

// Manager rebuilds and reads the aggregation cache. Safe for concurrent use;
// each view's rebuild is mutually exclusive with itself but not with reads or
// with the other view's rebuild.
type Manager struct {
	pool    db.Pool
	weights risk.Weights

	flaggedMu sync.Mutex
	statsMu   sync.Mutex

	nowFn func() time.Time
}

// NewManager creates a Manager. The weight table must validate; the cache
// scores rows with the same table as the live score endpoint.
func NewManager(pool db.Pool, weights risk.Weights) (*Manager, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		pool:    pool,
		weights: weights,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}, nil
}

const viewsMigration = `
CREATE TABLE IF NOT EXISTS view_flagged_tenders (
	tender_id        TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	institution      TEXT NOT NULL,
	winner           TEXT NOT NULL DEFAULT '',
	estimated_value  DOUBLE PRECISION NOT NULL DEFAULT 0,
	flag_count       INTEGER NOT NULL,
	flag_types       TEXT[] NOT NULL,
	max_severity     TEXT NOT NULL,
	severity_rank    INTEGER NOT NULL,
	risk_score       INTEGER NOT NULL,
	risk_level       TEXT NOT NULL,
	last_detected_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS view_flagged_tenders_staging (
	LIKE view_flagged_tenders INCLUDING ALL
);

CREATE INDEX IF NOT EXISTS idx_view_flagged_score ON view_flagged_tenders(risk_score DESC);
CREATE INDEX IF NOT EXISTS idx_view_flagged_institution ON view_flagged_tenders(institution);

CREATE TABLE IF NOT EXISTS view_corruption_stats (
	id                    INTEGER PRIMARY KEY,
	total_flags           INTEGER NOT NULL,
	total_flagged_tenders INTEGER NOT NULL,
	total_value_at_risk   DOUBLE PRECISION NOT NULL,
	by_severity           JSONB NOT NULL,
	by_type               JSONB NOT NULL,
	generated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS view_refresh (
	view_name    TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	refreshed_at TIMESTAMPTZ NOT NULL,
	rows_written BIGINT NOT NULL,
	duration_ms  BIGINT NOT NULL
);
`

// Migrate creates the cache tables if absent. Unlike the source schema,
// these are owned by the engine.
func (m *Manager) Migrate(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, viewsMigration)
	return eris.Wrap(err, "views: migrate")
}
