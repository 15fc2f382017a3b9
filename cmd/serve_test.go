package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurewatch/riskengine/internal/config"
	"github.com/procurewatch/riskengine/internal/features"
	"github.com/procurewatch/riskengine/internal/resilience"
	"github.com/procurewatch/riskengine/internal/risk"
	"github.com/procurewatch/riskengine/internal/store"
	"github.com/procurewatch/riskengine/internal/views"
)

func newTestEnv(t *testing.T) (*engineEnv, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	cfg = &config.Config{}

	st := store.NewFromPool(mock)
	weights := risk.DefaultWeights()

	aggregator, err := risk.NewAggregator(st, weights)
	require.NoError(t, err)
	viewMgr, err := views.NewManager(mock, weights)
	require.NoError(t, err)

	return &engineEnv{
		Store: st,
		Extractor: features.NewExtractor(st, resilience.RetryConfig{MaxAttempts: 1},
			features.Config{}),
		Aggregator: aggregator,
		Views:      viewMgr,
	}, mock
}

func doRequest(t *testing.T, env *engineEnv, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	env, _ := newTestEnv(t)

	rec := doRequest(t, env, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFeaturesMetaEndpoint(t *testing.T) {
	env, _ := newTestEnv(t)

	rec := doRequest(t, env, http.MethodGet, "/api/features/meta")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":113`)
	assert.Contains(t, rec.Body.String(), "competition")
	assert.Contains(t, rec.Body.String(), "single_bidder")
}

func TestScoreEndpoint(t *testing.T) {
	env, mock := newTestEnv(t)

	published := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, title, category, institution`).
		WithArgs("T-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "category", "institution", "published_at", "closing_at", "awarded_at",
			"estimated_value", "actual_value", "status", "procedure", "evaluation", "security_deposit",
			"cpv_code", "lot_count", "amendment_count", "last_amendment_at", "update_count",
			"created_at", "updated_at",
		}).AddRow(
			"T-1", "Road works", "construction", "City A", published, (*time.Time)(nil), (*time.Time)(nil),
			100000.0, 0.0, "active", "open", "lowest_price", 0.0,
			"", 0, 0, (*time.Time)(nil), 0,
			now, now,
		))
	mock.ExpectQuery(`SELECT tender_id, flag_type, severity`).
		WithArgs("T-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"tender_id", "flag_type", "severity", "false_positive", "detected_at",
		}).AddRow("T-1", "single_bidder", "high", false, now))

	rec := doRequest(t, env, http.MethodGet, "/api/score/T-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"risk_score":40`)
	assert.Contains(t, rec.Body.String(), `"risk_level":"medium"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreEndpointNotFound(t *testing.T) {
	env, mock := newTestEnv(t)

	mock.ExpectQuery(`SELECT id, title, category, institution`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec := doRequest(t, env, http.MethodGet, "/api/score/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlaggedEndpoint(t *testing.T) {
	env, mock := newTestEnv(t)

	refreshed := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM view_flagged_tenders`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{
			"tender_id", "title", "institution", "winner", "estimated_value",
			"flag_count", "flag_types", "max_severity", "severity_rank",
			"risk_score", "risk_level", "last_detected_at",
		}).AddRow("T-1", "Road works", "City A", "Acme", 100000.0,
			1, []string{"single_bidder"}, "high", 3, 40, "medium", refreshed))
	mock.ExpectQuery(`SELECT refreshed_at FROM view_refresh`).
		WithArgs(views.ViewFlaggedTenders).
		WillReturnRows(pgxmock.NewRows([]string{"refreshed_at"}).AddRow(refreshed))

	rec := doRequest(t, env, http.MethodGet, "/api/flagged")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tender_id":"T-1"`)
	assert.Contains(t, rec.Body.String(), `"last_refreshed_at"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshEndpointUnknownView(t *testing.T) {
	env, _ := newTestEnv(t)

	rec := doRequest(t, env, http.MethodPost, "/api/views/refresh?view=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchEndpointRejectsEmptyBody(t *testing.T) {
	env, _ := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/features/batch", nil)
	rec := httptest.NewRecorder()
	newRouter(env).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
