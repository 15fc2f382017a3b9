package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockStore creates a TenderStore backed by pgxmock for unit testing.
func newMockStore(t *testing.T) (*TenderStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &TenderStore{pool: mock}
	return s, mock
}

func TestGetTender_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, title, category, institution`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetTender(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTender_Found(t *testing.T) {
	s, mock := newMockStore(t)

	published := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	closing := published.AddDate(0, 0, 10)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, title, category, institution`).
		WithArgs("T-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "category", "institution", "published_at", "closing_at", "awarded_at",
			"estimated_value", "actual_value", "status", "procedure", "evaluation", "security_deposit",
			"cpv_code", "lot_count", "amendment_count", "last_amendment_at", "update_count",
			"created_at", "updated_at",
		}).AddRow(
			"T-1", "Road resurfacing", "construction", "City of Example", published, &closing, (*time.Time)(nil),
			100000.0, 0.0, "active", "open", "lowest_price", 5000.0,
			"45233141", 1, 0, (*time.Time)(nil), 0,
			now, now,
		))

	tender, err := s.GetTender(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1", tender.ID)
	assert.Equal(t, "City of Example", tender.Institution)
	require.NotNil(t, tender.ClosingAt)
	assert.Nil(t, tender.AwardedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBidders(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT tender_id, company, bid_amount, rank`).
		WithArgs("T-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"tender_id", "company", "bid_amount", "rank", "winner", "disqualified", "disqual_reason",
		}).
			AddRow("T-1", "Acme Build", 95000.0, 1, true, false, "").
			AddRow("T-1", "Borealis Ltd", 99000.0, 2, false, false, ""))

	bidders, err := s.ListBidders(context.Background(), "T-1")
	require.NoError(t, err)
	require.Len(t, bidders, 2)
	assert.True(t, bidders[0].Winner)
	assert.Equal(t, "Borealis Ltd", bidders[1].Company)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveFlags(t *testing.T) {
	s, mock := newMockStore(t)

	detected := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT tender_id, flag_type, severity`).
		WithArgs("T-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"tender_id", "flag_type", "severity", "false_positive", "detected_at",
		}).AddRow("T-1", "single_bidder", "high", false, detected))

	flags, err := s.ListActiveFlags(context.Background(), "T-1")
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "single_bidder", flags[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM tenders t`).
		WithArgs("City of Example", time.Time{}).
		WillReturnRows(pgxmock.NewRows([]string{"count", "avg", "single", "sum"}).
			AddRow(40, 3.5, 8, 1_200_000.0))

	st, err := s.InstitutionStats(context.Background(), "City of Example", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 40, st.TenderCount)
	assert.InDelta(t, 0.2, st.SingleBidderRate(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyTenderCounts_Empty(t *testing.T) {
	s, _ := newMockStore(t)

	counts, err := s.CompanyTenderCounts(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCoBidPairCounts_SingleCompany(t *testing.T) {
	s, _ := newMockStore(t)

	counts, err := s.CoBidPairCounts(context.Background(), []string{"Acme Build"}, "T-1")
	require.NoError(t, err)
	assert.Empty(t, counts, "no pairs exist for a single bidder")
}

func TestRelatedCompanyCount_TableMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM company_relationships`).
		WithArgs([]string{"Acme Build", "Borealis Ltd"}).
		WillReturnError(&pgconn.PgError{Code: "42P01"})

	n, err := s.RelatedCompanyCount(context.Background(), []string{"Acme Build", "Borealis Ltd"})
	require.NoError(t, err, "missing relationship table degrades to zero")
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionMonthCounts(t *testing.T) {
	s, mock := newMockStore(t)

	ref := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM tenders WHERE institution`).
		WithArgs("City of Example", ref).
		WillReturnRows(pgxmock.NewRows([]string{"current", "previous"}).AddRow(9, 3))

	cur, prev, err := s.InstitutionMonthCounts(context.Background(), "City of Example", ref)
	require.NoError(t, err)
	assert.Equal(t, 9, cur)
	assert.Equal(t, 3, prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPairKey_Canonical(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.Equal(t, "a|b", PairKey("b", "a"))
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, WindowStart(now, 0).IsZero())
	assert.Equal(t, now.AddDate(0, 0, -365), WindowStart(now, 365))
}
