package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/procurewatch/riskengine/internal/db"
	"github.com/procurewatch/riskengine/internal/model"
)

// TenderStore reads procurement records through a pgx pool. All methods are
// read-only; the engine never mutates the source tables.
type TenderStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the per-tender queries prepared on each new
// connection; these run once per extraction and dominate query volume.
var preparedStatements = map[string]string{
	"get_tender": `SELECT id, title, category, institution, published_at, closing_at, awarded_at,
		estimated_value, actual_value, status, procedure, evaluation, security_deposit, cpv_code,
		lot_count, amendment_count, last_amendment_at, update_count, created_at, updated_at
		FROM tenders WHERE id = $1`,
	"list_bidders": `SELECT tender_id, company, bid_amount, rank, winner, disqualified, disqual_reason
		FROM bidders WHERE tender_id = $1 ORDER BY rank, company`,
	"list_documents": `SELECT tender_id, name, extraction_status, content_length, content_hash, is_specification
		FROM documents WHERE tender_id = $1 ORDER BY name`,
	"list_flags": `SELECT tender_id, flag_type, severity, false_positive, detected_at
		FROM corruption_flags WHERE tender_id = $1 AND false_positive = false ORDER BY detected_at`,
}

// NewPostgres creates a TenderStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*TenderStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare the hot per-tender statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &TenderStore{pool: pool, closeFn: pool.Close}, nil
}

// NewFromPool wraps an existing pool. The caller keeps ownership of the
// pool's lifecycle.
func NewFromPool(pool db.Pool) *TenderStore {
	return &TenderStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that run their own
// queries (the aggregation views).
func (s *TenderStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenders (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	institution       TEXT NOT NULL,
	published_at      TIMESTAMPTZ NOT NULL,
	closing_at        TIMESTAMPTZ,
	awarded_at        TIMESTAMPTZ,
	estimated_value   DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_value      DOUBLE PRECISION NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'active',
	procedure         TEXT NOT NULL DEFAULT 'open',
	evaluation        TEXT NOT NULL DEFAULT 'lowest_price',
	security_deposit  DOUBLE PRECISION NOT NULL DEFAULT 0,
	cpv_code          TEXT NOT NULL DEFAULT '',
	lot_count         INTEGER NOT NULL DEFAULT 0,
	amendment_count   INTEGER NOT NULL DEFAULT 0,
	last_amendment_at TIMESTAMPTZ,
	update_count      INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tenders_institution ON tenders(institution, published_at);
CREATE INDEX IF NOT EXISTS idx_tenders_category ON tenders(category);
CREATE INDEX IF NOT EXISTS idx_tenders_status ON tenders(status);

CREATE TABLE IF NOT EXISTS bidders (
	tender_id      TEXT NOT NULL REFERENCES tenders(id),
	company        TEXT NOT NULL,
	bid_amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
	rank           INTEGER NOT NULL DEFAULT 0,
	winner         BOOLEAN NOT NULL DEFAULT false,
	disqualified   BOOLEAN NOT NULL DEFAULT false,
	disqual_reason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tender_id, company)
);

CREATE INDEX IF NOT EXISTS idx_bidders_company ON bidders(company);

CREATE TABLE IF NOT EXISTS documents (
	tender_id        TEXT NOT NULL REFERENCES tenders(id),
	name             TEXT NOT NULL,
	extraction_status TEXT NOT NULL DEFAULT 'pending',
	content_length   BIGINT NOT NULL DEFAULT 0,
	content_hash     TEXT NOT NULL DEFAULT '',
	is_specification BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (tender_id, name)
);

CREATE TABLE IF NOT EXISTS corruption_flags (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tender_id      TEXT NOT NULL REFERENCES tenders(id),
	flag_type      TEXT NOT NULL,
	severity       TEXT NOT NULL,
	false_positive BOOLEAN NOT NULL DEFAULT false,
	detected_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_flags_tender ON corruption_flags(tender_id);
CREATE INDEX IF NOT EXISTS idx_flags_type ON corruption_flags(flag_type);
`

func (s *TenderStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the source tables and their lookup indexes if absent.
// Intended for local development; in production the ingestion service owns
// this schema.
func (s *TenderStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *TenderStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// GetTender returns one tender, or ErrNotFound.
func (s *TenderStore) GetTender(ctx context.Context, id string) (*model.Tender, error) {
	var t model.Tender
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, category, institution, published_at, closing_at, awarded_at,
			estimated_value, actual_value, status, procedure, evaluation, security_deposit, cpv_code,
			lot_count, amendment_count, last_amendment_at, update_count, created_at, updated_at
		 FROM tenders WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Title, &t.Category, &t.Institution, &t.PublishedAt, &t.ClosingAt, &t.AwardedAt,
		&t.EstimatedValue, &t.ActualValue, &t.Status, &t.Procedure, &t.Evaluation, &t.SecurityDeposit,
		&t.CPVCode, &t.LotCount, &t.AmendmentCount, &t.LastAmendmentAt, &t.UpdateCount,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "tender %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get tender %s", id)
	}
	return &t, nil
}

// ListBidders returns all bidders on a tender, ordered by rank.
func (s *TenderStore) ListBidders(ctx context.Context, tenderID string) ([]model.Bidder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tender_id, company, bid_amount, rank, winner, disqualified, disqual_reason
		 FROM bidders WHERE tender_id = $1 ORDER BY rank, company`,
		tenderID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list bidders for %s", tenderID)
	}
	defer rows.Close()

	var bidders []model.Bidder
	for rows.Next() {
		var b model.Bidder
		if err := rows.Scan(&b.TenderID, &b.Company, &b.BidAmount, &b.Rank, &b.Winner,
			&b.Disqualified, &b.DisqualReason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bidder")
		}
		bidders = append(bidders, b)
	}
	return bidders, eris.Wrap(rows.Err(), "postgres: list bidders iterate")
}

// ListDocuments returns all documents attached to a tender.
func (s *TenderStore) ListDocuments(ctx context.Context, tenderID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tender_id, name, extraction_status, content_length, content_hash, is_specification
		 FROM documents WHERE tender_id = $1 ORDER BY name`,
		tenderID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list documents for %s", tenderID)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.TenderID, &d.Name, &d.Status, &d.ContentLength,
			&d.ContentHash, &d.IsSpecification); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

// ListActiveFlags returns the non-false-positive flags on one tender.
func (s *TenderStore) ListActiveFlags(ctx context.Context, tenderID string) ([]model.Flag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tender_id, flag_type, severity, false_positive, detected_at
		 FROM corruption_flags WHERE tender_id = $1 AND false_positive = false ORDER BY detected_at`,
		tenderID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list flags for %s", tenderID)
	}
	defer rows.Close()

	var flags []model.Flag
	for rows.Next() {
		var f model.Flag
		if err := rows.Scan(&f.TenderID, &f.Type, &f.Severity, &f.FalsePositive, &f.DetectedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan flag")
		}
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "postgres: list flags iterate")
}

// InstitutionStats aggregates an institution's tender history since the given
// cutoff (zero time = all time).
func (s *TenderStore) InstitutionStats(ctx context.Context, institution string, since time.Time) (*InstitutionStats, error) {
	st := InstitutionStats{Institution: institution}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(bc.cnt), 0),
		        COUNT(*) FILTER (WHERE bc.cnt = 1),
		        COALESCE(SUM(t.actual_value) FILTER (WHERE t.status = 'awarded'), 0)
		 FROM tenders t
		 LEFT JOIN (SELECT tender_id, COUNT(*) AS cnt FROM bidders GROUP BY tender_id) bc
		   ON bc.tender_id = t.id
		 WHERE t.institution = $1 AND t.published_at >= $2`,
		institution, since,
	).Scan(&st.TenderCount, &st.AvgBidderCount, &st.SingleBidderCount, &st.TotalAwardedValue)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: institution stats for %s", institution)
	}
	return &st, nil
}

// CompanyInstitutionStats aggregates one company's bids and wins at one
// institution since the given cutoff.
func (s *TenderStore) CompanyInstitutionStats(ctx context.Context, company, institution string, since time.Time) (*CompanyInstitutionStats, error) {
	st := CompanyInstitutionStats{Company: company, Institution: institution}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE b.winner),
		        COALESCE(SUM(t.actual_value) FILTER (WHERE b.winner AND t.status = 'awarded'), 0)
		 FROM bidders b
		 JOIN tenders t ON t.id = b.tender_id
		 WHERE b.company = $1 AND t.institution = $2 AND t.published_at >= $3`,
		company, institution, since,
	).Scan(&st.Bids, &st.Wins, &st.AwardedValue)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: company stats for %s at %s", company, institution)
	}
	return &st, nil
}

// CompanyStats aggregates one company's bids and wins across all institutions.
func (s *TenderStore) CompanyStats(ctx context.Context, company string, since time.Time) (*CompanyStats, error) {
	st := CompanyStats{Company: company}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE b.winner)
		 FROM bidders b
		 JOIN tenders t ON t.id = b.tender_id
		 WHERE b.company = $1 AND t.published_at >= $2`,
		company, since,
	).Scan(&st.Bids, &st.Wins)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: company stats for %s", company)
	}
	return &st, nil
}

// CompanyTenderCounts returns, for each given company, how many tenders it bid
// on before the given time. Companies with no prior bids are absent from the
// result map.
func (s *TenderStore) CompanyTenderCounts(ctx context.Context, companies []string, before time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(companies))
	if len(companies) == 0 {
		return counts, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT b.company, COUNT(*)
		 FROM bidders b
		 JOIN tenders t ON t.id = b.tender_id
		 WHERE b.company = ANY($1) AND t.published_at < $2
		 GROUP BY b.company`,
		companies, before,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: company tender counts")
	}
	defer rows.Close()

	for rows.Next() {
		var company string
		var n int
		if err := rows.Scan(&company, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company tender count")
		}
		counts[company] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: company tender counts iterate")
}

// CoBidPairCounts returns, keyed by PairKey, how many prior tenders each pair
// of the given companies has co-bid on, excluding the tender being extracted.
func (s *TenderStore) CoBidPairCounts(ctx context.Context, companies []string, excludeTenderID string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(companies) < 2 {
		return counts, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT b1.company, b2.company, COUNT(DISTINCT b1.tender_id)
		 FROM bidders b1
		 JOIN bidders b2 ON b2.tender_id = b1.tender_id AND b1.company < b2.company
		 WHERE b1.company = ANY($1) AND b2.company = ANY($1) AND b1.tender_id <> $2
		 GROUP BY b1.company, b2.company`,
		companies, excludeTenderID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: co-bid pair counts")
	}
	defer rows.Close()

	for rows.Next() {
		var a, b string
		var n int
		if err := rows.Scan(&a, &b, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan co-bid pair")
		}
		counts[PairKey(a, b)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: co-bid pair counts iterate")
}

// CategoryBaseline returns average price levels for a tender category.
func (s *TenderStore) CategoryBaseline(ctx context.Context, category string) (*Baseline, error) {
	var b Baseline
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COALESCE(AVG(estimated_value), 0) FROM tenders WHERE category = $1 AND estimated_value > 0),
		   (SELECT COALESCE(AVG(actual_value), 0) FROM tenders WHERE category = $1 AND status = 'awarded' AND actual_value > 0),
		   (SELECT COALESCE(AVG(bd.bid_amount), 0) FROM bidders bd JOIN tenders t ON t.id = bd.tender_id
		      WHERE t.category = $1 AND bd.bid_amount > 0)`,
		category,
	).Scan(&b.AvgEstimatedValue, &b.AvgActualValue, &b.AvgBidAmount)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: category baseline for %s", category)
	}
	return &b, nil
}

// InstitutionBaseline returns average price levels for an institution.
func (s *TenderStore) InstitutionBaseline(ctx context.Context, institution string) (*Baseline, error) {
	var b Baseline
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COALESCE(AVG(estimated_value), 0) FROM tenders WHERE institution = $1 AND estimated_value > 0),
		   (SELECT COALESCE(AVG(actual_value), 0) FROM tenders WHERE institution = $1 AND status = 'awarded' AND actual_value > 0),
		   (SELECT COALESCE(AVG(bd.bid_amount), 0) FROM bidders bd JOIN tenders t ON t.id = bd.tender_id
		      WHERE t.institution = $1 AND bd.bid_amount > 0)`,
		institution,
	).Scan(&b.AvgEstimatedValue, &b.AvgActualValue, &b.AvgBidAmount)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: institution baseline for %s", institution)
	}
	return &b, nil
}

// RelatedCompanyCount counts known relationships among the given companies.
// The relationship table is optional: when it does not exist the count is 0,
// not an error.
func (s *TenderStore) RelatedCompanyCount(ctx context.Context, companies []string) (int, error) {
	if len(companies) < 2 {
		return 0, nil
	}

	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM company_relationships
		 WHERE company_a = ANY($1) AND company_b = ANY($1)`,
		companies,
	).Scan(&n)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table
			return 0, nil
		}
		return 0, eris.Wrap(err, "postgres: related company count")
	}
	return n, nil
}

// InstitutionMonthCounts returns the institution's tender count in the
// calendar month of ref and in the month before it.
func (s *TenderStore) InstitutionMonthCounts(ctx context.Context, institution string, ref time.Time) (current, previous int, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE published_at >= date_trunc('month', $2::timestamptz)
		                      AND published_at <  date_trunc('month', $2::timestamptz) + interval '1 month'),
		   COUNT(*) FILTER (WHERE published_at >= date_trunc('month', $2::timestamptz) - interval '1 month'
		                      AND published_at <  date_trunc('month', $2::timestamptz))
		 FROM tenders WHERE institution = $1`,
		institution, ref,
	).Scan(&current, &previous)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "postgres: month counts for %s", institution)
	}
	return current, previous, nil
}
