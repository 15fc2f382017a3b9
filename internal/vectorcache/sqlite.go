// Package vectorcache persists extracted feature vectors in a local SQLite
// file, keyed by tender id and engine version. The store stays the source of
// truth; the cache only saves recomputation on repeated reads, and a version
// bump invalidates every cached vector implicitly.
package vectorcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/procurewatch/riskengine/internal/model"
)

// Cache is a SQLite-backed feature vector cache.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path and configures WAL mode.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "vectorcache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "vectorcache: exec %s", pragma)
		}
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS feature_vectors (
	tender_id      TEXT NOT NULL,
	engine_version TEXT NOT NULL,
	vector         TEXT NOT NULL,
	extracted_at   DATETIME NOT NULL,
	cached_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (tender_id, engine_version)
);

CREATE INDEX IF NOT EXISTS idx_feature_vectors_cached_at ON feature_vectors(cached_at);
`

func (c *Cache) migrate() error {
	_, err := c.db.Exec(cacheMigration)
	return eris.Wrap(err, "vectorcache: migrate")
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached vector for a tender under the given engine version,
// or nil when absent. A corrupt row is treated as a miss after deletion.
func (c *Cache) Get(ctx context.Context, tenderID, engineVersion string) (*model.FeatureVector, error) {
	var vectorJSON string
	err := c.db.QueryRowContext(ctx,
		`SELECT vector FROM feature_vectors WHERE tender_id = ? AND engine_version = ?`,
		tenderID, engineVersion,
	).Scan(&vectorJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "vectorcache: get %s", tenderID)
	}

	var vec model.FeatureVector
	if err := json.Unmarshal([]byte(vectorJSON), &vec); err != nil {
		_, _ = c.db.ExecContext(ctx,
			`DELETE FROM feature_vectors WHERE tender_id = ? AND engine_version = ?`,
			tenderID, engineVersion)
		return nil, nil
	}
	return &vec, nil
}

// Put stores or replaces the cached vector for a tender.
func (c *Cache) Put(ctx context.Context, vec *model.FeatureVector) error {
	vectorJSON, err := json.Marshal(vec)
	if err != nil {
		return eris.Wrap(err, "vectorcache: marshal vector")
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO feature_vectors (tender_id, engine_version, vector, extracted_at, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tender_id, engine_version) DO UPDATE SET
			vector = excluded.vector,
			extracted_at = excluded.extracted_at,
			cached_at = excluded.cached_at`,
		vec.TenderID, vec.EngineVersion, string(vectorJSON), vec.ExtractedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "vectorcache: put %s", vec.TenderID)
}

// Invalidate removes the cached vector for one tender across all engine
// versions. Returns the number of rows removed.
func (c *Cache) Invalidate(ctx context.Context, tenderID string) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM feature_vectors WHERE tender_id = ?`, tenderID)
	if err != nil {
		return 0, eris.Wrapf(err, "vectorcache: invalidate %s", tenderID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "vectorcache: rows affected")
}

// Purge removes every cached vector not written by the given engine version.
// Run after a version bump to reclaim space.
func (c *Cache) Purge(ctx context.Context, keepVersion string) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM feature_vectors WHERE engine_version != ?`, keepVersion)
	if err != nil {
		return 0, eris.Wrap(err, "vectorcache: purge")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "vectorcache: rows affected")
}
