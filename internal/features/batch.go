package features

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/procurewatch/riskengine/internal/model"
)

// ExtractError records a single tender failure inside a batch.
type ExtractError struct {
	TenderID string
	Err      error
}

func (e ExtractError) Error() string {
	return "features: " + e.TenderID + ": " + e.Err.Error()
}

func (e ExtractError) Unwrap() error { return e.Err }

// BatchConfig tunes the batch coordinator.
type BatchConfig struct {
	// Concurrency caps the number of tenders extracted in parallel.
	Concurrency int
	// RatePerSec throttles extraction starts. 0 disables throttling.
	RatePerSec float64
	// TenderTimeout bounds the work for one tender. 0 disables the bound.
	TenderTimeout time.Duration
}

// BatchResult holds the outcome of ExtractBatch. Vectors is aligned with
// the input ids; a nil entry marks a tender that failed, with the cause
// recorded in Errors.
type BatchResult struct {
	Vectors []*model.FeatureVector
	Errors  []ExtractError
}

// ExtractBatch extracts feature vectors for many tenders concurrently.
// All tenders in the batch share one lookup cache, so institution
// aggregates and baselines are queried once per batch instead of once per
// tender. A failing tender does not abort the batch; only context
// cancellation does.
func (e *Extractor) ExtractBatch(ctx context.Context, tenderIDs []string, cfg BatchConfig) (*BatchResult, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	start := time.Now()

	zap.L().Info("features: batch started",
		zap.Int("tenders", len(tenderIDs)),
		zap.Int("concurrency", cfg.Concurrency),
	)

	vectors := make([]*model.FeatureVector, len(tenderIDs))
	errs := make([]ExtractError, len(tenderIDs))

	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	// Shared lookups live as long as the batch, not any single tender, so
	// one tender's timeout cannot fail a flight other tenders wait on.
	lookups := e.newLookups(gctx)

	for i, id := range tenderIDs {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return eris.Wrap(err, "features: batch rate limiter")
				}
			}

			tctx := gctx
			if cfg.TenderTimeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(gctx, cfg.TenderTimeout)
				defer cancel()
			}

			vec, err := e.extract(tctx, lookups, id)
			if err != nil {
				if gctx.Err() != nil {
					return eris.Wrap(gctx.Err(), "features: batch cancelled")
				}
				failed.Add(1)
				errs[i] = ExtractError{TenderID: id, Err: err}
				zap.L().Warn("features: tender failed",
					zap.String("tender_id", id),
					zap.Error(err),
				)
				return nil
			}

			vectors[i] = vec
			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BatchResult{Vectors: vectors}
	for _, ee := range errs {
		if ee.TenderID != "" {
			out.Errors = append(out.Errors, ee)
		}
	}

	zap.L().Info("features: batch finished",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return out, nil
}
