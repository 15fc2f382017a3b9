package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/procurewatch/riskengine/internal/features"
	"github.com/procurewatch/riskengine/internal/resilience"
	"github.com/procurewatch/riskengine/internal/risk"
	"github.com/procurewatch/riskengine/internal/store"
	"github.com/procurewatch/riskengine/internal/vectorcache"
	"github.com/procurewatch/riskengine/internal/views"
)

// engineEnv holds the initialized store and engine components shared by the
// extract/batch/score/refresh/serve commands.
type engineEnv struct {
	Store      *store.TenderStore
	Extractor  *features.Extractor
	Aggregator *risk.Aggregator
	Views      *views.Manager
	Cache      *vectorcache.Cache // nil when disabled
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine connects to the store and wires up the engine. Callers should
// defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required (RISKENGINE_STORE_DATABASE_URL)")
	}

	weights, err := risk.LoadWeights(cfg.Risk.WeightsFile)
	if err != nil {
		return nil, err
	}

	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Store.RetryAttempts
	retry.OnRetry = resilience.RetryLogger("store", "query")

	extractor := features.NewExtractor(st, retry, features.Config{
		HistoricalWindowDays: cfg.Features.HistoricalWindowDays,
		CoBidMinCount:        cfg.Features.CoBidMinCount,
	})

	aggregator, err := risk.NewAggregator(st, weights)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	viewMgr, err := views.NewManager(st.Pool(), weights)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var cache *vectorcache.Cache
	if cfg.Cache.Enabled {
		cache, err = vectorcache.Open(cfg.Cache.Path)
		if err != nil {
			zap.L().Warn("vector cache unavailable, extracting without it", zap.Error(err))
			cache = nil
		} else {
			zap.L().Info("vector cache enabled", zap.String("path", cfg.Cache.Path))
		}
	}

	return &engineEnv{
		Store:      st,
		Extractor:  extractor,
		Aggregator: aggregator,
		Views:      viewMgr,
		Cache:      cache,
	}, nil
}

// batchConfig converts the configured batch settings for the coordinator.
func batchConfig() features.BatchConfig {
	return features.BatchConfig{
		Concurrency:   cfg.Batch.Concurrency,
		RatePerSec:    cfg.Batch.RatePerSec,
		TenderTimeout: time.Duration(cfg.Batch.TenderTimeoutSecs) * time.Second,
	}
}
