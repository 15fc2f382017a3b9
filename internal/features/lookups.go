package features

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/resilience"
	"github.com/procurewatch/riskengine/internal/store"
)

// Store is the data access surface the extractor needs. *store.TenderStore
// satisfies it; tests substitute fakes.
type Store interface {
	GetTender(ctx context.Context, id string) (*model.Tender, error)
	ListBidders(ctx context.Context, tenderID string) ([]model.Bidder, error)
	ListDocuments(ctx context.Context, tenderID string) ([]model.Document, error)
	InstitutionStats(ctx context.Context, institution string, since time.Time) (*store.InstitutionStats, error)
	CompanyInstitutionStats(ctx context.Context, company, institution string, since time.Time) (*store.CompanyInstitutionStats, error)
	CompanyStats(ctx context.Context, company string, since time.Time) (*store.CompanyStats, error)
	CompanyTenderCounts(ctx context.Context, companies []string, before time.Time) (map[string]int, error)
	CoBidPairCounts(ctx context.Context, companies []string, excludeTenderID string) (map[string]int, error)
	CategoryBaseline(ctx context.Context, category string) (*store.Baseline, error)
	InstitutionBaseline(ctx context.Context, institution string) (*store.Baseline, error)
	RelatedCompanyCount(ctx context.Context, companies []string) (int, error)
	InstitutionMonthCounts(ctx context.Context, institution string, ref time.Time) (int, int, error)
}

// monthCounts carries the cached result of InstitutionMonthCounts.
type monthCounts struct {
	Current  int
	Previous int
}

// Lookups wraps the store with transient-error retries and a write-once,
// read-many cache over lookups whose result is shared across tenders
// (institution aggregates, company histories, baselines). A singleflight
// group guards each key so concurrent extractions never issue duplicate
// queries for the same aggregate.
type Lookups struct {
	store Store
	retry resilience.RetryConfig
	group singleflight.Group

	// base bounds the lifetime of shared fetches. A flight serves every
	// caller waiting on its key, so it must not run under any single
	// caller's context; it runs under base and dies with the batch.
	base context.Context

	mu    sync.RWMutex
	cache map[string]any
}

// NewLookups creates a lookup layer around the store. One Lookups instance
// is scoped to one extraction or one batch; its cache is never invalidated,
// it is discarded with the batch. base is the extraction or batch context.
func NewLookups(base context.Context, s Store, retry resilience.RetryConfig) *Lookups {
	if base == nil {
		base = context.Background()
	}
	return &Lookups{
		store: s,
		retry: retry,
		base:  base,
		cache: make(map[string]any),
	}
}

// cachedLookup returns the cached value for key, or fetches it exactly once
// (with retries) while concurrent callers for the same key wait. The fetch
// runs under the layer's base context; a caller whose own context ends
// stops waiting and gets its context error, but the flight keeps going for
// the callers still waiting on it.
func cachedLookup[T any](ctx context.Context, l *Lookups, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	l.mu.RLock()
	if v, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return v.(T), nil
	}
	l.mu.RUnlock()

	ch := l.group.DoChan(key, func() (any, error) {
		val, err := resilience.DoVal(l.base, l.retry, fetch)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[key] = val
		l.mu.Unlock()
		return val, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (l *Lookups) GetTender(ctx context.Context, id string) (*model.Tender, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) (*model.Tender, error) {
		return l.store.GetTender(ctx, id)
	})
}

func (l *Lookups) ListBidders(ctx context.Context, tenderID string) ([]model.Bidder, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]model.Bidder, error) {
		return l.store.ListBidders(ctx, tenderID)
	})
}

func (l *Lookups) ListDocuments(ctx context.Context, tenderID string) ([]model.Document, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]model.Document, error) {
		return l.store.ListDocuments(ctx, tenderID)
	})
}

func (l *Lookups) CompanyTenderCounts(ctx context.Context, companies []string, before time.Time) (map[string]int, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) (map[string]int, error) {
		return l.store.CompanyTenderCounts(ctx, companies, before)
	})
}

func (l *Lookups) CoBidPairCounts(ctx context.Context, companies []string, excludeTenderID string) (map[string]int, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) (map[string]int, error) {
		return l.store.CoBidPairCounts(ctx, companies, excludeTenderID)
	})
}

func (l *Lookups) RelatedCompanyCount(ctx context.Context, companies []string) (int, error) {
	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) (int, error) {
		return l.store.RelatedCompanyCount(ctx, companies)
	})
}

func (l *Lookups) InstitutionStats(ctx context.Context, institution string, since time.Time) (*store.InstitutionStats, error) {
	key := fmt.Sprintf("inst|%s|%d", institution, since.Unix())
	return cachedLookup(ctx, l, key, func(ctx context.Context) (*store.InstitutionStats, error) {
		return l.store.InstitutionStats(ctx, institution, since)
	})
}

func (l *Lookups) CompanyInstitutionStats(ctx context.Context, company, institution string, since time.Time) (*store.CompanyInstitutionStats, error) {
	key := fmt.Sprintf("coinst|%s|%s|%d", company, institution, since.Unix())
	return cachedLookup(ctx, l, key, func(ctx context.Context) (*store.CompanyInstitutionStats, error) {
		return l.store.CompanyInstitutionStats(ctx, company, institution, since)
	})
}

func (l *Lookups) CompanyStats(ctx context.Context, company string, since time.Time) (*store.CompanyStats, error) {
	key := fmt.Sprintf("co|%s|%d", company, since.Unix())
	return cachedLookup(ctx, l, key, func(ctx context.Context) (*store.CompanyStats, error) {
		return l.store.CompanyStats(ctx, company, since)
	})
}

func (l *Lookups) CategoryBaseline(ctx context.Context, category string) (*store.Baseline, error) {
	return cachedLookup(ctx, l, "catbase|"+category, func(ctx context.Context) (*store.Baseline, error) {
		return l.store.CategoryBaseline(ctx, category)
	})
}

func (l *Lookups) InstitutionBaseline(ctx context.Context, institution string) (*store.Baseline, error) {
	return cachedLookup(ctx, l, "instbase|"+institution, func(ctx context.Context) (*store.Baseline, error) {
		return l.store.InstitutionBaseline(ctx, institution)
	})
}

func (l *Lookups) InstitutionMonthCounts(ctx context.Context, institution string, ref time.Time) (int, int, error) {
	key := fmt.Sprintf("month|%s|%s", institution, ref.Format("2006-01"))
	mc, err := cachedLookup(ctx, l, key, func(ctx context.Context) (monthCounts, error) {
		cur, prev, err := l.store.InstitutionMonthCounts(ctx, institution, ref)
		if err != nil {
			return monthCounts{}, err
		}
		return monthCounts{Current: cur, Previous: prev}, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return mc.Current, mc.Previous, nil
}
