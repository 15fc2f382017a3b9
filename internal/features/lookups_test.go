package features

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurewatch/riskengine/internal/resilience"
	"github.com/procurewatch/riskengine/internal/store"
)

// slowStatsStore delays institution stats long enough for a second caller
// to join the in-flight fetch.
type slowStatsStore struct {
	*fakeStore
	delay   time.Duration
	started chan struct{}
	once    sync.Once
	hits    atomic.Int32
}

func (s *slowStatsStore) InstitutionStats(ctx context.Context, institution string, since time.Time) (*store.InstitutionStats, error) {
	s.hits.Add(1)
	s.once.Do(func() { close(s.started) })
	select {
	case <-time.After(s.delay):
		return &store.InstitutionStats{Institution: institution, TenderCount: 7}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachedLookupOutlivesCallerDeadline(t *testing.T) {
	src := &slowStatsStore{
		fakeStore: newFakeStore(),
		delay:     100 * time.Millisecond,
		started:   make(chan struct{}),
	}
	l := NewLookups(context.Background(), src, resilience.RetryConfig{MaxAttempts: 1})

	// The first caller starts the flight and runs out of budget while the
	// query is still in progress.
	tight, cancelTight := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelTight()

	tightErr := make(chan error, 1)
	go func() {
		_, err := l.InstitutionStats(tight, "City A", time.Time{})
		tightErr <- err
	}()

	<-src.started

	// The second caller joins the same flight with plenty of budget left.
	// It must get the result, not the first caller's deadline.
	wide, cancelWide := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelWide()

	stats, err := l.InstitutionStats(wide, "City A", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TenderCount)

	require.ErrorIs(t, <-tightErr, context.DeadlineExceeded)
	assert.Equal(t, int32(1), src.hits.Load(), "both callers share one fetch")

	// The cached value survives for later callers too.
	again, err := l.InstitutionStats(context.Background(), "City A", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, stats, again)
	assert.Equal(t, int32(1), src.hits.Load())
}

func TestCachedLookupStopsWithBaseContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	src := &slowStatsStore{
		fakeStore: newFakeStore(),
		delay:     time.Minute,
		started:   make(chan struct{}),
	}
	l := NewLookups(base, src, resilience.RetryConfig{MaxAttempts: 1})

	go func() {
		<-src.started
		cancel()
	}()

	_, err := l.InstitutionStats(context.Background(), "City A", time.Time{})
	require.ErrorIs(t, err, context.Canceled)
}
