package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playreport/api/internal/infra/redis"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/logger"
)

func newTestCache(t *testing.T, cfg ReportCacheConfig) (*ReportCacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	cache, err := NewReportCacheService(redis.Wrap(rdb, logger.NewNop()), cfg, logger.NewNop())
	require.NoError(t, err)
	return cache, mr
}

func defaultCacheConfig() ReportCacheConfig {
	return ReportCacheConfig{TTL: time.Minute, MaxAge: 5 * time.Minute, Compression: true}
}

func TestNewReportCacheService_RejectsTTLAboveMaxAge(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, err := NewReportCacheService(redis.Wrap(rdb, logger.NewNop()), ReportCacheConfig{TTL: time.Hour, MaxAge: time.Minute}, logger.NewNop())
	assert.Error(t, err)
}

func TestReportService_ExecuteCached_HitsCache(t *testing.T) {
	cache, _ := newTestCache(t, defaultCacheConfig())
	store := newFakeStore(5)
	svc := newTestReportService(t, store, WithResultCache(cache))
	identity := scope.Subpartner("sub-1", 7, "aff42")
	ctx := context.Background()

	first, err := svc.ExecuteCached(ctx, identity, summaryRequest())
	require.NoError(t, err)
	second, err := svc.ExecuteCached(ctx, identity, summaryRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls())
	assert.Equal(t, first.TotalCount, second.TotalCount)
	require.Len(t, second.Rows, 2)
	assert.Equal(t, json.Number("1"), second.Rows[0][0])
	assert.Equal(t, "UK", second.Rows[0][1])
}

func TestReportService_ExecuteCached_IsolatesScopes(t *testing.T) {
	cache, mr := newTestCache(t, defaultCacheConfig())
	store := newFakeStore(5)
	svc := newTestReportService(t, store, WithResultCache(cache))
	ctx := context.Background()

	_, err := svc.ExecuteCached(ctx, scope.Subpartner("sub-1", 7, "aff42"), summaryRequest())
	require.NoError(t, err)
	_, err = svc.ExecuteCached(ctx, scope.Subpartner("sub-2", 8, "aff42"), summaryRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls())
	assert.Len(t, mr.Keys(), 2)
}

func TestReportService_ExecuteCached_SameScopeDifferentUsersShare(t *testing.T) {
	cache, _ := newTestCache(t, defaultCacheConfig())
	store := newFakeStore(5)
	svc := newTestReportService(t, store, WithResultCache(cache))
	ctx := context.Background()

	_, err := svc.ExecuteCached(ctx, scope.Partner("p-1", 7, 9), summaryRequest())
	require.NoError(t, err)
	_, err = svc.ExecuteCached(ctx, scope.Partner("p-2", 9, 7), summaryRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls())
}

func TestReportService_ExecuteCached_RejectsBeforeCache(t *testing.T) {
	cache, mr := newTestCache(t, defaultCacheConfig())
	store := newFakeStore(5)
	svc := newTestReportService(t, store, WithResultCache(cache))

	req := summaryRequest(report.ReportFilter{Field: "internalAuditFlag", Operator: report.OperatorEquals, Value: "1"})
	_, err := svc.ExecuteCached(context.Background(), scope.Admin("admin"), req)
	require.Error(t, err)
	assert.True(t, report.IsInvalidField(err))
	assert.Zero(t, store.calls())
	assert.Empty(t, mr.Keys())
}

func TestReportService_ExecuteCached_DoesNotCacheFailures(t *testing.T) {
	cache, mr := newTestCache(t, defaultCacheConfig())
	store := newFakeStore(5)
	store.failWith(errors.New("relation does not exist"))
	svc := newTestReportService(t, store, WithResultCache(cache))
	ctx := context.Background()

	_, err := svc.ExecuteCached(ctx, scope.Admin("admin"), summaryRequest())
	require.Error(t, err)
	assert.Empty(t, mr.Keys())

	res, err := svc.ExecuteCached(ctx, scope.Admin("admin"), summaryRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.TotalCount)
	assert.Equal(t, 2, store.calls())
}

func TestReportService_ExecuteCached_FallsBackWhenCacheDown(t *testing.T) {
	cache, mr := newTestCache(t, defaultCacheConfig())
	store := newFakeStore(5)
	svc := newTestReportService(t, store, WithResultCache(cache))
	mr.SetError("ERR injected failure")

	for range 2 {
		res, err := svc.ExecuteCached(context.Background(), scope.Admin("admin"), summaryRequest())
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.TotalCount)
	}
	assert.Equal(t, 2, store.calls())
}

func TestReportCacheService_SlidingWindowAndCeiling(t *testing.T) {
	cache, mr := newTestCache(t, ReportCacheConfig{TTL: time.Minute, MaxAge: 3 * time.Minute})
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	computed := 0
	compute := func(context.Context) (*report.PagedResult, error) {
		computed++
		return &report.PagedResult{TemplateID: "player-summary", TotalCount: int64(computed)}, nil
	}

	advance := func(d time.Duration) {
		now = now.Add(d)
		mr.FastForward(d)
	}

	_, err := cache.GetOrCompute(ctx, "player-summary:abc", 0, compute)
	require.NoError(t, err)

	// Reads inside the window keep sliding the entry.
	for range 2 {
		advance(50 * time.Second)
		res, err := cache.GetOrCompute(ctx, "player-summary:abc", 0, compute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.TotalCount)
	}
	assert.Equal(t, 1, computed)

	// Past the ceiling the entry is recomputed even though it was just read.
	advance(50 * time.Second)
	_, err = cache.GetOrCompute(ctx, "player-summary:abc", 0, compute)
	require.NoError(t, err)
	advance(50 * time.Second)
	res, err := cache.GetOrCompute(ctx, "player-summary:abc", 0, compute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalCount)
	assert.Equal(t, 2, computed)

	// An unread entry expires after one window.
	advance(61 * time.Second)
	_, err = cache.GetOrCompute(ctx, "player-summary:abc", 0, compute)
	require.NoError(t, err)
	assert.Equal(t, 3, computed)
}

func TestReportCacheService_PerCallTTLCappedByMaxAge(t *testing.T) {
	cache, mr := newTestCache(t, ReportCacheConfig{TTL: time.Minute, MaxAge: 2 * time.Minute})
	compute := func(context.Context) (*report.PagedResult, error) {
		return &report.PagedResult{TemplateID: "bonuses"}, nil
	}

	_, err := cache.GetOrCompute(context.Background(), "bonuses:x", time.Hour, compute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, mr.TTL("report:bonuses:x"))

	_, err = cache.GetOrCompute(context.Background(), "bonuses:y", 30*time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("report:bonuses:y"))
}

func TestReportCacheService_CollapsesConcurrentComputations(t *testing.T) {
	cache, _ := newTestCache(t, defaultCacheConfig())
	store := newFakeStore(5)
	store.gate = make(chan struct{})
	svc := newTestReportService(t, store, WithResultCache(cache))
	identity := scope.Partner("p-1", 7)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.ExecuteCached(context.Background(), identity, summaryRequest())
		}()
	}

	require.Eventually(t, func() bool { return store.calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.calls())
}

func TestReportCacheService_CallerCancellation(t *testing.T) {
	cache, _ := newTestCache(t, defaultCacheConfig())
	block := make(chan struct{})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cache.GetOrCompute(ctx, "player-summary:slow", 0, func(ctx context.Context) (*report.PagedResult, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReportCacheService_InvalidateTemplate(t *testing.T) {
	cache, mr := newTestCache(t, defaultCacheConfig())
	ctx := context.Background()
	compute := func(context.Context) (*report.PagedResult, error) {
		return &report.PagedResult{}, nil
	}

	for _, fp := range []string{"player-summary:a", "player-summary:b", "bonuses:c"} {
		_, err := cache.GetOrCompute(ctx, fp, 0, compute)
		require.NoError(t, err)
	}

	n, err := cache.InvalidateTemplate(ctx, "player-summary")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"report:bonuses:c"}, mr.Keys())

	_, err = cache.InvalidateTemplate(ctx, "")
	assert.Error(t, err)
}
