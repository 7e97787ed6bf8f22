package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/playreport/api/internal/infra/redis"
	"github.com/playreport/api/internal/metrics"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/logger"
)

// ReportCacheService memoizes report results in Redis.
//
// Key format: report:{template_id}:{sha256} → CachedResult (JSON, optionally zstd)
//
// Entries slide: every hit pushes expiry out by the TTL again. CachedAt
// caps how long a frequently read entry can keep sliding, so a result is
// never older than MaxAge. The cache is best-effort; Redis failures fall
// through to compute and are only logged.
type ReportCacheService struct {
	cache  *redis.Cache[report.CachedResult]
	ttl    time.Duration
	maxAge time.Duration
	group  singleflight.Group
	logger *logger.Logger
	now    func() time.Time
}

const reportCachePrefix = "report"

// ReportCacheConfig configures the result cache.
type ReportCacheConfig struct {
	TTL         time.Duration
	MaxAge      time.Duration
	Compression bool
}

// ComputeFunc produces a result on a cache miss.
type ComputeFunc func(ctx context.Context) (*report.PagedResult, error)

// NewReportCacheService creates a new result cache service.
func NewReportCacheService(client *redis.Client, cfg ReportCacheConfig, log *logger.Logger) (*ReportCacheService, error) {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = cfg.TTL
	}
	if cfg.TTL > cfg.MaxAge {
		return nil, fmt.Errorf("cache ttl %v exceeds max age %v", cfg.TTL, cfg.MaxAge)
	}

	cache, err := redis.NewCache[report.CachedResult](client, reportCachePrefix, cfg.TTL, redis.WithCompression(cfg.Compression))
	if err != nil {
		return nil, fmt.Errorf("failed to create report cache: %w", err)
	}

	return &ReportCacheService{
		cache:  cache,
		ttl:    cfg.TTL,
		maxAge: cfg.MaxAge,
		logger: log.With("service", "report_cache"),
		now:    time.Now,
	}, nil
}

// GetOrCompute returns the cached result for fingerprint or computes it.
// ttl is the sliding window for this entry; zero uses the default. Only
// successful non-nil results are stored. Concurrent calls for the same
// fingerprint share a single computation.
//
// Results served from Redis carry JSON-decoded values, so integer cells
// come back as json.Number rather than their driver types.
func (s *ReportCacheService) GetOrCompute(ctx context.Context, fingerprint string, ttl time.Duration, compute ComputeFunc) (*report.PagedResult, error) {
	ttl = s.window(ttl)

	if res, ok := s.lookup(ctx, fingerprint, ttl); ok {
		return res, nil
	}

	ch := s.group.DoChan(fingerprint, func() (any, error) {
		res, err := compute(ctx)
		if err != nil || res == nil {
			return res, err
		}
		s.store(ctx, fingerprint, ttl, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			metrics.ReportCacheLookupsTotal.WithLabelValues(metrics.OutcomeShared).Inc()
		}
		if r.Err != nil {
			// The leader was cancelled but this caller is still live.
			if r.Shared && ctx.Err() == nil && isCancellation(r.Err) {
				return compute(ctx)
			}
			return nil, r.Err
		}
		res, _ := r.Val.(*report.PagedResult)
		return res, nil
	}
}

// InvalidateTemplate drops every cached result of a template and returns
// how many entries were removed.
func (s *ReportCacheService) InvalidateTemplate(ctx context.Context, templateID string) (int64, error) {
	if templateID == "" {
		return 0, errors.New("template id is required")
	}

	n, err := s.cache.DeletePattern(ctx, templateID+":*")
	metrics.ReportCacheInvalidationsTotal.Add(float64(n))
	if err != nil {
		return n, fmt.Errorf("invalidate %s: %w", templateID, err)
	}

	s.logger.Info("report cache invalidated", "template_id", templateID, "entries", n)
	return n, nil
}

func (s *ReportCacheService) window(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return min(ttl, s.maxAge)
}

func (s *ReportCacheService) lookup(ctx context.Context, fingerprint string, ttl time.Duration) (*report.PagedResult, bool) {
	cached, err := s.cache.GetExWithTTL(ctx, fingerprint, ttl)
	switch {
	case errors.Is(err, redis.ErrCacheMiss):
		metrics.ReportCacheLookupsTotal.WithLabelValues(metrics.OutcomeMiss).Inc()
		return nil, false
	case err != nil:
		metrics.ReportCacheLookupsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.logger.WithContext(ctx).Warn("report cache read failed, computing", "error", err)
		return nil, false
	case cached.Result == nil:
		metrics.ReportCacheLookupsTotal.WithLabelValues(metrics.OutcomeMiss).Inc()
		return nil, false
	case s.now().Sub(cached.CachedAt) >= s.maxAge:
		metrics.ReportCacheLookupsTotal.WithLabelValues(metrics.OutcomeExpired).Inc()
		return nil, false
	}

	metrics.ReportCacheLookupsTotal.WithLabelValues(metrics.OutcomeHit).Inc()
	return cached.Result, true
}

func (s *ReportCacheService) store(ctx context.Context, fingerprint string, ttl time.Duration, res *report.PagedResult) {
	entry := report.CachedResult{Result: res, CachedAt: s.now().UTC()}
	if err := s.cache.SetWithTTL(ctx, fingerprint, entry, ttl); err != nil {
		s.logger.WithContext(ctx).Warn("report cache write failed", "template_id", res.TemplateID, "error", err)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
