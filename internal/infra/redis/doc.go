// Package redis provides the Redis integration for the report API.
//
// # Overview
//
// The package provides two components:
//   - Client: connection management with TLS, pooling and retry logic
//   - Cache[T]: type-safe generic caching with TTL support, sliding
//     expiration through GetEx and optional zstd compression
//
// # Quick Start
//
//	client, err := redis.New(&cfg.Redis, log)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	results, err := redis.NewCache[report.CachedResult](client, "report", 5*time.Minute,
//		redis.WithCompression(true))
//
// # Error Handling
//
// Cache reads return ErrCacheMiss when a key is absent. Every other error
// means Redis could not answer; callers that treat the cache as
// best-effort fall back to the source of truth.
//
// # Metrics
//
// Operation latency, errors, hits, misses and pool statistics are exported
// under the playreport namespace through DefaultMetrics.
package redis
