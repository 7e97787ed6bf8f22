package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Redis-related Prometheus metrics.
type Metrics struct {
	// Operations
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	// Connection pool
	poolHits       prometheus.Gauge
	poolMisses     prometheus.Gauge
	poolTimeouts   prometheus.Gauge
	poolTotalConns prometheus.Gauge
	poolIdleConns  prometheus.Gauge

	// Cache specific
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("playreport", prometheus.DefaultRegisterer)

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "redis", Name: name, Help: help})
	}

	return &Metrics{
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "redis",
				Name:      "operation_duration_seconds",
				Help:      "Duration of Redis operations in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		operationErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "redis",
				Name:      "operation_errors_total",
				Help:      "Total number of Redis operation errors",
			},
			[]string{"operation"},
		),
		poolHits:       gauge("pool_hits", "Number of times a free connection was found in the pool"),
		poolMisses:     gauge("pool_misses", "Number of times a free connection was not found in the pool"),
		poolTimeouts:   gauge("pool_timeouts", "Number of times a wait timeout occurred"),
		poolTotalConns: gauge("pool_total_connections", "Number of total connections in the pool"),
		poolIdleConns:  gauge("pool_idle_connections", "Number of idle connections in the pool"),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"prefix"},
		),
		cacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"prefix"},
		),
	}
}

// ObserveOperation records the duration and outcome of an operation.
func (m *Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.operationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(prefix string) {
	m.cacheHits.WithLabelValues(prefix).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(prefix string) {
	m.cacheMisses.WithLabelValues(prefix).Inc()
}

// UpdatePoolStats copies the client's pool statistics into the gauges.
func (m *Metrics) UpdatePoolStats(c *Client) {
	stats := c.PoolStats()
	m.poolHits.Set(float64(stats.Hits))
	m.poolMisses.Set(float64(stats.Misses))
	m.poolTimeouts.Set(float64(stats.Timeouts))
	m.poolTotalConns.Set(float64(stats.TotalConns))
	m.poolIdleConns.Set(float64(stats.IdleConns))
}

// StartPoolStatsCollector updates pool gauges every interval until ctx is
// done.
func (m *Metrics) StartPoolStatsCollector(ctx context.Context, c *Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.UpdatePoolStats(c)
			}
		}
	}()
}
