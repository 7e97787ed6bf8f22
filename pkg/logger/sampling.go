package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SamplingConfig configures log sampling. Records are grouped by level and
// message; within each Tick the first Threshold records of a group pass and
// every Every-th record after that.
type SamplingConfig struct {
	Enabled   bool
	Tick      time.Duration
	Threshold uint64
	Every     uint64

	// NeverSample lists message prefixes that always pass, e.g. "audit:".
	NeverSample []string
}

const (
	DefaultSamplingTick      = time.Second
	DefaultSamplingThreshold = 100
	DefaultSamplingEvery     = 10
)

var logsDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "playreport",
		Subsystem: "logger",
		Name:      "logs_dropped_total",
		Help:      "Total number of log records dropped by sampling",
	},
	[]string{"level"},
)

type samplingHandler struct {
	next  slog.Handler
	cfg   SamplingConfig
	state *samplingState
}

type samplingState struct {
	mu      sync.Mutex
	started time.Time
	counts  map[string]uint64
}

// NewSamplingHandler wraps h with sampling. It returns h unchanged when
// sampling is disabled. Warnings and errors are never sampled.
func NewSamplingHandler(h slog.Handler, cfg SamplingConfig) slog.Handler {
	if !cfg.Enabled {
		return h
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultSamplingTick
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSamplingThreshold
	}
	if cfg.Every == 0 {
		cfg.Every = DefaultSamplingEvery
	}
	return &samplingHandler{
		next:  h,
		cfg:   cfg,
		state: &samplingState{started: time.Now(), counts: make(map[string]uint64)},
	}
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn || h.neverSample(r.Message) || h.allow(r) {
		return h.next.Handle(ctx, r)
	}
	logsDroppedTotal.WithLabelValues(r.Level.String()).Inc()
	return nil
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{next: h.next.WithAttrs(attrs), cfg: h.cfg, state: h.state}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{next: h.next.WithGroup(name), cfg: h.cfg, state: h.state}
}

func (h *samplingHandler) neverSample(msg string) bool {
	for _, prefix := range h.cfg.NeverSample {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func (h *samplingHandler) allow(r slog.Record) bool {
	s := h.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Time.Sub(s.started) >= h.cfg.Tick || r.Time.Before(s.started) {
		s.started = r.Time
		clear(s.counts)
	}

	key := r.Level.String() + "|" + r.Message
	s.counts[key]++
	n := s.counts[key]
	if n <= h.cfg.Threshold {
		return true
	}
	return (n-h.cfg.Threshold)%h.cfg.Every == 0
}
