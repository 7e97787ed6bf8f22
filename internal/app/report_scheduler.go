package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/logger"
)

// ReportDispatcher hands a due saved report to whatever runs it.
type ReportDispatcher interface {
	DispatchSavedReport(ctx context.Context, id shared.ID) error
}

// ReportScheduler periodically finds due saved reports and dispatches them.
type ReportScheduler struct {
	service    *ScheduledReportService
	dispatcher ReportDispatcher
	limiter    *rate.Limiter
	logger     *logger.Logger

	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// ReportSchedulerConfig holds configuration for the report scheduler.
type ReportSchedulerConfig struct {
	// CheckInterval is how often to check for due reports (default: 1 minute)
	CheckInterval time.Duration
	// BatchSize is the max number of reports to dispatch per cycle (default: 50)
	BatchSize int
	// DispatchRate caps dispatches per second (default: 10)
	DispatchRate float64
}

// NewReportScheduler creates a new ReportScheduler.
func NewReportScheduler(
	service *ScheduledReportService,
	dispatcher ReportDispatcher,
	cfg ReportSchedulerConfig,
	log *logger.Logger,
) *ReportScheduler {
	interval := cfg.CheckInterval
	if interval == 0 {
		interval = time.Minute
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 50
	}

	dispatchRate := cfg.DispatchRate
	if dispatchRate == 0 {
		dispatchRate = 10
	}

	return &ReportScheduler{
		service:    service,
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(dispatchRate), 1),
		logger:     log.With("component", "report_scheduler"),
		interval:   interval,
		batchSize:  batchSize,
		stopCh:     make(chan struct{}),
	}
}

// Start starts the report scheduler.
func (s *ReportScheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("report scheduler started", "interval", s.interval, "batch_size", s.batchSize)
}

// Stop stops the report scheduler gracefully.
func (s *ReportScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("report scheduler stopped")
}

func (s *ReportScheduler) run() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkAndDispatch(ctx)

	for {
		select {
		case <-ticker.C:
			s.checkAndDispatch(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// checkAndDispatch runs one scheduling cycle and returns how many reports
// were dispatched.
func (s *ReportScheduler) checkAndDispatch(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	due, err := s.service.ListDue(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list due reports", "error", err)
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	s.logger.Info("found due reports", "count", len(due))

	dispatched := 0
	for i, saved := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Warn("dispatch cycle cut short", "remaining", len(due)-i, "error", err)
			break
		}

		// Advance first so another scheduler instance does not pick it up again.
		next, err := s.service.AdvanceSchedule(ctx, saved)
		if err != nil {
			s.logger.Error("failed to advance schedule", "id", saved.ID().String(), "error", err)
			continue
		}

		if err := s.dispatcher.DispatchSavedReport(ctx, saved.ID()); err != nil {
			s.logger.Error("failed to dispatch saved report",
				"id", saved.ID().String(),
				"template_id", saved.TemplateID(),
				"error", err,
			)
			continue
		}

		dispatched++
		s.logger.Debug("saved report dispatched",
			"id", saved.ID().String(),
			"template_id", saved.TemplateID(),
			"next_run_at", next,
		)
	}

	if dispatched > 0 {
		s.logger.Info("dispatched saved reports", "count", dispatched)
	}
	return dispatched
}
