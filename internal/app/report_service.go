package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/playreport/api/internal/metrics"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/domain/shared"
	"github.com/playreport/api/pkg/logger"
	"github.com/playreport/api/pkg/reportquery"
)

const tracerName = "github.com/playreport/api/internal/app"

// ReportService executes report requests for a caller. It owns the
// template allow-list and is the only path from a request to the store.
type ReportService struct {
	registry *report.Registry
	resolver *scope.Resolver
	composer reportquery.Composer
	store    reportquery.Store
	cache    *ReportCacheService
	logger   *logger.Logger
	tracer   trace.Tracer

	defaultPageSize int

	newCorrelationID func() string
}

// ReportServiceOption configures a ReportService.
type ReportServiceOption func(*ReportService)

// WithComposer replaces the default composer, typically to change the
// page size limit.
func WithComposer(c reportquery.Composer) ReportServiceOption {
	return func(s *ReportService) { s.composer = c }
}

// WithDefaultPageSize sets the page size used when a request has none.
func WithDefaultPageSize(n int) ReportServiceOption {
	return func(s *ReportService) { s.defaultPageSize = n }
}

// WithResultCache memoizes ExecuteCached through cache.
func WithResultCache(cache *ReportCacheService) ReportServiceOption {
	return func(s *ReportService) { s.cache = cache }
}

// NewReportService creates a new ReportService.
func NewReportService(
	registry *report.Registry,
	store reportquery.Store,
	log *logger.Logger,
	opts ...ReportServiceOption,
) *ReportService {
	s := &ReportService{
		registry:         registry,
		resolver:         scope.NewResolver(),
		composer:         reportquery.NewComposer(),
		store:            store,
		logger:           log.With("service", "report"),
		tracer:           otel.Tracer(tracerName),
		newCorrelationID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TemplateSummary is the caller-facing description of a template.
type TemplateSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Columns      []string `json:"columns"`
	FilterFields []string `json:"filter_fields"`
	GroupFields  []string `json:"group_fields"`
}

// ListTemplates returns the templates visible to identity, in catalog order.
func (s *ReportService) ListTemplates(identity scope.CallerScope) []TemplateSummary {
	templates := s.registry.ListFor(identity.Role)
	out := make([]TemplateSummary, 0, len(templates))
	for _, t := range templates {
		cols := t.Columns()
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		out = append(out, TemplateSummary{
			ID:           t.ID(),
			Name:         t.Name(),
			Description:  t.Description(),
			Category:     t.Category(),
			Columns:      names,
			FilterFields: t.FilterFields(),
			GroupFields:  t.GroupFields(),
		})
	}
	return out
}

// prepared is a request that passed every check and is ready for the store.
type prepared struct {
	template *report.Template
	request  report.ReportRequest
	scope    []scope.MandatoryPredicate
	query    *reportquery.ComposedQuery
}

// prepare validates and composes req for identity. Nothing here touches
// the store, so every rejection costs no connection.
func (s *ReportService) prepare(identity scope.CallerScope, req report.ReportRequest) (*prepared, error) {
	if req.PageSize == 0 && s.defaultPageSize > 0 {
		req.PageSize = s.defaultPageSize
	}
	req = req.WithDefaults()

	tmpl, err := s.registry.GetFor(req.TemplateID, identity.Role)
	if err != nil {
		return nil, err
	}

	scopePreds, err := s.resolver.Resolve(identity)
	if err != nil {
		return nil, err
	}

	q, err := s.composer.Compose(req, scopePreds, tmpl)
	if err != nil {
		return nil, err
	}

	return &prepared{template: tmpl, request: req, scope: scopePreds, query: q}, nil
}

// Compose returns the statements Execute would run for identity, without
// running them.
func (s *ReportService) Compose(identity scope.CallerScope, req report.ReportRequest) (*reportquery.ComposedQuery, error) {
	p, err := s.prepare(identity, req)
	if err != nil {
		return nil, err
	}
	return p.query, nil
}

// Execute runs req on behalf of identity and returns one page of rows with
// the unpaged total.
func (s *ReportService) Execute(ctx context.Context, identity scope.CallerScope, req report.ReportRequest) (*report.PagedResult, error) {
	ctx, span := s.tracer.Start(ctx, "report.Execute", trace.WithAttributes(
		attribute.String("report.template_id", req.TemplateID),
		attribute.String("report.role", string(identity.Role)),
	))
	defer span.End()

	p, err := s.prepare(identity, req)
	if err != nil {
		s.reject(ctx, span, req.TemplateID, err)
		return nil, err
	}

	return s.run(ctx, span, p)
}

// ExecuteCached is Execute memoized by the result cache. Without a cache
// it behaves exactly like Execute.
func (s *ReportService) ExecuteCached(ctx context.Context, identity scope.CallerScope, req report.ReportRequest) (*report.PagedResult, error) {
	if s.cache == nil {
		return s.Execute(ctx, identity, req)
	}

	ctx, span := s.tracer.Start(ctx, "report.ExecuteCached", trace.WithAttributes(
		attribute.String("report.template_id", req.TemplateID),
		attribute.String("report.role", string(identity.Role)),
	))
	defer span.End()

	p, err := s.prepare(identity, req)
	if err != nil {
		s.reject(ctx, span, req.TemplateID, err)
		return nil, err
	}

	fingerprint, err := reportquery.Fingerprint(p.request, p.scope)
	if err != nil {
		return nil, err
	}

	return s.cache.GetOrCompute(ctx, fingerprint, p.template.CacheTTL(), func(ctx context.Context) (*report.PagedResult, error) {
		return s.run(ctx, span, p)
	})
}

func (s *ReportService) run(ctx context.Context, span trace.Span, p *prepared) (*report.PagedResult, error) {
	templateID := p.query.TemplateID
	start := time.Now()

	res, err := s.store.Run(ctx, p.query)
	if err != nil && errors.Is(err, shared.ErrUnavailable) && ctx.Err() == nil {
		metrics.ReportRetriesTotal.WithLabelValues(templateID).Inc()
		s.logger.WithContext(ctx).Warn("transient report failure, retrying", "template_id", templateID)
		res, err = s.store.Run(ctx, p.query)
	}
	metrics.ReportExecutionDuration.WithLabelValues(templateID).Observe(time.Since(start).Seconds())

	if err != nil {
		correlationID := s.newCorrelationID()
		metrics.ReportExecutionsTotal.WithLabelValues(templateID, metrics.OutcomeFailure).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		span.SetAttributes(attribute.String("report.correlation_id", correlationID))

		s.logger.WithContext(ctx).Error("report query failed",
			"template_id", templateID,
			"correlation_id", correlationID,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, &report.QueryExecutionError{
			TemplateID:    templateID,
			CorrelationID: correlationID,
			Transient:     errors.Is(err, shared.ErrUnavailable),
			Err:           err,
		}
	}

	page := p.query.Page
	rows := res.Rows
	if rows == nil {
		rows = [][]any{}
	}
	if len(rows) > page.PerPage {
		s.logger.WithContext(ctx).Error("store returned more rows than the page holds",
			"template_id", templateID,
			"rows", len(rows),
			"page_size", page.PerPage,
		)
		rows = rows[:page.PerPage]
	}
	if expected := page.RowsOnPage(res.TotalCount); len(rows) != expected {
		// Count and data ran outside one snapshot and saw different rows.
		s.logger.WithContext(ctx).Debug("page size disagrees with total count",
			"template_id", templateID,
			"rows", len(rows),
			"expected", expected,
		)
	}

	result := &report.PagedResult{
		TemplateID:  templateID,
		Schema:      res.Schema,
		Rows:        rows,
		TotalCount:  res.TotalCount,
		PageNumber:  page.Page,
		PageSize:    page.PerPage,
		TotalPages:  page.TotalPages(res.TotalCount),
		GeneratedAt: time.Now().UTC(),
	}

	metrics.ReportExecutionsTotal.WithLabelValues(templateID, metrics.OutcomeSuccess).Inc()
	metrics.ReportRowsReturned.WithLabelValues(templateID).Observe(float64(len(rows)))
	span.SetAttributes(
		attribute.Int64("report.total_count", res.TotalCount),
		attribute.Int("report.rows", len(rows)),
	)

	s.logger.WithContext(ctx).Debug("report executed",
		"template_id", templateID,
		"page", page.Page,
		"row_count", len(rows),
		"total_count", res.TotalCount,
		"duration", time.Since(start),
	)
	return result, nil
}

func (s *ReportService) reject(ctx context.Context, span trace.Span, templateID string, err error) {
	kind := rejectionKind(err)
	metrics.ReportRejectionsTotal.WithLabelValues(kind).Inc()
	span.SetStatus(codes.Error, kind)

	s.logger.WithContext(ctx).Info("report request rejected",
		"template_id", templateID,
		"kind", kind,
		"error", err,
	)
}

func rejectionKind(err error) string {
	switch {
	case report.IsUnknownTemplate(err):
		return "unknown_template"
	case report.IsInvalidField(err):
		return "invalid_field"
	case report.IsInvalidFilter(err), report.IsUnsupportedOperator(err):
		return "invalid_filter"
	case errors.Is(err, shared.ErrForbidden):
		return "forbidden"
	case errors.Is(err, shared.ErrValidation):
		return "validation"
	default:
		return "other"
	}
}
