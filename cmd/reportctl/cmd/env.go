package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/playreport/api/internal/app"
	"github.com/playreport/api/internal/config"
	"github.com/playreport/api/internal/infra/postgres"
	"github.com/playreport/api/internal/infra/redis"
	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/jwt"
	"github.com/playreport/api/pkg/logger"
	"github.com/playreport/api/pkg/reportquery"
)

// =============================================================================
// Environment
// =============================================================================

// env holds what a command needs. Connections are opened on first use and
// released by close.
type env struct {
	cfg *config.Config
	log *logger.Logger

	db    *postgres.DB
	store *postgres.ReportStore
	redis *redis.Client
}

func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "text", Output: os.Stderr})

	return &env{cfg: cfg, log: log}, nil
}

func (e *env) database() (*postgres.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := postgres.New(&e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	e.db = db
	e.store = postgres.NewReportStore(db,
		postgres.WithConcurrentCount(e.cfg.Report.RunCountConcurrently),
		postgres.WithQueryTimeout(e.cfg.Report.QueryTimeout),
	)
	return db, nil
}

func (e *env) redisClient() (*redis.Client, error) {
	if e.redis != nil {
		return e.redis, nil
	}
	c, err := redis.New(&e.cfg.Redis, e.log)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	e.redis = c
	return c, nil
}

func (e *env) registry() (*report.Registry, error) {
	if e.cfg.Report.TemplatesFile == "" {
		return report.DefaultRegistry()
	}
	return report.LoadRegistryFile(e.cfg.Report.TemplatesFile)
}

// reportService builds the service. Without a database it can still list
// and compose, and any attempt to run fails.
func (e *env) reportService(withDB bool) (*app.ReportService, error) {
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}

	var store reportquery.Store = offlineStore{}
	if withDB {
		if _, err := e.database(); err != nil {
			return nil, err
		}
		store = e.store
	}

	return app.NewReportService(reg, store, e.log,
		app.WithComposer(reportquery.NewComposer().WithMaxPageSize(e.cfg.Report.MaxPageSize)),
		app.WithDefaultPageSize(e.cfg.Report.DefaultPageSize),
	), nil
}

func (e *env) scheduledService() (*app.ScheduledReportService, error) {
	reports, err := e.reportService(true)
	if err != nil {
		return nil, err
	}
	return app.NewScheduledReportService(
		reports,
		postgres.NewSavedReportRepository(e.db),
		postgres.NewExecutionRepository(e.db),
		postgres.NewIdentityRepository(e.db),
		e.log,
	), nil
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.redis != nil {
		_ = e.redis.Close()
	}
}

// =============================================================================
// Identity flags
// =============================================================================

type identityFlags struct {
	token   string
	role    string
	user    string
	tenants []int64
	tracker string
}

func (f *identityFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.token, "token", "", "Bearer token to take the identity from")
	c.Flags().StringVar(&f.role, "role", "", "Caller role: admin, partner, subpartner")
	c.Flags().StringVar(&f.user, "user", "reportctl", "Caller user ID")
	c.Flags().Int64SliceVar(&f.tenants, "tenant", nil, "Accessible tenant (white label) IDs")
	c.Flags().StringVar(&f.tracker, "tracker", "", "Tracker constraint for subpartners")
}

func (f *identityFlags) resolve(cfg *config.Config) (scope.CallerScope, error) {
	if f.token != "" {
		gen, err := jwt.NewGenerator(jwt.TokenConfig{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer})
		if err != nil {
			return scope.CallerScope{}, err
		}
		return gen.Authenticate(strings.TrimPrefix(f.token, "Bearer "))
	}

	if f.role == "" {
		return scope.CallerScope{}, fmt.Errorf("either --token or --role is required")
	}
	role, err := scope.ParseRole(f.role)
	if err != nil {
		return scope.CallerScope{}, err
	}

	switch role {
	case scope.RoleAdmin:
		return scope.Admin(f.user), nil
	case scope.RoleSubpartner:
		if len(f.tenants) != 1 {
			return scope.CallerScope{}, fmt.Errorf("subpartner needs exactly one --tenant")
		}
		return scope.Subpartner(f.user, f.tenants[0], f.tracker), nil
	default:
		return scope.Partner(f.user, f.tenants...), nil
	}
}

// =============================================================================
// Request flags
// =============================================================================

type requestFlags struct {
	file     string
	template string
	columns  []string
	filters  []string
	groupBy  []string
	orderBy  []string
	page     int
	size     int
}

func (f *requestFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&f.file, "file", "f", "", "YAML or JSON request file")
	c.Flags().StringVarP(&f.template, "template", "t", "", "Template ID")
	c.Flags().StringSliceVar(&f.columns, "column", nil, "Output column (repeatable)")
	c.Flags().StringArrayVar(&f.filters, "filter", nil, "Filter as field:operator:value (repeatable)")
	c.Flags().StringSliceVar(&f.groupBy, "group-by", nil, "Group by field (repeatable)")
	c.Flags().StringSliceVar(&f.orderBy, "order-by", nil, "Sort key, prefix with - for descending (repeatable)")
	c.Flags().IntVar(&f.page, "page", 1, "Page number")
	c.Flags().IntVar(&f.size, "per-page", 0, "Rows per page (0 uses the configured default)")
}

func (f *requestFlags) build() (report.ReportRequest, error) {
	var req report.ReportRequest
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return req, fmt.Errorf("read request file: %w", err)
		}
		// YAML is a superset of JSON, one decoder covers both.
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parse request file: %w", err)
		}
	}

	if f.template != "" {
		req.TemplateID = f.template
	}
	req.Columns = append(req.Columns, f.columns...)
	req.GroupBy = append(req.GroupBy, f.groupBy...)

	for _, raw := range f.filters {
		filter, err := parseFilterFlag(raw)
		if err != nil {
			return req, err
		}
		req.Filters = append(req.Filters, filter)
	}
	for _, raw := range f.orderBy {
		field, desc := strings.CutPrefix(raw, "-")
		req.OrderBy = append(req.OrderBy, report.OrderBy{Field: field, Ascending: !desc})
	}

	if req.PageNumber == 0 {
		req.PageNumber = f.page
	}
	if req.PageSize == 0 {
		req.PageSize = f.size
	}
	if req.TemplateID == "" {
		return req, fmt.Errorf("a template is required (--template or file)")
	}
	return req, nil
}

func parseFilterFlag(raw string) (report.ReportFilter, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return report.ReportFilter{}, fmt.Errorf("invalid filter %q, expected field:operator:value", raw)
	}
	op, err := report.ParseOperator(parts[1])
	if err != nil {
		return report.ReportFilter{}, err
	}
	filter := report.ReportFilter{Field: parts[0], Operator: op}
	if len(parts) == 3 {
		filter.Value = parts[2]
	}
	return filter, nil
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
