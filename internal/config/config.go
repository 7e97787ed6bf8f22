// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all configuration for the report service.
type Config struct {
	App      AppConfig
	Ops      OpsConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Auth     AuthConfig
	Report   ReportConfig
	Worker   WorkerConfig
	Tracing  TracingConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// OpsConfig configures the health and metrics listener.
type OpsConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the reporting database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TLSEnabled    bool
	TLSSkipVerify bool
	MaxRetries    int
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level             string
	Format            string
	SamplingEnabled   bool
	SamplingThreshold int
	SamplingEvery     int
}

// AuthConfig holds token verification settings. Tokens are issued elsewhere.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// ReportConfig holds query engine and result cache settings.
type ReportConfig struct {
	// TemplatesFile is a YAML catalog; empty means the built-in catalog.
	TemplatesFile   string
	MaxPageSize     int
	DefaultPageSize int
	QueryTimeout    time.Duration

	// RunCountConcurrently issues the data and count statements on separate
	// connections at the same time.
	RunCountConcurrently bool

	CacheEnabled     bool
	CacheTTL         time.Duration // sliding window, refreshed on read
	CacheMaxAge      time.Duration // absolute ceiling since the entry was computed
	CacheCompression bool
}

// WorkerConfig configures the scheduled report worker.
type WorkerConfig struct {
	Enabled     bool
	Concurrency int
	Queue       string
	MaxRetry    int

	// Scheduler settings. The scheduler only dispatches; the worker runs.
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	SchedulerBatch    int
	DispatchRate      float64 // dispatches per second
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	Headers     string // k1=v1,k2=v2
	Sampler     string // always_on, always_off, traceidratio, parentbased
	SampleRatio float64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "playreport"),
			Env:   getEnv("APP_ENV", EnvDevelopment),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Ops: OpsConfig{
			Host:            getEnv("OPS_HOST", "0.0.0.0"),
			Port:            getEnvInt("OPS_PORT", 9100),
			ShutdownTimeout: getEnvDuration("OPS_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "playreport"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "playreport"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
			TLSSkipVerify: getEnvBool("REDIS_TLS_SKIP_VERIFY", false),
			MaxRetries:    getEnvInt("REDIS_MAX_RETRIES", 3),
			MinRetryDelay: getEnvDuration("REDIS_MIN_RETRY_DELAY", 100*time.Millisecond),
			MaxRetryDelay: getEnvDuration("REDIS_MAX_RETRY_DELAY", 3*time.Second),
		},
		Log: LogConfig{
			Level:             getEnv("LOG_LEVEL", "info"),
			Format:            getEnv("LOG_FORMAT", "json"),
			SamplingEnabled:   getEnvBool("LOG_SAMPLING_ENABLED", false),
			SamplingThreshold: getEnvInt("LOG_SAMPLING_THRESHOLD", 100),
			SamplingEvery:     getEnvInt("LOG_SAMPLING_EVERY", 10),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", "playreport"),
		},
		Report: ReportConfig{
			TemplatesFile:        getEnv("REPORT_TEMPLATES_FILE", ""),
			MaxPageSize:          getEnvInt("REPORT_MAX_PAGE_SIZE", 500),
			DefaultPageSize:      getEnvInt("REPORT_DEFAULT_PAGE_SIZE", 50),
			QueryTimeout:         getEnvDuration("REPORT_QUERY_TIMEOUT", 30*time.Second),
			RunCountConcurrently: getEnvBool("REPORT_CONCURRENT_COUNT", true),
			CacheEnabled:         getEnvBool("REPORT_CACHE_ENABLED", true),
			CacheTTL:             getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
			CacheMaxAge:          getEnvDuration("REPORT_CACHE_MAX_AGE", 15*time.Minute),
			CacheCompression:     getEnvBool("REPORT_CACHE_COMPRESSION", true),
		},
		Worker: WorkerConfig{
			Enabled:     getEnvBool("WORKER_ENABLED", true),
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
			Queue:       getEnv("WORKER_QUEUE", "reports"),
			MaxRetry:    getEnvInt("WORKER_MAX_RETRY", 3),

			SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", true),
			SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
			SchedulerBatch:    getEnvInt("SCHEDULER_BATCH_SIZE", 50),
			DispatchRate:      getEnvFloat("SCHEDULER_DISPATCH_RATE", 10),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvBool("TRACING_INSECURE", true),
			Headers:     getEnv("TRACING_HEADERS", ""),
			Sampler:     getEnv("TRACING_SAMPLER", "parentbased"),
			SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 0.1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateBasic(); err != nil {
		return err
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	if err := c.validateReport(); err != nil {
		return err
	}
	if c.IsProduction() {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateBasic() error {
	if c.Ops.Port < 1 || c.Ops.Port > 65535 {
		return fmt.Errorf("invalid ops port: %d", c.Ops.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.SchedulerEnabled && (c.Worker.SchedulerInterval <= 0 || c.Worker.SchedulerBatch < 1 || c.Worker.DispatchRate <= 0) {
		return fmt.Errorf("scheduler interval, batch size and dispatch rate must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be between 0.0 and 1.0, got %f", c.Tracing.SampleRatio)
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}
	if c.Log.SamplingThreshold < 0 || c.Log.SamplingEvery < 0 {
		return fmt.Errorf("log sampling values must be non-negative")
	}
	return nil
}

func (c *Config) validateReport() error {
	r := c.Report
	if r.MaxPageSize < 1 {
		return fmt.Errorf("REPORT_MAX_PAGE_SIZE must be positive, got %d", r.MaxPageSize)
	}
	if r.DefaultPageSize < 1 || r.DefaultPageSize > r.MaxPageSize {
		return fmt.Errorf("REPORT_DEFAULT_PAGE_SIZE must be between 1 and %d, got %d", r.MaxPageSize, r.DefaultPageSize)
	}
	if r.QueryTimeout <= 0 {
		return fmt.Errorf("REPORT_QUERY_TIMEOUT must be positive")
	}
	if r.CacheEnabled {
		if r.CacheTTL <= 0 || r.CacheMaxAge <= 0 {
			return fmt.Errorf("report cache TTL and max age must be positive")
		}
		if r.CacheTTL > r.CacheMaxAge {
			return fmt.Errorf("REPORT_CACHE_TTL (%v) must not exceed REPORT_CACHE_MAX_AGE (%v)", r.CacheTTL, r.CacheMaxAge)
		}
	}
	return nil
}

func (c *Config) validateProduction() error {
	if strings.EqualFold(c.Log.Level, "debug") {
		return fmt.Errorf("log level should not be 'debug' in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database SSL must be enabled in production")
	}
	if c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	if !c.Redis.TLSEnabled || c.Redis.TLSSkipVerify {
		return fmt.Errorf("redis TLS must be enabled and verified in production")
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the ops listener address.
func (c *OpsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
