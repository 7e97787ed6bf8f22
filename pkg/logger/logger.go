// Package logger wraps log/slog with redaction of sensitive attributes,
// optional sampling and context propagation.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output io.Writer

	// Sampling drops repeated identical records under load.
	Sampling SamplingConfig
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a new Logger instance.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = NewSamplingHandler(handler, cfg.Sampling)

	return &Logger{
		Logger: slog.New(handler),
	}
}

// sensitiveKeys are masked wherever they appear in an attribute key.
// Report statements and bound values are listed because they can carry
// tenant data.
var sensitiveKeys = []string{
	// credentials
	"password",
	"secret",
	"token",
	"authorization",
	"bearer",
	"api_key",
	"private_key",
	"jwt",
	"cookie",
	"session",
	"dsn",
	"connection_string",
	"credential",

	// report data
	"sql",
	"statement",
	"params",
	"args",
	"filter_value",
	"tracker",
	"rows",

	// personal data
	"email",
	"phone",
	"address",
}

// sanitizeAttr masks sensitive values in log attributes.
func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// NewDefault creates a new Logger with default configuration.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// NewDevelopment creates a logger configured for development.
func NewDevelopment() *Logger {
	return New(Config{
		Level:  "debug",
		Format: "text",
		Output: os.Stdout,
	})
}

// NewNop creates a no-op logger that discards all output.
func NewNop() *Logger {
	return New(Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// ContextKey is the type of context keys read by WithContext.
type ContextKey string

const (
	ContextKeyRequestID     ContextKey = "request_id"
	ContextKeyUserID        ContextKey = "user_id"
	ContextKeyCorrelationID ContextKey = "correlation_id"
)

// WithContext returns a new Logger carrying request-scoped values.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger
	for _, key := range []ContextKey{ContextKeyRequestID, ContextKeyUserID, ContextKeyCorrelationID} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			logger = logger.With(slog.String(string(key), v))
		}
	}
	return &Logger{Logger: logger}
}

// WithError returns a new Logger with the error attribute.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.Any("error", err)),
	}
}

// SetDefault sets this logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey string

const loggerKey contextKey = "logger"

// ToContext adds the logger to the context.
func ToContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from the context.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	return NewDefault()
}
