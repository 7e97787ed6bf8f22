package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Report.MaxPageSize)
	assert.Equal(t, 50, cfg.Report.DefaultPageSize)
	assert.Equal(t, 5*time.Minute, cfg.Report.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.Report.CacheMaxAge)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Contains(t, cfg.Database.DSN(), "dbname=playreport")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("REPORT_MAX_PAGE_SIZE", "200")
	t.Setenv("REPORT_DEFAULT_PAGE_SIZE", "25")
	t.Setenv("REPORT_CACHE_TTL", "1m")
	t.Setenv("REPORT_CACHE_MAX_AGE", "10m")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Report.MaxPageSize)
	assert.Equal(t, 25, cfg.Report.DefaultPageSize)
	assert.Equal(t, time.Minute, cfg.Report.CacheTTL)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"default page above max", map[string]string{"REPORT_MAX_PAGE_SIZE": "10", "REPORT_DEFAULT_PAGE_SIZE": "50"}},
		{"sliding ttl above ceiling", map[string]string{"REPORT_CACHE_TTL": "30m", "REPORT_CACHE_MAX_AGE": "15m"}},
		{"bad ops port", map[string]string{"OPS_PORT": "70000"}},
		{"production without tls", map[string]string{"APP_ENV": "production", "DB_SSLMODE": "require", "REDIS_PASSWORD": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_CacheDisabledSkipsCacheChecks(t *testing.T) {
	t.Setenv("REPORT_CACHE_ENABLED", "false")
	t.Setenv("REPORT_CACHE_TTL", "30m")
	t.Setenv("REPORT_CACHE_MAX_AGE", "15m")

	_, err := Load()
	assert.NoError(t, err)
}
