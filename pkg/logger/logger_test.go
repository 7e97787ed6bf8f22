package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_RedactsReportData(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("report executed",
		"template_id", "player-summary",
		"sql", "SELECT secret FROM t",
		"params", []any{"UK"},
		"filter_value", "aff42",
		"db_password", "hunter2",
		"row_count", 2,
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "player-summary", entry["template_id"])
	assert.Equal(t, "[REDACTED]", entry["sql"])
	assert.Equal(t, "[REDACTED]", entry["params"])
	assert.Equal(t, "[REDACTED]", entry["filter_value"])
	assert.Equal(t, "[REDACTED]", entry["db_password"])
	assert.EqualValues(t, 2, entry["row_count"])
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), ContextKeyCorrelationID, "c-1")
	ctx = context.WithValue(ctx, ContextKeyUserID, "u-1")
	log.WithContext(ctx).Debug("hello")

	entry := decodeLines(t, &buf)[0]
	assert.Equal(t, "c-1", entry["correlation_id"])
	assert.Equal(t, "u-1", entry["user_id"])
}

func TestLogger_ContextRoundTrip(t *testing.T) {
	log := NewNop()
	ctx := ToContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestSamplingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
		Sampling: SamplingConfig{
			Enabled:     true,
			Tick:        time.Hour,
			Threshold:   3,
			Every:       5,
			NeverSample: []string{"audit:"},
		},
	})

	for range 13 {
		log.Info("cache hit")
	}
	for range 4 {
		log.Info("audit: report run")
	}
	for range 6 {
		log.Warn("slow query")
	}

	counts := map[string]int{}
	for _, entry := range decodeLines(t, &buf) {
		counts[entry["msg"].(string)]++
	}
	// 3 under threshold, then records 8 and 13
	assert.Equal(t, 5, counts["cache hit"])
	assert.Equal(t, 4, counts["audit: report run"])
	assert.Equal(t, 6, counts["slow query"])
}

func TestSamplingHandler_DisabledPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})
	for range 50 {
		log.Info("same")
	}
	assert.Len(t, decodeLines(t, &buf), 50)
}
