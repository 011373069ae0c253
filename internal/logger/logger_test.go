package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/internal/logger"
)

func TestLogger_WritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "pair-arbitrage", map[string]any{"env": "test"})

	log.Info(context.Background(), "pool seeded", "pool", "a", "reserve_a", "1000")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pool seeded", line["msg"])
	assert.Equal(t, "pair-arbitrage", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "a", line["pool"])
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "svc", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelDebug, "svc", nil).With("module", "arbitrage")

	log.Error(context.Background(), "leg failed")

	assert.Contains(t, buf.String(), `"module":"arbitrage"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.Level
	}{
		{"debug", logger.LevelDebug},
		{"INFO", logger.LevelInfo},
		{"warning", logger.LevelWarn},
		{"error", logger.LevelError},
		{"bogus", logger.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logger.ParseLevel(tt.in), tt.in)
	}
}
