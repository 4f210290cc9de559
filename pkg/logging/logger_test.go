package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/equitymind-ai/equitymind/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeForLog(t *testing.T) {
	out := SanitizeForLog(map[string]interface{}{
		"api_key":     "sk-123",
		"finnhub_key": "fh-abc",
		"empty_key":   "",
		"temporal":    "localhost:7233",
	})

	assert.Equal(t, "***REDACTED***", out["api_key"])
	assert.Equal(t, "***REDACTED***", out["finnhub_key"])
	assert.Equal(t, "", out["empty_key"])
	assert.Equal(t, "localhost:7233", out["temporal"])
}

func TestTemporalLogger_ForwardsKeyvals(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewTemporalLogger(zap.New(core))

	l.Info("activity started", "ticker", "AAPL", "attempt", 1)
	l.Warn("odd keyvals", "dangling")

	entries := logs.All()
	require.Len(t, entries, 2)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "temporal", ctx["component"])
	assert.Equal(t, "AAPL", ctx["ticker"])
	assert.Len(t, entries[1].Context, 1)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	nop, err := NewLogger(config.LoggingConfig{Output: "discard"})
	require.NoError(t, err)
	assert.NotNil(t, nop)
}

func TestNewLogger_FileOutputAndUnknownLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equitymind.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "verbose", Format: "json", Output: path})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	logger.Info("memo generated", zap.String("ticker", "TCS.NS"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ticker":"TCS.NS"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestSanitizeForLog_SecretSuffix(t *testing.T) {
	out := SanitizeForLog(map[string]interface{}{"webhook_secret": "s3cr3t", "max_tokens": 2500})
	assert.Equal(t, "***REDACTED***", out["webhook_secret"])
	assert.Equal(t, 2500, out["max_tokens"])
}
