package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "equitymind-deep-memo", cfg.Temporal.TaskQueue)
	assert.Equal(t, 65*time.Second, cfg.LLM.RetryWait)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-flash-8b"}, cfg.LLM.QuickModels)
	assert.Equal(t, 50, cfg.Storage.Database.MaxHistory)
	assert.Equal(t, "moderate", cfg.Analysis.Profile.RiskTolerance)
	assert.Equal(t, 180*time.Second, cfg.Analysis.DeepTimeout)
}

func TestLoadFile_ReadsYAMLAndExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_FINNHUB_KEY", "fh-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
market_data:
  finnhub_key: ${TEST_FINNHUB_KEY}
  cache_ttl: 5m
analysis:
  profile:
    risk_tolerance: aggressive
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "fh-secret", cfg.MarketData.FinnhubKey)
	assert.Equal(t, 5*time.Minute, cfg.MarketData.CacheTTL)
	assert.Equal(t, "aggressive", cfg.Analysis.Profile.RiskTolerance)
	assert.Equal(t, "medium", cfg.Analysis.Profile.InvestmentHorizon)
}

func TestLoadFile_EnvOverridesKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-key")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gm-key", cfg.LLM.APIKey)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
