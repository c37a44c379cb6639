package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
server:
  listen: ":9090"
  timeout: 10s
database:
  dsn: "file:test.db?cache=shared"
schedule:
  enabled: true
  sweep_interval: 5
scrape:
  timeout: 20s
  browser_timeout: 60s
  user_agent: "atomwire-test/1.0"
  max_articles: 10
ai:
  enabled: true
  endpoint: "http://localhost:8081/v1"
  model: "llama3"
  temperature: 0.5
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 10*time.Second, cfg.Server.Timeout)
		assert.Equal(t, "file:test.db?cache=shared", cfg.Database.DSN)
		assert.Equal(t, 5, cfg.Schedule.SweepInterval)
		assert.Equal(t, 20*time.Second, cfg.Scrape.Timeout)
		assert.Equal(t, 10, cfg.Scrape.MaxArticles)
		assert.True(t, cfg.AI.Enabled)
		assert.Equal(t, "llama3", cfg.AI.Model)
		assert.InDelta(t, 0.5, cfg.AI.Temperature, 0.001)
	})

	t.Run("defaults applied to empty config", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "{}"))
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 10, cfg.Database.MaxOpenConns)
		assert.Equal(t, 1, cfg.Schedule.SweepInterval)
		assert.Equal(t, 15*time.Second, cfg.Scrape.Timeout)
		assert.Equal(t, 45*time.Second, cfg.Scrape.BrowserTimeout)
		assert.Equal(t, 2*time.Minute, cfg.Scrape.SourceTimeout)
		assert.Equal(t, 20, cfg.Scrape.MaxArticles)
		assert.Equal(t, 2, cfg.AI.Workers)
		assert.Equal(t, 256, cfg.AI.QueueSize)
		assert.False(t, cfg.AI.Enabled)
	})

	t.Run("environment variables expanded", func(t *testing.T) {
		t.Setenv("TEST_AI_KEY", "secret-key-123")
		path := writeConfig(t, `
ai:
  api_key: "${TEST_AI_KEY}"
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "secret-key-123", cfg.AI.APIKey)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [not a map"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("ai enabled requires endpoint", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
ai:
  enabled: true
  model: "llama3"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ai.endpoint is required")
	})

	t.Run("browser timeout shorter than fetch timeout", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
scrape:
  timeout: 30s
  browser_timeout: 10s
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser_timeout")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
ai:
  temperature: 3.5
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "temperature")
	})
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)
	assert.NoError(t, VerifyAgainstEmbeddedSchema(cfg))
}
