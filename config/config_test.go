package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Ragflow.Host)
	assert.Equal(t, 9380, cfg.Ragflow.Port)
	assert.Equal(t, "", cfg.Ragflow.APIKey)
	assert.Equal(t, 30000, cfg.Ragflow.Timeout)
	assert.Equal(t, 3, cfg.Ragflow.Retries)
	assert.Equal(t, "http://localhost:9380", cfg.Ragflow.BaseURL())
	assert.Equal(t, "paper", cfg.Setup.ChunkMethod)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)

	adapterCfg := cfg.Ragflow.AdapterConfig()
	assert.Equal(t, 30*time.Second, adapterCfg.Timeout)
	assert.Equal(t, time.Second, adapterCfg.RetryDelay)
	assert.Equal(t, 3, adapterCfg.MaxRetries)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RAGFLOW_HOST", "ragflow.internal")
	t.Setenv("RAGFLOW_PORT", "9999")
	t.Setenv("RAGFLOW_API_KEY", "ragflow-secret")
	t.Setenv("RAGFLOW_TIMEOUT", "5000")
	t.Setenv("RAGFLOW_RETRIES", "0")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://ragflow.internal:9999", cfg.Ragflow.BaseURL())
	assert.Equal(t, "ragflow-secret", cfg.Ragflow.APIKey)
	assert.Empty(t, cfg.Ragflow.Warnings())

	adapterCfg := cfg.Ragflow.AdapterConfig()
	assert.Equal(t, 5*time.Second, adapterCfg.Timeout)
	assert.Equal(t, 0, adapterCfg.MaxRetries)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
ragflow:
  host: 10.0.0.5
  api_key: ${TEST_RAGFLOW_KEY}
cache:
  type: redis
  health_ttl: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("TEST_RAGFLOW_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "10.0.0.5", cfg.Ragflow.Host)
	assert.Equal(t, 9380, cfg.Ragflow.Port)
	assert.Equal(t, "from-env", cfg.Ragflow.APIKey)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, 30, cfg.Cache.HealthTTL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadInvalid(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		t.Setenv("RAGFLOW_PORT", "70000")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad cache type", func(t *testing.T) {
		t.Setenv("CACHE_TYPE", "memcached")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestRagflowConfigValidate(t *testing.T) {
	valid := RagflowConfig{Host: "localhost", Port: 9380}
	assert.NoError(t, valid.Validate())
	assert.Len(t, valid.Warnings(), 1)

	assert.Error(t, RagflowConfig{Host: "", Port: 9380}.Validate())
	assert.Error(t, RagflowConfig{Host: "localhost", Port: 0}.Validate())
	assert.Error(t, RagflowConfig{Host: "localhost", Port: 65536}.Validate())

	withScheme := RagflowConfig{Host: "ragflow.example.com", Port: 443, Scheme: "https"}
	assert.Equal(t, "https://ragflow.example.com:443", withScheme.BaseURL())
}
