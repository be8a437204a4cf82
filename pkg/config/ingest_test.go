package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIngestConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadIngestConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultIngestConfig(), cfg)
}

func TestLoadIngestConfig_OverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
data_dir: /srv/ingest
sources:
  courtlistener:
    rate_limit: 0.5
    api_token: tok-123
  doj:
    enabled: false
download:
  max_retries: 7
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadIngestConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/ingest", cfg.DataDir)
	assert.Equal(t, "ingest.db", cfg.DBPath, "unset field keeps default")
	assert.Equal(t, 7, cfg.Download.MaxRetries)
	assert.Equal(t, 2.0, cfg.Download.DefaultRateLimit, "unset download field keeps default")

	assert.Equal(t, 0.5, cfg.SourceRateLimit("courtlistener"))
	assert.Equal(t, "tok-123", cfg.SourceAPIToken("courtlistener"))
	assert.True(t, cfg.SourceEnabled("courtlistener"), "omitted enabled key defaults true")
	assert.False(t, cfg.SourceEnabled("doj"), "explicit enabled: false is honored")
	assert.True(t, cfg.SourceEnabled("never-mentioned-source"))
	assert.Equal(t, cfg.Download.DefaultRateLimit, cfg.SourceRateLimit("never-mentioned-source"))
}

func TestLoadIngestConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := LoadIngestConfig(path)
	assert.Error(t, err)
}
