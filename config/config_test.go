package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
redis_url: "redis://localhost:6379/3"
routing:
  default_chain: "default"
  by_tier:
    pro: "premium"
toggle:
  global_enabled: true
  deny_user_ids: ["banned1"]
  default_allow: true
  per_tier:
    free: false
`

func TestLoad_ParsesAndNormalizesTierKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Routing.DefaultChain)
	assert.Equal(t, "premium", cfg.Routing.ByTier["PRO"])
	assert.True(t, cfg.Toggle.GlobalEnabled)
	assert.True(t, cfg.Toggle.DenyUserIDs["banned1"])
	assert.False(t, cfg.Toggle.PerTier["FREE"])
}

func TestLoad_MissingRedisURLFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routing:\n  default_chain: default\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	require.Error(t, err)
}
