package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
log:
  format: json
riot:
  apiKey: from-file
  matchCount: 5
game:
  maxRounds: 3
  roundSeconds: 20
  interRoundDelay: 2s
  seed: 42
cache:
  ttl: 1m
`), 0o600))
	t.Setenv("RIOT_API_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "from-file", cfg.Riot.APIKey)
	assert.Equal(t, 5, cfg.Riot.MatchCount)
	assert.Equal(t, 3, cfg.Game.MaxRounds)
	assert.Equal(t, 20, cfg.Game.RoundSeconds)
	assert.Equal(t, int64(42), cfg.Game.Seed)
	assert.Equal(t, 2*time.Second, TTLDuration(cfg.Game.InterRoundDelay, 0))
	assert.Equal(t, time.Minute, TTLDuration(cfg.Cache.TTL, 0))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("riot:\n  apiKey: from-file\npostgres:\n  url: postgres://file\n"), 0o600))
	t.Setenv("RIOT_API_KEY", "from-env")
	t.Setenv("POSTGRES_URL", "postgres://env")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Riot.APIKey)
	assert.Equal(t, "postgres://env", cfg.Postgres.URL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6379")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, TTLDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, TTLDuration("soon", 5*time.Second))
	assert.Equal(t, 90*time.Second, TTLDuration("1m30s", 5*time.Second))
}
