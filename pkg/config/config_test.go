package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validYAML = `
server:
  http:
    addr: ":8080"
  websocket:
    enabled: true
redis:
  enabled: true
  host: "localhost"
replenish:
  interval: "30s"
sources:
  - type: dexscreener
    name: dexscreener
    enabled: true
    config:
      rate_limit: 300
  - type: geckoterminal
    name: geckoterminal
    enabled: true
logging:
  level: info
  format: json
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Replenish.Interval.ToDuration())
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, 300, cfg.Sources[0].Config["rate_limit"])
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - type: dexscreener
    name: dexscreener
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Replenish.Interval.ToDuration())
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_REDIS_HOST", "redis.internal")

	cfg, err := Load(writeConfig(t, `
redis:
  enabled: true
  host: "${TEST_REDIS_HOST}"
sources:
  - type: dexscreener
    name: dexscreener
    enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_NoSources(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.True(t, errors.Is(Validate(cfg), ErrNoSourcesConfigured))
}

func TestValidate_NoEnabledSources(t *testing.T) {
	cfg := &Config{Sources: []SourceConfig{{Type: "dexscreener", Name: "dexscreener", Enabled: false}}}
	applyDefaults(cfg)
	assert.True(t, errors.Is(Validate(cfg), ErrNoSourcesEnabled))
}

func TestValidate_UnknownSourceType(t *testing.T) {
	cfg := &Config{Sources: []SourceConfig{{Type: "coinmarketcap", Name: "cmc", Enabled: true}}}
	applyDefaults(cfg)
	assert.True(t, errors.Is(Validate(cfg), ErrUnknownSourceType))
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := &Config{
		Sources: []SourceConfig{{Type: "dexscreener", Name: "dexscreener", Enabled: true}},
		Logging: LoggingConfig{Level: "loud", Format: "json"},
	}
	applyDefaults(cfg)
	assert.True(t, errors.Is(Validate(cfg), ErrInvalidLogLevel))
}

func TestEnabledSources(t *testing.T) {
	cfg := &Config{Sources: []SourceConfig{
		{Type: "dexscreener", Name: "a", Enabled: true},
		{Type: "geckoterminal", Name: "b", Enabled: false},
	}}
	enabled := cfg.EnabledSources()
	require.Len(t, enabled, 1)
	assert.Equal(t, "a", enabled[0].Name)
}

func TestDuration_UnmarshalRejectsGarbage(t *testing.T) {
	_, err := Load(writeConfig(t, `
replenish:
  interval: "soon"
sources:
  - type: dexscreener
    name: dexscreener
    enabled: true
`))
	require.Error(t, err)
}
