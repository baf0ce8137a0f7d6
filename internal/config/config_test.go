package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MinWords)
	assert.Equal(t, 15*time.Second, cfg.DuplicateWindow)
	assert.Equal(t, 5*time.Minute, cfg.InactivityTimeout)
	assert.Equal(t, 20, cfg.MinUnitChars)
	assert.Equal(t, 300, cfg.MaxBatchChars)
	assert.InDelta(t, 5.0, cfg.LowWaterSec, 0.001)
	assert.InDelta(t, 1.0, cfg.HistoryWeight+cfg.IntentWeight+cfg.InterruptWeight, 0.001)
}

func TestLoadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
bot_name: minuteman
min_words: 4
duplicate_window: 30s
inactivity_timeout: 10m
max_batch_chars: 200
low_water_sec: 3.5
greetings: ["howdy", "hiya"]
session_backend: redis
redis_addr: redis:6379
redis_ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "minuteman", cfg.BotName)
	assert.Equal(t, 4, cfg.MinWords)
	assert.Equal(t, 30*time.Second, cfg.DuplicateWindow)
	assert.Equal(t, 10*time.Minute, cfg.InactivityTimeout)
	assert.Equal(t, 200, cfg.MaxBatchChars)
	assert.InDelta(t, 3.5, cfg.LowWaterSec, 0.001)
	assert.Equal(t, []string{"howdy", "hiya"}, cfg.Greetings)
	assert.Equal(t, "redis", cfg.SessionBackend)
	assert.Equal(t, time.Hour, cfg.RedisTTL)

	// untouched defaults survive a partial file
	assert.Equal(t, 300, Default().MaxBatchChars)
	assert.Equal(t, 0.4, cfg.HistoryWeight)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot_name: fromfile\n"), 0o644))

	t.Setenv("BOT_NAME", "fromenv")
	t.Setenv("MIN_WORDS", "5")
	t.Setenv("DUPLICATE_WINDOW", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.BotName)
	assert.Equal(t, 5, cfg.MinWords)
	assert.Equal(t, 45*time.Second, cfg.DuplicateWindow)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min words", func(c *Config) { c.MinWords = 0 }},
		{"batch below unit", func(c *Config) { c.MaxBatchChars = 5 }},
		{"weights off", func(c *Config) { c.HistoryWeight = 0.9 }},
		{"unknown backend", func(c *Config) { c.SessionBackend = "etcd" }},
		{"unknown transport", func(c *Config) { c.AudioTransport = "carrier-pigeon" }},
		{"discord without token", func(c *Config) { c.AudioTransport = "discord" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBadDurationRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("duplicate_window: soon\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
