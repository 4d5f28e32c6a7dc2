package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir so no real settings file is read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)
	assert.Equal(t, ":4200", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(home, ".sopprogress", "sopprogress.db"), cfg.DBPath)
	assert.Equal(t, "th", cfg.Language)
	assert.Equal(t, 1, cfg.BypassDepth)
	assert.Equal(t, "*/5 * * * *", cfg.MonitorSchedule)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.Panel)
}

func TestLoadConfig_Layers(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"language": "en",
		"bypass_depth": 2,
		"cache_ttl": "1m",
		"panel": true,
		"log_level": "debug"
	}`), 0o644))

	t.Setenv("SOPPROG_LANGUAGE", "lo")
	t.Setenv("SOPPROG_PANEL", "false")

	cfg, err := loadConfig(newViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "lo", cfg.Language, "env beats file")
	assert.False(t, cfg.Panel, "env beats file")
	assert.Equal(t, 2, cfg.BypassDepth)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"bypass_depth": 0}`), 0o644))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{nope`), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"missing explicit file", filepath.Join(dir, "missing.json")},
		{"bad bypass depth", bad},
		{"broken json", broken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(newViper(), tt.path)
			assert.Error(t, err)
		})
	}
}

func TestDiffConfigs(t *testing.T) {
	base := defaultConfig()

	assert.True(t, diffConfigs(base, base).empty())

	next := base
	next.Panel = true
	next.LogLevel = "debug"
	d := diffConfigs(base, next)
	assert.True(t, d.PanelChanged)
	assert.True(t, d.LogLevelChanged)
	assert.Empty(t, d.RestartNeeded)

	next = base
	next.ListenAddr = ":9999"
	next.DelayRule = `statusId == "W"`
	next.CacheTTL = time.Minute
	d = diffConfigs(base, next)
	assert.False(t, d.PanelChanged)
	assert.Equal(t, []string{"listen_addr", "delay_rule", "cache_ttl"}, d.RestartNeeded)
}

func TestWriteSettings_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	cfg := defaultConfig()
	cfg.Language = "en"
	cfg.CacheTTL = 45 * time.Second
	require.NoError(t, writeSettings(path, cfg, false))
	assert.Error(t, writeSettings(path, cfg, false), "refuses to overwrite")
	require.NoError(t, writeSettings(path, cfg, true))

	got, err := loadConfig(newViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, 45*time.Second, got.CacheTTL)
}
