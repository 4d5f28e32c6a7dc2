package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wisarudtecha/CMS-sub002/internal/monitor"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
)

// Config holds all sopprogress configuration.
// Priority: flags > env vars (SOPPROG_*) > settings.json > defaults.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr" json:"listen_addr"`
	DBPath          string        `mapstructure:"db_path" json:"db_path"`
	LogLevel        string        `mapstructure:"log_level" json:"log_level"`
	LogFormat       string        `mapstructure:"log_format" json:"log_format"`
	Language        string        `mapstructure:"language" json:"language"`
	BypassDepth     int           `mapstructure:"bypass_depth" json:"bypass_depth"`
	DelayRule       string        `mapstructure:"delay_rule" json:"delay_rule,omitempty"`
	SLARiskRule     string        `mapstructure:"sla_risk_rule" json:"sla_risk_rule,omitempty"`
	MonitorSchedule string        `mapstructure:"monitor_schedule" json:"monitor_schedule"`
	MonitorWorkers  int           `mapstructure:"monitor_workers" json:"monitor_workers"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	Panel           bool          `mapstructure:"panel" json:"panel"`
}

const envPrefix = "SOPPROG"

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":4200",
		DBPath:          filepath.Join(appDir(), "sopprogress.db"),
		LogLevel:        "info",
		LogFormat:       "text",
		Language:        tracker.DefaultLanguage,
		BypassDepth:     1,
		MonitorSchedule: monitor.DefaultSchedule,
		MonitorWorkers:  monitor.DefaultWorkers,
		CacheTTL:        tracker.DefaultCacheTTL,
	}
}

func appDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sopprogress"
	}
	return filepath.Join(home, ".sopprogress")
}

func settingsPath() string {
	return filepath.Join(appDir(), "settings.json")
}

// newViper returns a viper instance carrying every key's default and the
// SOPPROG_ environment binding.
func newViper() *viper.Viper {
	v := viper.New()
	d := defaultConfig()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("language", d.Language)
	v.SetDefault("bypass_depth", d.BypassDepth)
	v.SetDefault("delay_rule", d.DelayRule)
	v.SetDefault("sla_risk_rule", d.SLARiskRule)
	v.SetDefault("monitor_schedule", d.MonitorSchedule)
	v.SetDefault("monitor_workers", d.MonitorWorkers)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("panel", d.Panel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the settings file into v and decodes the merged layers.
// An explicit path must exist; the default settings.json is optional.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	if path == "" {
		path = settingsPath()
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return decodeConfig(v)
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return decodeConfig(v)
}

func decodeConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.BypassDepth < 1 {
		return Config{}, fmt.Errorf("bypass_depth must be at least 1, got %d", cfg.BypassDepth)
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("cache_ttl must be positive, got %s", cfg.CacheTTL)
	}
	if cfg.Language == "" {
		cfg.Language = tracker.DefaultLanguage
	}
	return cfg, nil
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	PanelChanged    bool
	LogLevelChanged bool
	RestartNeeded   []string // fields that require a server restart
}

func (d configDiff) empty() bool {
	return !d.PanelChanged && !d.LogLevelChanged && len(d.RestartNeeded) == 0
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.Panel != new.Panel {
		d.PanelChanged = true
	}
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}

	restart := []struct {
		key     string
		changed bool
	}{
		{"listen_addr", old.ListenAddr != new.ListenAddr},
		{"db_path", old.DBPath != new.DBPath},
		{"log_format", old.LogFormat != new.LogFormat},
		{"language", old.Language != new.Language},
		{"bypass_depth", old.BypassDepth != new.BypassDepth},
		{"delay_rule", old.DelayRule != new.DelayRule},
		{"sla_risk_rule", old.SLARiskRule != new.SLARiskRule},
		{"monitor_schedule", old.MonitorSchedule != new.MonitorSchedule},
		{"monitor_workers", old.MonitorWorkers != new.MonitorWorkers},
		{"cache_ttl", old.CacheTTL != new.CacheTTL},
	}
	for _, f := range restart {
		if f.changed {
			d.RestartNeeded = append(d.RestartNeeded, f.key)
		}
	}
	return d
}
