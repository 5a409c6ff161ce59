package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BAHAR_DATABASE_PATH.
const EnvPrefix = "BAHAR"

// DefaultDir returns $XDG_CONFIG_HOME/bahar, falling back to ~/.config/bahar.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bahar")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "bahar")
	}
	return ".bahar"
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// defaults is the single source of default values. Durations are strings so
// WriteDefault renders them readably.
func defaults() map[string]any {
	dataDir := DefaultDir()
	return map[string]any{
		"database.path":        filepath.Join(dataDir, "bahar.db"),
		"database.mode":        ModeLocal,
		"database.replica_url": "",
		"database.auth_token":  "",

		"search.batch_size":         500,
		"search.short_max":          2,
		"search.medium_max":         4,
		"search.boosts.word":        10.0,
		"search.boosts.translation": 10.0,
		"search.boosts.definition":  1.0,
		"search.boosts.tags":        1.0,
		"search.boosts.morphology":  1.0,

		"schedule.backlog_threshold_days": 30,
		"schedule.desired_retention":      0.9,
		"schedule.max_interval_days":      36500,
		"schedule.enable_fuzz":            false,
		"schedule.learning_steps":         "1m,10m",
		"schedule.relearning_steps":       "10m",

		"impex.batch_size": 100,
		"impex.atomic":     false,

		"remote.api_url": "",
		"remote.token":   "",
		"remote.timeout": "15s",

		"dashboard.enabled": false,
		"dashboard.port":    8765,

		"daemon.inbox_dir":     filepath.Join(dataDir, "inbox"),
		"daemon.sync_interval": "5m",
		"daemon.debounce":      "500ms",

		"log.level":        "info",
		"log.format":       "console",
		"log.file":         "",
		"log.max_size_mb":  10,
		"log.max_backups":  3,
		"log.max_age_days": 28,
		"log.compress":     true,
	}
}

// newViper returns a viper instance with defaults and env binding applied.
func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration. Priority: ENV > file > defaults.
// An explicit path must exist; the default path is optional.
func Load(path string) (*Config, error) {
	v := newViper()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Default returns the validated default configuration, ignoring files and
// the environment.
func Default() *Config {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}
