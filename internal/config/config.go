// Package config loads bahar settings from defaults, an optional config file
// and BAHAR_ environment variables, in that order of precedence.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Search    SearchConfig    `mapstructure:"search"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Impex     ImpexConfig     `mapstructure:"impex"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Log       LogConfig       `mapstructure:"log"`
}

// Database modes.
const (
	ModeLocal   = "local"
	ModeReplica = "replica"
)

// DatabaseConfig selects the local store flavour.
type DatabaseConfig struct {
	Path       string `mapstructure:"path"`
	Mode       string `mapstructure:"mode"`
	ReplicaURL string `mapstructure:"replica_url"`
	AuthToken  string `mapstructure:"auth_token"`
}

// SearchConfig tunes the in-memory index. Desktop builds use medium_max 3.
type SearchConfig struct {
	BatchSize int          `mapstructure:"batch_size"`
	ShortMax  int          `mapstructure:"short_max"`
	MediumMax int          `mapstructure:"medium_max"`
	Boosts    BoostsConfig `mapstructure:"boosts"`
}

// BoostsConfig weights matches per field.
type BoostsConfig struct {
	Word        float64 `mapstructure:"word"`
	Translation float64 `mapstructure:"translation"`
	Definition  float64 `mapstructure:"definition"`
	Tags        float64 `mapstructure:"tags"`
	Morphology  float64 `mapstructure:"morphology"`
}

// ScheduleConfig holds FSRS and queue parameters.
type ScheduleConfig struct {
	BacklogThresholdDays int     `mapstructure:"backlog_threshold_days"`
	DesiredRetention     float64 `mapstructure:"desired_retention"`
	MaxIntervalDays      int     `mapstructure:"max_interval_days"`
	EnableFuzz           bool    `mapstructure:"enable_fuzz"`
	LearningStepsRaw     string  `mapstructure:"learning_steps"`
	RelearningStepsRaw   string  `mapstructure:"relearning_steps"`

	// LearningSteps is parsed from LearningStepsRaw during validation.
	LearningSteps []time.Duration `mapstructure:"-"`
	// RelearningSteps is parsed from RelearningStepsRaw during validation.
	RelearningSteps []time.Duration `mapstructure:"-"`
}

// BacklogThreshold returns the threshold as a duration.
func (s ScheduleConfig) BacklogThreshold() time.Duration {
	return time.Duration(s.BacklogThresholdDays) * 24 * time.Hour
}

// ImpexConfig holds import defaults.
type ImpexConfig struct {
	BatchSize int  `mapstructure:"batch_size"`
	Atomic    bool `mapstructure:"atomic"`
}

// RemoteConfig locates the remote dictionary API. An empty APIURL disables
// mirroring.
type RemoteConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a remote API is configured.
func (r RemoteConfig) Enabled() bool { return r.APIURL != "" }

// DashboardConfig controls the websocket dashboard.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DaemonConfig controls the background daemon.
type DaemonConfig struct {
	InboxDir     string        `mapstructure:"inbox_dir"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	Debounce     time.Duration `mapstructure:"debounce"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}
