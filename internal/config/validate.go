package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks business rules and parses derived fields. Load calls it.
func (c *Config) Validate() error {
	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Search.validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Schedule.validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if c.Impex.BatchSize <= 0 {
		return fmt.Errorf("impex: batch_size must be > 0 (got %d)", c.Impex.BatchSize)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote: timeout must be > 0 (got %s)", c.Remote.Timeout)
	}
	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard: port must be between 1 and 65535 (got %d)", c.Dashboard.Port)
	}
	if c.Daemon.SyncInterval < time.Second {
		return fmt.Errorf("daemon: sync_interval must be at least 1s (got %s)", c.Daemon.SyncInterval)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}
	switch d.Mode {
	case ModeLocal:
	case ModeReplica:
		if d.ReplicaURL == "" {
			return fmt.Errorf("replica_url is required in %s mode", ModeReplica)
		}
	default:
		return fmt.Errorf("mode must be %s or %s (got %q)", ModeLocal, ModeReplica, d.Mode)
	}
	return nil
}

func (s *SearchConfig) validate() error {
	if s.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", s.BatchSize)
	}
	if s.ShortMax < 0 || s.MediumMax < s.ShortMax {
		return fmt.Errorf("short_max must be >= 0 and medium_max >= short_max (got %d, %d)", s.ShortMax, s.MediumMax)
	}
	b := s.Boosts
	for name, w := range map[string]float64{
		"word": b.Word, "translation": b.Translation, "definition": b.Definition,
		"tags": b.Tags, "morphology": b.Morphology,
	} {
		if w < 0 {
			return fmt.Errorf("boosts.%s must be >= 0 (got %v)", name, w)
		}
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if s.BacklogThresholdDays <= 0 {
		return fmt.Errorf("backlog_threshold_days must be > 0 (got %d)", s.BacklogThresholdDays)
	}
	if s.DesiredRetention <= 0 || s.DesiredRetention >= 1 {
		return fmt.Errorf("desired_retention must be in (0, 1) (got %v)", s.DesiredRetention)
	}
	if s.MaxIntervalDays <= 0 {
		return fmt.Errorf("max_interval_days must be > 0 (got %d)", s.MaxIntervalDays)
	}

	steps, err := ParseSteps(s.LearningStepsRaw)
	if err != nil {
		return fmt.Errorf("learning_steps: %w", err)
	}
	s.LearningSteps = steps

	steps, err = ParseSteps(s.RelearningStepsRaw)
	if err != nil {
		return fmt.Errorf("relearning_steps: %w", err)
	}
	s.RelearningSteps = steps
	return nil
}

func (l *LogConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error (got %q)", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be json or console (got %q)", l.Format)
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		return fmt.Errorf("max_size_mb must be > 0 when file is set (got %d)", l.MaxSizeMB)
	}
	return nil
}

// ParseSteps parses a comma-separated list of durations such as "1m,10m".
// An empty string returns a nil slice.
func ParseSteps(raw string) ([]time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	steps := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := time.ParseDuration(p)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", p, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("step %q must be positive", p)
		}
		steps = append(steps, d)
	}
	return steps, nil
}
