// Package config loads the solver and pipeline tunables that are
// numerous enough, and change rarely enough, to not belong as raw
// env vars: weekly/daily solve timeouts and the daily packer's
// per-week concurrency cap. An optional YAML file sets the baseline;
// env vars always win over it, matching every other setting in
// cmd/planner/main.go.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v2"
)

// Tunables holds the values SPEC_FULL §4.4-4.6 leaves as operator
// knobs rather than fixed constants.
type Tunables struct {
	GlobalTimeout     time.Duration `yaml:"global_timeout"`
	WeeklyTimeout     time.Duration `yaml:"weekly_timeout"`
	DailyTimeout      time.Duration `yaml:"daily_timeout"`
	MaxDayConcurrency int           `yaml:"max_day_concurrency"`
}

// Defaults mirrors the zero-value fallbacks the solvers and
// coordinator already apply when a duration is left at 0, spelled out
// here so a YAML file only needs to override what it wants to change.
func Defaults() Tunables {
	return Tunables{
		GlobalTimeout:     30 * time.Second,
		WeeklyTimeout:     30 * time.Second,
		DailyTimeout:      5 * time.Second,
		MaxDayConcurrency: 7,
	}
}

// yamlTunables mirrors Tunables with string durations, since
// encoding/json-style Duration (de)serialization isn't yaml.v2's
// default and a YAML file is meant to be hand-edited ("30s", "2m").
type yamlTunables struct {
	GlobalTimeout     string `yaml:"global_timeout"`
	WeeklyTimeout     string `yaml:"weekly_timeout"`
	DailyTimeout      string `yaml:"daily_timeout"`
	MaxDayConcurrency int    `yaml:"max_day_concurrency"`
}

// Load reads path, starting from Defaults and overriding only the
// fields the file sets. A missing file is not an error: callers pass
// an optional path and fall back to defaults plus env overrides.
func Load(path string) (Tunables, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, err
	}

	var y yamlTunables
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return t, err
	}
	if d, err := parseDuration(y.GlobalTimeout); err == nil && d > 0 {
		t.GlobalTimeout = d
	}
	if d, err := parseDuration(y.WeeklyTimeout); err == nil && d > 0 {
		t.WeeklyTimeout = d
	}
	if d, err := parseDuration(y.DailyTimeout); err == nil && d > 0 {
		t.DailyTimeout = d
	}
	if y.MaxDayConcurrency > 0 {
		t.MaxDayConcurrency = y.MaxDayConcurrency
	}
	return t, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// WithEnvOverrides applies PLANNER_* env vars on top of t, the same
// override-wins-over-file precedence as every other setting
// cmd/planner/main.go reads.
func (t Tunables) WithEnvOverrides(envDuration func(key string, fallback time.Duration) time.Duration, envInt func(key string, fallback int) int) Tunables {
	t.GlobalTimeout = envDuration("PLANNER_GLOBAL_TIMEOUT", t.GlobalTimeout)
	t.WeeklyTimeout = envDuration("PLANNER_WEEKLY_TIMEOUT", t.WeeklyTimeout)
	t.DailyTimeout = envDuration("PLANNER_DAILY_TIMEOUT", t.DailyTimeout)
	t.MaxDayConcurrency = envInt("PLANNER_MAX_DAY_CONCURRENCY", t.MaxDayConcurrency)
	return t
}
