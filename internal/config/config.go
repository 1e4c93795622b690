// ============================================================================
// UWS Core — Configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: YAML configuration for the UWS daemon (§6).
//
// Grounding:
//   Adapts the teacher's internal/cli.Config + loadConfig (nested structs
//   with yaml tags, a flat os.ReadFile + yaml.Unmarshal loader), retargeted
//   from worker/WAL/snapshot sections onto job-list/execution/backup/
//   metrics sections.
//
// ============================================================================

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ListConfig describes one named JobList (§4.6).
type ListConfig struct {
	Name string `yaml:"name"`
	// Policy is one of "delete", "archive_on_date", "always_archive".
	Policy string `yaml:"policy"`
	// MaxRunning <= 0 means an Unbounded execution manager; > 0 selects a
	// Bounded one with that admission limit (§4.4).
	MaxRunning int `yaml:"max_running"`

	// DefaultExecutionDuration/MaxExecutionDuration configure the list's
	// executionDuration controller (§3, §4.2), parsed as a duration string
	// (e.g. "300s", "1h"). Empty means no executionDuration controller.
	DefaultExecutionDuration string `yaml:"default_execution_duration"`
	MaxExecutionDuration     string `yaml:"max_execution_duration"`

	// DefaultDestructionInterval/MaxDestructionInterval configure the
	// list's destruction controller (§3, §4.2), parsed with
	// time.ParseDuration. Empty means no destruction controller (jobs in
	// this list are never auto-scheduled for destruction).
	DefaultDestructionInterval string `yaml:"default_destruction_interval"`
	MaxDestructionInterval     string `yaml:"max_destruction_interval"`

	// JobParameters describes additional custom String/Numeric controllers
	// for this list (§4.2).
	JobParameters []ParameterConfig `yaml:"job_parameters"`
}

// ParameterConfig describes one custom job parameter's validation rules
// (§4.2). Type is "string" or "numeric"; the other fields apply to whichever
// type is selected and are ignored otherwise.
type ParameterConfig struct {
	Name           string   `yaml:"name"`
	Type           string   `yaml:"type"`
	Default        *string  `yaml:"default"`
	Pattern        string   `yaml:"pattern"`
	CaseSensitive  bool     `yaml:"case_sensitive"`
	DefaultNumeric *float64 `yaml:"default_numeric"`
	Min            *float64 `yaml:"min"`
	Max            *float64 `yaml:"max"`
	Modifiable     bool     `yaml:"modifiable"`
}

// BackupConfig controls the default file-based BackupManager (§4.8).
type BackupConfig struct {
	Dir             string `yaml:"dir"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// Interval returns the configured backup cadence, computed from
// IntervalSeconds. The value is only reported by `uwsd status`: the daemon
// does not save on this cadence, and writes its backup only at shutdown
// (Service.Stop), whatever the interval.
func (b BackupConfig) Interval() time.Duration {
	return time.Duration(b.IntervalSeconds) * time.Second
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Config is the complete daemon configuration (§6).
type Config struct {
	Lists   []ListConfig  `yaml:"lists"`
	Backup  BackupConfig  `yaml:"backup"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Load reads and parses path as YAML into a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("uws: reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("uws: parsing config YAML: %w", err)
	}
	return &cfg, nil
}
