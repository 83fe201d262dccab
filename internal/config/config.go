// Package config holds the runner configuration. Values are bound from the
// viper config file, environment and flags in cmd; this package owns the
// defaults and derived paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the effective runner configuration
type Config struct {
	// ProjectDir is the orchestrator project tree: virtualenvs and the
	// profiles file live under it, and the orchestrator runs with it as cwd.
	ProjectDir string `json:"project_dir" yaml:"project_dir"`

	// LogDir holds the cron audit log and the captured pipeline output
	LogDir string `json:"log_dir" yaml:"log_dir"`

	// LockPath is the advisory lock file guarding background runs
	LockPath string `json:"lock_path" yaml:"lock_path"`

	// Python overrides interpreter resolution when set
	Python string `json:"python,omitempty" yaml:"python,omitempty"`

	// Module is the orchestrator entry point, invoked as `python -m <Module>`
	Module string `json:"module" yaml:"module"`

	// SyslogTag tags every system-log message of a run
	SyslogTag string `json:"syslog_tag" yaml:"syslog_tag"`

	// MetricsTextfile enables Prometheus textfile output when non-empty
	MetricsTextfile string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`

	// LogLevel controls runner diagnostics (not the audit trail)
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Run-history database
	DBType string `json:"db_type" yaml:"db_type"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DBDSN  string `json:"db_dsn,omitempty" yaml:"db_dsn,omitempty"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		ProjectDir: ".",
		LockPath:   filepath.Join(os.TempDir(), "hydra-pipeline.lock"),
		Module:     "hydra_orchestrator",
		SyslogTag:  "hydra-pipeline",
		LogLevel:   "info",
		DBType:     "sqlite",
	}
}

// Normalize fills derived defaults and makes paths absolute
func (c *Config) Normalize() error {
	abs, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("failed to resolve project dir %s: %w", c.ProjectDir, err)
	}
	c.ProjectDir = abs

	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.ProjectDir, "logs")
	}
	if c.DBType == "" {
		c.DBType = "sqlite"
	}
	if c.DBType == "sqlite" && c.DBPath == "" {
		c.DBPath = filepath.Join(c.LogDir, "history.db")
	}
	return nil
}

// CronLogPath is the append-only audit log of run phases
func (c *Config) CronLogPath() string {
	return filepath.Join(c.LogDir, "cron.log")
}

// PipelineLogPath captures the orchestrator's stdout and stderr
func (c *Config) PipelineLogPath() string {
	return filepath.Join(c.LogDir, "pipeline.log")
}

// ProfilesPath is the optional YAML profiles file
func (c *Config) ProfilesPath() string {
	return filepath.Join(c.ProjectDir, "profiles.yaml")
}
