// Package config loads process-wide configuration for the taskq
// binaries: environment variables first, an optional YAML file
// overlay second, built-in defaults last.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved process configuration. Precedence:
// environment variables > YAML file > defaults. DatabaseURL is the
// only field with no default; Load fails if it ends up empty.
type Config struct {
	DatabaseURL  string
	ResultBaseURL string
	ResultSecret string
	SlurmTaskDir string

	TargetBackend        string
	LeaseSeconds         time.Duration
	PollSeconds          time.Duration
	JobPollSeconds       time.Duration
	FinishedGraceSeconds time.Duration
	Mode                 string
	IdleExitSeconds      time.Duration

	RunningStaleSeconds time.Duration

	LogLevel  string
	LogFormat string
}

// fileConfig mirrors the subset of Config that may be set via an
// optional YAML file; env vars always take precedence over it.
type fileConfig struct {
	DatabaseURL          string `yaml:"database_url"`
	ResultBaseURL        string `yaml:"result_base_url"`
	ResultSecret         string `yaml:"result_secret"`
	SlurmTaskDir         string `yaml:"slurm_task_dir"`
	TargetBackend        string `yaml:"target_backend"`
	LeaseSeconds         int    `yaml:"lease_seconds"`
	PollSeconds          float64 `yaml:"poll_seconds"`
	JobPollSeconds       float64 `yaml:"job_poll_seconds"`
	FinishedGraceSeconds int    `yaml:"finished_grace_seconds"`
	Mode                 string `yaml:"mode"`
	IdleExitSeconds      int    `yaml:"idle_exit_seconds"`
	RunningStaleSeconds  int    `yaml:"running_stale_seconds"`
	LogLevel             string `yaml:"log_level"`
	LogFormat            string `yaml:"log_format"`
}

func defaults() Config {
	return Config{
		TargetBackend:        "",
		LeaseSeconds:         120 * time.Second,
		PollSeconds:          2 * time.Second,
		JobPollSeconds:       5 * time.Second,
		FinishedGraceSeconds: 20 * time.Second,
		Mode:                 "real",
		IdleExitSeconds:      30 * time.Second,
		RunningStaleSeconds:  600 * time.Second,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load resolves configuration from environment variables, an optional
// YAML file at configPath (ignored if empty or missing), and defaults.
//
// Load returns an error when DATABASE_URL ends up unset (every other
// field has a usable default) or when an existing config file cannot
// be read or parsed.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		fc, err := loadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
		if fc != nil {
			applyFile(&cfg, fc)
		}
	}

	applyEnv(&cfg)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	return &cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.ResultBaseURL != "" {
		cfg.ResultBaseURL = fc.ResultBaseURL
	}
	if fc.ResultSecret != "" {
		cfg.ResultSecret = fc.ResultSecret
	}
	if fc.SlurmTaskDir != "" {
		cfg.SlurmTaskDir = fc.SlurmTaskDir
	}
	if fc.TargetBackend != "" {
		cfg.TargetBackend = fc.TargetBackend
	}
	if fc.LeaseSeconds > 0 {
		cfg.LeaseSeconds = time.Duration(fc.LeaseSeconds) * time.Second
	}
	if fc.PollSeconds > 0 {
		cfg.PollSeconds = time.Duration(fc.PollSeconds * float64(time.Second))
	}
	if fc.JobPollSeconds > 0 {
		cfg.JobPollSeconds = time.Duration(fc.JobPollSeconds * float64(time.Second))
	}
	if fc.FinishedGraceSeconds > 0 {
		cfg.FinishedGraceSeconds = time.Duration(fc.FinishedGraceSeconds) * time.Second
	}
	if fc.Mode != "" {
		cfg.Mode = fc.Mode
	}
	if fc.IdleExitSeconds > 0 {
		cfg.IdleExitSeconds = time.Duration(fc.IdleExitSeconds) * time.Second
	}
	if fc.RunningStaleSeconds > 0 {
		cfg.RunningStaleSeconds = time.Duration(fc.RunningStaleSeconds) * time.Second
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("RESULT_BASE_URL"); v != "" {
		cfg.ResultBaseURL = v
	}
	if v := os.Getenv("RESULT_SECRET"); v != "" {
		cfg.ResultSecret = v
	}
	if v := os.Getenv("SLURM_TASK_DIR"); v != "" {
		cfg.SlurmTaskDir = v
	}
	if v := os.Getenv("TASKQ_TARGET_BACKEND"); v != "" {
		cfg.TargetBackend = v
	}
	if v := os.Getenv("TASKQ_LEASE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LeaseSeconds = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("TASKQ_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKQ_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}
