// Package config provides environment and YAML based configuration for the
// assay server: pipeline timeouts and retries, resume mode, retention, and
// the HTTP listener.
package config

import (
	"fmt"
	"time"
)

// StageConfig holds the per-stage resilience settings.
type StageConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// StagesConfig groups the five pipeline stages.
type StagesConfig struct {
	Screening  StageConfig `yaml:"screening"`
	Dimensions StageConfig `yaml:"dimensions"`
	Verdict    StageConfig `yaml:"verdict"`
	Secondary  StageConfig `yaml:"secondary"`
	Synthesis  StageConfig `yaml:"synthesis"`
}

// PipelineConfig holds orchestrator-level settings.
type PipelineConfig struct {
	OverallTimeout time.Duration `yaml:"overall_timeout"`
	ErrorStrategy  ErrorStrategy `yaml:"error_strategy"`
	Stages         StagesConfig  `yaml:"stages"`
}

// RetryConfig holds the shared backoff settings.
type RetryConfig struct {
	InitialDelay      time.Duration `yaml:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RetentionConfig controls the run manager's inactivity sweep.
type RetentionConfig struct {
	RunTTL        time.Duration `yaml:"run_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Config is the resolved server configuration.
type Config struct {
	HTTPPort    string         `yaml:"-"`
	ResumeMode  ResumeMode     `yaml:"-"`
	DatabaseURL string         `yaml:"-"`
	Pipeline    PipelineConfig `yaml:"pipeline"`
	Retry       RetryConfig    `yaml:"retry"`
	Retention   RetentionConfig `yaml:"retention"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if !c.ResumeMode.IsValid() {
		return fmt.Errorf("invalid resume mode %q", c.ResumeMode)
	}
	if c.ResumeMode == ResumeModeSnapshot && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when resume mode is %q", ResumeModeSnapshot)
	}
	if !c.Pipeline.ErrorStrategy.IsValid() {
		return fmt.Errorf("invalid error strategy %q", c.Pipeline.ErrorStrategy)
	}
	if c.Pipeline.OverallTimeout <= 0 {
		return fmt.Errorf("pipeline overall_timeout must be positive, got %s", c.Pipeline.OverallTimeout)
	}
	for name, sc := range map[string]StageConfig{
		"screening":  c.Pipeline.Stages.Screening,
		"dimensions": c.Pipeline.Stages.Dimensions,
		"verdict":    c.Pipeline.Stages.Verdict,
		"secondary":  c.Pipeline.Stages.Secondary,
		"synthesis":  c.Pipeline.Stages.Synthesis,
	} {
		if sc.Timeout <= 0 {
			return fmt.Errorf("stage %s: timeout must be positive, got %s", name, sc.Timeout)
		}
		if sc.MaxAttempts < 1 {
			return fmt.Errorf("stage %s: max_attempts must be at least 1, got %d", name, sc.MaxAttempts)
		}
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry delays out of range: initial=%s max=%s", c.Retry.InitialDelay, c.Retry.MaxDelay)
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff_multiplier must be >= 1, got %g", c.Retry.BackoffMultiplier)
	}
	if c.Retention.RunTTL <= 0 || c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("retention durations must be positive")
	}
	return nil
}
