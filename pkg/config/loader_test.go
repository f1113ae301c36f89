package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))
	return dir
}

func TestInitializeDefaults(t *testing.T) {
	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, ResumeModeStateless, cfg.ResumeMode)
	assert.Equal(t, ErrorStrategyFailFast, cfg.Pipeline.ErrorStrategy)
	assert.Equal(t, 180*time.Second, cfg.Pipeline.OverallTimeout)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Stages.Dimensions.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Stages.Dimensions.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Retention.RunTTL)
}

func TestInitializeMergesYAMLOverDefaults(t *testing.T) {
	dir := writeConfigFile(t, `
pipeline:
  overall_timeout: 60s
  stages:
    screening:
      timeout: 5s
      max_attempts: 2
retry:
  initial_delay: 500ms
  max_delay: 4s
  backoff_multiplier: 3.0
`)
	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Pipeline.OverallTimeout)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.Stages.Screening.Timeout)
	assert.Equal(t, 2, cfg.Pipeline.Stages.Screening.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 3.0, cfg.Retry.BackoffMultiplier)

	// Untouched sections keep their defaults.
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Stages.Dimensions.Timeout)
	assert.Equal(t, ErrorStrategyFailFast, cfg.Pipeline.ErrorStrategy)
}

func TestInitializeEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ASSAY_RESUME_MODE", "snapshot")
	t.Setenv("ASSAY_ERROR_STRATEGY", "continue-with-partial")
	t.Setenv("DATABASE_URL", "postgres://localhost/assay")

	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, ResumeModeSnapshot, cfg.ResumeMode)
	assert.Equal(t, ErrorStrategyContinuePartial, cfg.Pipeline.ErrorStrategy)
	assert.Equal(t, "postgres://localhost/assay", cfg.DatabaseURL)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := writeConfigFile(t, "pipeline: [not a mapping")
	_, err := Initialize(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"snapshot mode requires database url", func(c *Config) {
			c.ResumeMode = ResumeModeSnapshot
		}, "DATABASE_URL is required"},
		{"invalid resume mode", func(c *Config) {
			c.ResumeMode = "sometimes"
		}, "invalid resume mode"},
		{"invalid error strategy", func(c *Config) {
			c.Pipeline.ErrorStrategy = "shrug"
		}, "invalid error strategy"},
		{"zero stage timeout", func(c *Config) {
			c.Pipeline.Stages.Verdict.Timeout = 0
		}, "timeout must be positive"},
		{"zero attempts", func(c *Config) {
			c.Pipeline.Stages.Synthesis.MaxAttempts = 0
		}, "max_attempts must be at least 1"},
		{"max delay below initial", func(c *Config) {
			c.Retry.InitialDelay = time.Second
			c.Retry.MaxDelay = 100 * time.Millisecond
		}, "retry delays out of range"},
		{"multiplier below one", func(c *Config) {
			c.Retry.BackoffMultiplier = 0.5
		}, "backoff_multiplier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
