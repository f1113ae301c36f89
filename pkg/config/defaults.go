package config

import "time"

// Defaults returns the built-in configuration. User settings from the
// environment and assay.yaml are merged over it.
func Defaults() *Config {
	return &Config{
		HTTPPort:   "8080",
		ResumeMode: ResumeModeStateless,
		Pipeline: PipelineConfig{
			OverallTimeout: 180 * time.Second,
			ErrorStrategy:  ErrorStrategyFailFast,
			Stages: StagesConfig{
				Screening:  StageConfig{Timeout: 30 * time.Second, MaxAttempts: 3},
				Dimensions: StageConfig{Timeout: 90 * time.Second, MaxAttempts: 4},
				Verdict:    StageConfig{Timeout: 30 * time.Second, MaxAttempts: 3},
				Secondary:  StageConfig{Timeout: 60 * time.Second, MaxAttempts: 4},
				Synthesis:  StageConfig{Timeout: 30 * time.Second, MaxAttempts: 3},
			},
		},
		Retry: RetryConfig{
			InitialDelay:      time.Second,
			MaxDelay:          10 * time.Second,
			BackoffMultiplier: 2,
		},
		Retention: RetentionConfig{
			RunTTL:        30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
	}
}
