package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the optional YAML settings file looked up in the config
// directory.
const ConfigFileName = "assay.yaml"

// Initialize loads, merges, and validates configuration:
//
//  1. Built-in defaults
//  2. assay.yaml from configDir (optional), merged over defaults
//  3. Environment variables (HTTP_PORT, ASSAY_RESUME_MODE,
//     ASSAY_ERROR_STRATEGY, DATABASE_URL)
func Initialize(configDir string) (*Config, error) {
	cfg := Defaults()

	path := filepath.Join(configDir, ConfigFileName)
	fileCfg, err := loadYAML(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if fileCfg != nil {
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
		slog.Info("Loaded configuration file", "path", path)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Info("Configuration initialized",
		"resume_mode", cfg.ResumeMode,
		"error_strategy", cfg.Pipeline.ErrorStrategy,
		"overall_timeout", cfg.Pipeline.OverallTimeout)
	return cfg, nil
}

// loadYAML parses the optional settings file. A missing file is not an error.
func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &cfg, nil
}

// applyEnv overlays environment variables on the merged configuration.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		cfg.HTTPPort = v
	}
	if v := os.Getenv("ASSAY_RESUME_MODE"); v != "" {
		cfg.ResumeMode = ResumeMode(v)
	}
	if v := os.Getenv("ASSAY_ERROR_STRATEGY"); v != "" {
		cfg.Pipeline.ErrorStrategy = ErrorStrategy(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
}
