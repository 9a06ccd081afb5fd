package config

import (
	"errors"
	"fmt"
	"strings"
)

// ObservabilityConfig contains observability-related configuration
type ObservabilityConfig struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Format      string `json:"format" yaml:"format"`
	Development bool   `json:"development" yaml:"development"`
}

// MetricsConfig contains metrics server configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Environment string `json:"environment" yaml:"environment"`
}

// DefaultObservabilityConfig returns default observability configuration
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Environment: "production",
		},
	}
}

// Validate validates the observability configuration
func (o *ObservabilityConfig) Validate() error {
	var errs []error

	if err := o.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if o.Metrics.Enabled && !strings.HasPrefix(o.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}

	return errors.Join(errs...)
}

// Validate validates the logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(l.Level)] {
		return fmt.Errorf("invalid level: %s, must be one of: debug, info, warn, error", l.Level)
	}

	validFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validFormats[strings.ToLower(l.Format)] {
		return fmt.Errorf("invalid format: %s, must be one of: json, console", l.Format)
	}
	return nil
}
