package config

import (
	"errors"
	"fmt"
)

// Config represents the unified configuration structure
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Service       ServiceConfig       `json:"service" yaml:"service"`
	Security      SecurityConfig      `json:"security" yaml:"security"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	HotReload     HotReloadConfig     `json:"hot_reload" yaml:"hot_reload"`
	TLS           TLSConfig           `json:"tls" yaml:"tls"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `json:"-" yaml:"-"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Service:       DefaultServiceConfig(),
		Security:      DefaultSecurityConfig(),
		Observability: DefaultObservabilityConfig(),
		HotReload:     DefaultHotReloadConfig(),
		TLS:           DefaultTLSConfig(),
	}
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Service.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("service: %w", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("security: %w", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}
	if err := c.HotReload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hot_reload: %w", err))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tls: %w", err))
	}

	if c.Observability.Metrics.Enabled && c.Server.Port == c.Server.MetricsPort {
		errs = append(errs, errors.New("server.port and server.metrics_port cannot be the same"))
	}
	if c.HotReload.Enabled && c.ConfigFile == "" {
		errs = append(errs, errors.New("hot_reload requires a configuration file"))
	}

	return errors.Join(errs...)
}
