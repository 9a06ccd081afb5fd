package config

import (
	"errors"
	"fmt"
	"os"
)

// TLSConfig contains TLS-specific configuration
type TLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
}

// DefaultTLSConfig returns default TLS configuration
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{}
}

// Validate validates the TLS configuration
func (c TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" {
		return errors.New("cert_file is required when TLS is enabled")
	}
	if c.KeyFile == "" {
		return errors.New("key_file is required when TLS is enabled")
	}
	if _, err := os.Stat(c.CertFile); err != nil {
		return fmt.Errorf("cert file %s: %w", c.CertFile, err)
	}
	if _, err := os.Stat(c.KeyFile); err != nil {
		return fmt.Errorf("key file %s: %w", c.KeyFile, err)
	}
	return nil
}
