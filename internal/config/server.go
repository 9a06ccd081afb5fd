package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/msy-int/msy-api/internal/constants"
)

// ServerConfig contains server-specific configuration
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            string        `json:"port" yaml:"port"`
	MetricsPort     string        `json:"metrics_port" yaml:"metrics_port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestSize  int64         `json:"max_request_size" yaml:"max_request_size"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            constants.DefaultHost,
		Port:            constants.DefaultPort,
		MetricsPort:     constants.DefaultMetricsPort,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		IdleTimeout:     constants.DefaultIdleTimeout,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		MaxRequestSize:  constants.DefaultMaxRequestSize,
	}
}

// Validate validates the server configuration
func (s *ServerConfig) Validate() error {
	var errs []error

	if s.Host == "" {
		errs = append(errs, errors.New("host cannot be empty"))
	}
	if err := validatePort(s.Port, "port"); err != nil {
		errs = append(errs, err)
	}
	if err := validatePort(s.MetricsPort, "metrics_port"); err != nil {
		errs = append(errs, err)
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, errors.New("read_timeout must be positive"))
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write_timeout must be positive"))
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, errors.New("idle_timeout must be positive"))
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if s.MaxRequestSize <= 0 {
		errs = append(errs, errors.New("max_request_size must be positive"))
	}

	return errors.Join(errs...)
}

// Address returns the listen address of the main server
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// MetricsAddress returns the listen address of the metrics server
func (s *ServerConfig) MetricsAddress() string {
	return net.JoinHostPort(s.Host, s.MetricsPort)
}

// validatePort validates a port string
func validatePort(portStr, fieldName string) error {
	if portStr == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("%s must be a valid port number: %w", fieldName, err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", fieldName)
	}

	return nil
}
