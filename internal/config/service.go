package config

import (
	"github.com/msy-int/msy-api/internal/constants"
	"github.com/msy-int/msy-api/internal/status"
)

// ServiceConfig describes the identity reported by the status routes
type ServiceConfig struct {
	Name    string         `json:"name" yaml:"name"`
	Version string         `json:"version" yaml:"version"`
	Welcome status.Welcome `json:"welcome" yaml:"welcome"`
}

// DefaultServiceConfig returns default service identity
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:    constants.DefaultServiceName,
		Version: constants.DefaultServiceVersion,
		Welcome: status.Welcome{
			Message:    constants.DefaultWelcomeMessage,
			Philosophy: constants.DefaultPhilosophy,
			Hierarchy:  constants.DefaultHierarchy,
		},
	}
}

// Manifest converts the configuration into the reporter's identity value
func (s ServiceConfig) Manifest() status.Manifest {
	return status.Manifest{
		Service: s.Name,
		Version: s.Version,
		Welcome: s.Welcome,
	}
}

// Validate validates the service configuration
func (s ServiceConfig) Validate() error {
	return s.Manifest().Validate()
}
