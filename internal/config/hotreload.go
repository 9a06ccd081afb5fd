package config

import (
	"errors"
	"time"

	"github.com/msy-int/msy-api/internal/constants"
)

// HotReloadConfig represents hot reload configuration
type HotReloadConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// DefaultHotReloadConfig returns default hot reload configuration
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:  false,
		Debounce: constants.DefaultHotReloadDelay,
	}
}

// Validate validates hot reload configuration
func (h HotReloadConfig) Validate() error {
	if h.Debounce < 0 {
		return errors.New("debounce must be non-negative")
	}
	return nil
}
