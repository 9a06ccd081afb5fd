package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/msy-int/msy-api/internal/constants"
)

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Headers   SecurityHeaders `json:"headers" yaml:"headers"`
	CORS      CORSConfig      `json:"cors" yaml:"cors"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	RequestsPerSecond int           `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	MaxCacheSize      int           `json:"max_cache_size" yaml:"max_cache_size"`
	// TrustedProxies lists the peers (addresses or CIDR prefixes) whose
	// X-Forwarded-For and X-Real-IP headers identify the client. Empty
	// means proxy headers are ignored.
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
}

// SecurityHeaders contains security headers configuration
type SecurityHeaders struct {
	Enabled               bool     `json:"enabled" yaml:"enabled"`
	HSTSMaxAge            int      `json:"hsts_max_age" yaml:"hsts_max_age"`
	ContentSecurityPolicy string   `json:"content_security_policy" yaml:"content_security_policy"`
	AllowedHosts          []string `json:"allowed_hosts" yaml:"allowed_hosts"`
}

// CORSConfig contains CORS configuration
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `json:"max_age" yaml:"max_age"`
}

// DefaultSecurityConfig returns default security configuration
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		RateLimit: DefaultRateLimitConfig(),
		Headers:   DefaultSecurityHeaders(),
		CORS:      DefaultCORSConfig(),
	}
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           false,
		RequestsPerSecond: 100,
		BurstSize:         200,
		CleanupInterval:   constants.RateLimitCleanupInterval,
		MaxCacheSize:      constants.RateLimitMaxCacheSize,
	}
}

// DefaultSecurityHeaders returns default security headers
func DefaultSecurityHeaders() SecurityHeaders {
	return SecurityHeaders{
		Enabled:               true,
		HSTSMaxAge:            31536000, // 1 year
		ContentSecurityPolicy: "default-src 'none'",
		AllowedHosts:          []string{},
	}
}

// DefaultCORSConfig returns the permissive CORS policy applied to every route
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{constants.MethodGET, constants.MethodHEAD, constants.MethodOPTIONS},
		AllowedHeaders:   []string{constants.HeaderContentType, constants.HeaderAuthorization, constants.HeaderAccept, constants.HeaderXRequestedWith},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
	}
}

// Validate validates the security configuration
func (s *SecurityConfig) Validate() error {
	var errs []error

	if err := s.RateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rate_limit: %w", err))
	}
	if err := s.Headers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("headers: %w", err))
	}
	if err := s.CORS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cors: %w", err))
	}

	return errors.Join(errs...)
}

// Validate validates the rate limit configuration
func (r *RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	var errs []error
	if r.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests_per_second must be positive"))
	}
	if r.BurstSize <= 0 {
		errs = append(errs, errors.New("burst_size must be positive"))
	}
	if r.CleanupInterval < 0 {
		errs = append(errs, errors.New("cleanup_interval must be non-negative"))
	}
	if r.MaxCacheSize < 0 {
		errs = append(errs, errors.New("max_cache_size must be non-negative"))
	}
	if _, err := r.TrustedPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TrustedPrefixes parses TrustedProxies. A bare address is treated as a
// single-host prefix.
func (r *RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, entry := range r.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Validate validates the security headers configuration
func (h *SecurityHeaders) Validate() error {
	if h.HSTSMaxAge < 0 {
		return errors.New("hsts_max_age must be non-negative")
	}
	return nil
}

// Validate validates the CORS configuration
func (c *CORSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if len(c.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("allowed_origins cannot be empty when CORS is enabled"))
	}
	if c.AllowCredentials {
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, errors.New("allow_credentials cannot be combined with wildcard origin"))
				break
			}
		}
	}
	if c.MaxAge < 0 {
		errs = append(errs, errors.New("max_age must be non-negative"))
	}
	return errors.Join(errs...)
}
