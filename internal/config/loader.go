package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/msy-int/msy-api/internal/constants"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Flag names shared by RegisterFlags and the CLI override step
const (
	FlagConfig            = "config"
	FlagEnvFile           = "env-file"
	FlagHost              = "host"
	FlagPort              = "port"
	FlagMetricsPort       = "metrics-port"
	FlagReadTimeout       = "read-timeout"
	FlagWriteTimeout      = "write-timeout"
	FlagIdleTimeout       = "idle-timeout"
	FlagShutdownTimeout   = "shutdown-timeout"
	FlagMaxRequestSize    = "max-request-size"
	FlagLogLevel          = "log-level"
	FlagLogFormat         = "log-format"
	FlagMetricsEnabled    = "metrics-enabled"
	FlagTracingEnabled    = "tracing-enabled"
	FlagRateLimitEnabled  = "rate-limit-enabled"
	FlagRateLimitRPS      = "rate-limit-rps"
	FlagHotReload         = "hot-reload"
	FlagHotReloadDebounce = "hot-reload-debounce"
	FlagTLSEnabled        = "tls-enabled"
	FlagTLSCertFile       = "tls-cert-file"
	FlagTLSKeyFile        = "tls-key-file"
)

// Sources lists where configuration is read from.
type Sources struct {
	// ConfigFile is an optional YAML or JSON file.
	ConfigFile string
	// EnvFile is an optional dotenv file; a missing file is ignored.
	EnvFile string
	// BuildVersion replaces the default service version when set.
	BuildVersion string
	// Flags holds parsed CLI flags; only flags explicitly set override.
	Flags *pflag.FlagSet
}

// RegisterFlags defines every configuration flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	defaults := DefaultConfig()

	fs.String(FlagConfig, "", "Path to configuration file (YAML or JSON)")
	fs.String(FlagEnvFile, ".env", "Path to dotenv file loaded before reading the environment")

	fs.String(FlagHost, defaults.Server.Host, "Host interface to bind")
	fs.String(FlagPort, defaults.Server.Port, "Port to serve the API on")
	fs.String(FlagMetricsPort, defaults.Server.MetricsPort, "Port to serve Prometheus metrics on")
	fs.Duration(FlagReadTimeout, defaults.Server.ReadTimeout, "HTTP server read timeout")
	fs.Duration(FlagWriteTimeout, defaults.Server.WriteTimeout, "HTTP server write timeout")
	fs.Duration(FlagIdleTimeout, defaults.Server.IdleTimeout, "HTTP server idle timeout")
	fs.Duration(FlagShutdownTimeout, defaults.Server.ShutdownTimeout, "Graceful shutdown timeout")
	fs.Int64(FlagMaxRequestSize, defaults.Server.MaxRequestSize, "Maximum request size in bytes")

	fs.String(FlagLogLevel, defaults.Observability.Logging.Level, "Log level: debug, info, warn, error")
	fs.String(FlagLogFormat, defaults.Observability.Logging.Format, "Log format: json, console")
	fs.Bool(FlagMetricsEnabled, defaults.Observability.Metrics.Enabled, "Serve Prometheus metrics")
	fs.Bool(FlagTracingEnabled, defaults.Observability.Tracing.Enabled, "Export request traces to stdout")

	fs.Bool(FlagRateLimitEnabled, defaults.Security.RateLimit.Enabled, "Enable per-client rate limiting")
	fs.Int(FlagRateLimitRPS, defaults.Security.RateLimit.RequestsPerSecond, "Rate limit requests per second per client")

	fs.Bool(FlagHotReload, defaults.HotReload.Enabled, "Reload the service section when the config file changes")
	fs.Duration(FlagHotReloadDebounce, defaults.HotReload.Debounce, "Debounce time for hot reload events")

	fs.Bool(FlagTLSEnabled, defaults.TLS.Enabled, "Serve HTTPS")
	fs.String(FlagTLSCertFile, "", "TLS certificate file")
	fs.String(FlagTLSKeyFile, "", "TLS private key file")
}

// LoadConfig loads configuration with precedence:
// 1. Explicit CLI flags (highest priority)
// 2. Environment variables
// 3. Dotenv file (never overrides the real environment)
// 4. Configuration file values
// 5. Default configuration values (lowest priority)
func LoadConfig(src Sources) (*Config, error) {
	cfg, err := load(src)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadServiceConfig re-reads only the service section from the same sources.
func LoadServiceConfig(src Sources) (ServiceConfig, error) {
	cfg, err := load(src)
	if err != nil {
		return ServiceConfig{}, err
	}

	if err := cfg.Service.Validate(); err != nil {
		return ServiceConfig{}, fmt.Errorf("invalid service configuration: %w", err)
	}

	return cfg.Service, nil
}

func load(src Sources) (*Config, error) {
	cfg := DefaultConfig()
	if src.BuildVersion != "" {
		cfg.Service.Version = src.BuildVersion
	}

	if src.ConfigFile != "" {
		if err := loadFromFile(src.ConfigFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.ConfigFile = src.ConfigFile
	}

	if src.EnvFile != "" {
		if err := loadDotEnv(src.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if src.Flags != nil {
		if err := overrideWithCLI(cfg, src.Flags); err != nil {
			return nil, fmt.Errorf("failed to read flags: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile decodes a YAML or JSON file over the values already in cfg.
// JSON is decoded with the YAML decoder so durations such as "15s" work in
// both formats.
func loadFromFile(filePath string, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml", ".json":
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	var errs []error

	// Server configuration
	if val := os.Getenv(constants.EnvHost); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv(constants.EnvPort); val != "" {
		cfg.Server.Port = val
	} else if val := os.Getenv(constants.EnvPortFallback); val != "" {
		cfg.Server.Port = val
	}
	if val := os.Getenv(constants.EnvMetricsPort); val != "" {
		cfg.Server.MetricsPort = val
	}
	envDuration(constants.EnvReadTimeout, &cfg.Server.ReadTimeout, &errs)
	envDuration(constants.EnvWriteTimeout, &cfg.Server.WriteTimeout, &errs)
	envDuration(constants.EnvIdleTimeout, &cfg.Server.IdleTimeout, &errs)
	envDuration(constants.EnvShutdownTimeout, &cfg.Server.ShutdownTimeout, &errs)
	if val := os.Getenv(constants.EnvMaxRequestSize); val != "" {
		size, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", constants.EnvMaxRequestSize, err))
		} else {
			cfg.Server.MaxRequestSize = size
		}
	}

	// Service identity
	if val := os.Getenv(constants.EnvServiceName); val != "" {
		cfg.Service.Name = val
	}
	if val := os.Getenv(constants.EnvServiceVersion); val != "" {
		cfg.Service.Version = val
	}

	// Observability
	if val := os.Getenv(constants.EnvLogLevel); val != "" {
		cfg.Observability.Logging.Level = val
	}
	if val := os.Getenv(constants.EnvLogFormat); val != "" {
		cfg.Observability.Logging.Format = val
	}
	envBool(constants.EnvMetricsEnabled, &cfg.Observability.Metrics.Enabled, &errs)
	envBool(constants.EnvTracingEnabled, &cfg.Observability.Tracing.Enabled, &errs)

	// Security, hot reload and TLS
	envBool(constants.EnvRateLimitEnabled, &cfg.Security.RateLimit.Enabled, &errs)
	envBool(constants.EnvHotReload, &cfg.HotReload.Enabled, &errs)
	envDuration(constants.EnvHotReloadDebounce, &cfg.HotReload.Debounce, &errs)
	envBool(constants.EnvTLSEnabled, &cfg.TLS.Enabled, &errs)
	if val := os.Getenv(constants.EnvTLSCertFile); val != "" {
		cfg.TLS.CertFile = val
	}
	if val := os.Getenv(constants.EnvTLSKeyFile); val != "" {
		cfg.TLS.KeyFile = val
	}

	return errors.Join(errs...)
}

func envDuration(name string, dst *time.Duration, errs *[]error) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = d
}

func envBool(name string, dst *bool, errs *[]error) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = b
}

// overrideWithCLI overrides configuration with CLI flag values.
// Only explicitly set CLI flags override other configuration sources.
func overrideWithCLI(cfg *Config, fs *pflag.FlagSet) error {
	var errs []error
	set := func(name string, apply func() error) {
		if f := fs.Lookup(name); f == nil || !f.Changed {
			return
		}
		if err := apply(); err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", name, err))
		}
	}

	set(FlagHost, func() (err error) { cfg.Server.Host, err = fs.GetString(FlagHost); return })
	set(FlagPort, func() (err error) { cfg.Server.Port, err = fs.GetString(FlagPort); return })
	set(FlagMetricsPort, func() (err error) { cfg.Server.MetricsPort, err = fs.GetString(FlagMetricsPort); return })
	set(FlagReadTimeout, func() (err error) { cfg.Server.ReadTimeout, err = fs.GetDuration(FlagReadTimeout); return })
	set(FlagWriteTimeout, func() (err error) { cfg.Server.WriteTimeout, err = fs.GetDuration(FlagWriteTimeout); return })
	set(FlagIdleTimeout, func() (err error) { cfg.Server.IdleTimeout, err = fs.GetDuration(FlagIdleTimeout); return })
	set(FlagShutdownTimeout, func() (err error) {
		cfg.Server.ShutdownTimeout, err = fs.GetDuration(FlagShutdownTimeout)
		return
	})
	set(FlagMaxRequestSize, func() (err error) { cfg.Server.MaxRequestSize, err = fs.GetInt64(FlagMaxRequestSize); return })

	set(FlagLogLevel, func() (err error) { cfg.Observability.Logging.Level, err = fs.GetString(FlagLogLevel); return })
	set(FlagLogFormat, func() (err error) { cfg.Observability.Logging.Format, err = fs.GetString(FlagLogFormat); return })
	set(FlagMetricsEnabled, func() (err error) {
		cfg.Observability.Metrics.Enabled, err = fs.GetBool(FlagMetricsEnabled)
		return
	})
	set(FlagTracingEnabled, func() (err error) {
		cfg.Observability.Tracing.Enabled, err = fs.GetBool(FlagTracingEnabled)
		return
	})

	set(FlagRateLimitEnabled, func() (err error) {
		cfg.Security.RateLimit.Enabled, err = fs.GetBool(FlagRateLimitEnabled)
		return
	})
	set(FlagRateLimitRPS, func() (err error) {
		cfg.Security.RateLimit.RequestsPerSecond, err = fs.GetInt(FlagRateLimitRPS)
		return
	})

	set(FlagHotReload, func() (err error) { cfg.HotReload.Enabled, err = fs.GetBool(FlagHotReload); return })
	set(FlagHotReloadDebounce, func() (err error) {
		cfg.HotReload.Debounce, err = fs.GetDuration(FlagHotReloadDebounce)
		return
	})

	set(FlagTLSEnabled, func() (err error) { cfg.TLS.Enabled, err = fs.GetBool(FlagTLSEnabled); return })
	set(FlagTLSCertFile, func() (err error) { cfg.TLS.CertFile, err = fs.GetString(FlagTLSCertFile); return })
	set(FlagTLSKeyFile, func() (err error) { cfg.TLS.KeyFile, err = fs.GetString(FlagTLSKeyFile); return })

	return errors.Join(errs...)
}
