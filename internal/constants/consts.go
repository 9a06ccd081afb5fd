package constants

import "time"

// Environment variable constants
const (
	EnvHost              = "MSY_API_HOST"
	EnvPort              = "MSY_API_PORT"
	EnvPortFallback      = "PORT"
	EnvMetricsPort       = "MSY_API_METRICS_PORT"
	EnvReadTimeout       = "MSY_API_READ_TIMEOUT"
	EnvWriteTimeout      = "MSY_API_WRITE_TIMEOUT"
	EnvIdleTimeout       = "MSY_API_IDLE_TIMEOUT"
	EnvMaxRequestSize    = "MSY_API_MAX_REQUEST_SIZE"
	EnvShutdownTimeout   = "MSY_API_SHUTDOWN_TIMEOUT"
	EnvServiceName       = "MSY_API_SERVICE_NAME"
	EnvServiceVersion    = "MSY_API_SERVICE_VERSION"
	EnvLogLevel          = "MSY_API_LOG_LEVEL"
	EnvLogFormat         = "MSY_API_LOG_FORMAT"
	EnvMetricsEnabled    = "MSY_API_METRICS_ENABLED"
	EnvTracingEnabled    = "MSY_API_TRACING_ENABLED"
	EnvRateLimitEnabled  = "MSY_API_RATE_LIMIT_ENABLED"
	EnvHotReload         = "MSY_API_HOT_RELOAD"
	EnvHotReloadDebounce = "MSY_API_HOT_RELOAD_DEBOUNCE"
	EnvTLSEnabled        = "MSY_API_TLS_ENABLED"
	EnvTLSCertFile       = "MSY_API_TLS_CERT_FILE"
	EnvTLSKeyFile        = "MSY_API_TLS_KEY_FILE"
)

// Service identity defaults
const (
	DefaultServiceName    = "MSY API Core"
	DefaultServiceVersion = "1.0.0"
	DefaultWelcomeMessage = "🏛️ Bienvenue sur MSY INT API"
	DefaultPhilosophy     = "Nous ne sommes pas des concurrents mais des contributeurs"
	DefaultHierarchy      = "Niveau 2 - Coordination Opérationnelle"
)

// Server defaults
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = "3000"
	DefaultMetricsPort     = "9090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultMaxRequestSize is 1MB; no route reads a body.
	DefaultMaxRequestSize = 1 << 20
	DefaultHotReloadDelay = 500 * time.Millisecond
)

// HTTP method constants
const (
	MethodGET     = "GET"
	MethodHEAD    = "HEAD"
	MethodOPTIONS = "OPTIONS"
)

// HTTP header constants
const (
	HeaderContentType    = "Content-Type"
	HeaderCacheControl   = "Cache-Control"
	HeaderAccept         = "Accept"
	HeaderAuthorization  = "Authorization"
	HeaderXRequestedWith = "X-Requested-With"
	HeaderOrigin         = "Origin"
	HeaderVary           = "Vary"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderXRealIP        = "X-Real-IP"
)

// Content type constants
const (
	ContentTypeJSON = "application/json"
	CacheNoStore    = "no-store"
)

// CORS headers
const (
	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
	HeaderAccessControlRequestMethod    = "Access-Control-Request-Method"
	HeaderAccessControlRequestHeaders   = "Access-Control-Request-Headers"
)

// Rate limiting headers
const (
	HeaderXRateLimitLimit     = "X-RateLimit-Limit"
	HeaderXRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderXRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter          = "Retry-After"
)

// Rate limiter internal constants
const (
	// RateLimitCleanupInterval is the interval for cleaning up rate limit cache
	RateLimitCleanupInterval = 5 * time.Minute
	// RateLimitMaxCacheSize is the maximum number of tracked clients
	RateLimitMaxCacheSize = 10000
)

// Error code constants
const (
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrorCodeHostNotAllowed    = "HOST_NOT_ALLOWED"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// Route paths
const (
	PathHealth  = "/health"
	PathWelcome = "/api"
	PathStatus  = "/api/status"
	PathReady   = "/ready"
	PathOpenAPI = "/openapi.json"
	PathMetrics = "/metrics"
)
