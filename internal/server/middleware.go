package server

import (
	"net/http"

	"github.com/msy-int/msy-api/internal/server/middleware"
)

// applyMiddleware wraps handler with the middleware chain. The last wrapper
// applied runs first.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Request size limit middleware
	handler = middleware.RequestSizeLimitMiddleware(s.config.Server.MaxRequestSize)(handler)

	// Rate limiting runs inside CORS so rejections still carry CORS headers
	handler = s.rateLimiter.Middleware(handler)

	// CORS middleware
	if s.config.Security.CORS.Enabled {
		handler = middleware.NewCORSMiddleware(s.config.Security.CORS).Handler(handler)
	}

	// Security headers middleware
	handler = middleware.SecurityHeadersMiddleware(s.config.Security.Headers)(handler)

	// Logging middleware
	handler = middleware.LoggingMiddleware(s.logger.Logger)(handler)

	// Recovery middleware
	handler = middleware.RecoveryMiddleware(s.logger.Logger)(handler)

	return handler
}
