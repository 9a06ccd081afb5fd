package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/msy-int/msy-api/internal/config"
	"github.com/msy-int/msy-api/internal/constants"
)

// SecurityHeadersMiddleware sets hardening headers and enforces the optional
// host allow list
func SecurityHeadersMiddleware(cfg config.SecurityHeaders) func(http.Handler) http.Handler {
	hsts := "max-age=" + strconv.Itoa(cfg.HSTSMaxAge) + "; includeSubDomains"

	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			if r.TLS != nil && cfg.HSTSMaxAge > 0 {
				h.Set("Strict-Transport-Security", hsts)
			}
			if cfg.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}

			if len(cfg.AllowedHosts) > 0 && !hostAllowed(r.Host, cfg.AllowedHosts) {
				h.Set(constants.HeaderContentType, constants.ContentTypeJSON)
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "FORBIDDEN",
					"message": "Host not allowed",
					"code":    constants.ErrorCodeHostNotAllowed,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(host string, allowed []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, a := range allowed {
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}
