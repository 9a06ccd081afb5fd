package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/msy-int/msy-api/internal/config"
	"github.com/msy-int/msy-api/internal/constants"
)

// CORSMiddleware applies one cross-origin policy to every route
type CORSMiddleware struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int

	allowAll       bool
	reflectHeaders bool
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(cfg config.CORSConfig) *CORSMiddleware {
	c := &CORSMiddleware{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			c.allowAll = true
			break
		}
	}

	// A wildcard origin or header list reflects whatever headers the
	// preflight asks for.
	c.reflectHeaders = c.allowAll
	for _, header := range cfg.AllowedHeaders {
		if header == "*" {
			c.reflectHeaders = true
			continue
		}
		c.AllowedHeaders = append(c.AllowedHeaders, header)
	}
	return c
}

func (c *CORSMiddleware) originAllowed(origin string) bool {
	if c.allowAll {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Handler returns the CORS middleware handler. Every OPTIONS request is
// answered here with 204 and never reaches the routes.
func (c *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(constants.HeaderOrigin)

		h := w.Header()
		if !c.allowAll {
			h.Add(constants.HeaderVary, constants.HeaderOrigin)
		}

		allowed := false
		switch {
		case c.allowAll && !c.AllowCredentials:
			h.Set(constants.HeaderAccessControlAllowOrigin, "*")
			allowed = true
		case origin != "" && c.originAllowed(origin):
			h.Set(constants.HeaderAccessControlAllowOrigin, origin)
			if c.AllowCredentials {
				h.Set(constants.HeaderAccessControlAllowCredentials, "true")
			}
			allowed = true
		}

		if r.Method != constants.MethodOPTIONS {
			next.ServeHTTP(w, r)
			return
		}

		if allowed {
			if len(c.AllowedMethods) > 0 {
				h.Set(constants.HeaderAccessControlAllowMethods, strings.Join(c.AllowedMethods, ", "))
			}

			requested := r.Header.Get(constants.HeaderAccessControlRequestHeaders)
			if c.reflectHeaders {
				h.Add(constants.HeaderVary, constants.HeaderAccessControlRequestHeaders)
			}
			switch {
			case c.reflectHeaders && requested != "":
				h.Set(constants.HeaderAccessControlAllowHeaders, requested)
			case len(c.AllowedHeaders) > 0:
				h.Set(constants.HeaderAccessControlAllowHeaders, strings.Join(c.AllowedHeaders, ", "))
			}

			if c.MaxAge > 0 {
				h.Set(constants.HeaderAccessControlMaxAge, strconv.Itoa(c.MaxAge))
			}
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
