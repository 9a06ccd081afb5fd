package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/msy-int/msy-api/internal/constants"
)

// RecoveryMiddleware turns handler panics into 500 responses
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := NewResponseWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let net/http abort the connection as it would without us.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Handler panic",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				if wrapped.WroteHeader() {
					return
				}
				wrapped.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
				wrapped.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(wrapped).Encode(map[string]string{
					"error": "internal server error",
					"code":  constants.ErrorCodeInternal,
				})
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
