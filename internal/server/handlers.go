package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/msy-int/msy-api/internal/constants"
	"github.com/msy-int/msy-api/internal/status"
)

type readiness struct {
	Status string `json:"status"`
}

// healthHandler reports liveness
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.reporter.GetHealth()

	w.Header().Set(constants.HeaderCacheControl, constants.CacheNoStore)
	s.writeJSON(w, r, http.StatusOK, health)

	s.logger.Debug("Health check completed",
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)
}

// welcomeHandler serves the service identity
func (s *Server) welcomeHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.reporter.GetWelcome())
}

// statusHandler serves the detailed report
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	report := s.reporter.GetReport()
	s.metrics.SetHealthStatus(report.Status == status.StatusOK)

	w.Header().Set(constants.HeaderCacheControl, constants.CacheNoStore)
	s.writeJSON(w, r, http.StatusOK, report)

	s.logger.Debug("Status report completed",
		zap.String("status", string(report.Status)),
		zap.Any("checks", report.Checks),
	)
}

// readinessHandler answers 503 once shutdown has begun
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ready := s.accepting.Load()

	if ready {
		s.writeJSON(w, r, http.StatusOK, readiness{Status: "ready"})
	} else {
		s.writeJSON(w, r, http.StatusServiceUnavailable, readiness{Status: "not ready"})
	}

	s.logger.Debug("Readiness check completed",
		zap.String("path", r.URL.Path),
		zap.Bool("ready", ready),
	)
}

// writeJSON serializes v before writing so an encoding failure can still
// become a 500
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to serialize response",
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		w.Header().Del(constants.HeaderCacheControl)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf)
}
