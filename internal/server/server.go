package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/msy-int/msy-api/internal/apidoc"
	"github.com/msy-int/msy-api/internal/config"
	"github.com/msy-int/msy-api/internal/constants"
	"github.com/msy-int/msy-api/internal/hotreload"
	"github.com/msy-int/msy-api/internal/observability"
	"github.com/msy-int/msy-api/internal/security"
	"github.com/msy-int/msy-api/internal/server/middleware"
	"github.com/msy-int/msy-api/internal/status"
)

type Server struct {
	config  *config.Config
	sources config.Sources
	clock   status.Clock

	reporter *status.Reporter
	doc      *apidoc.Document
	handler  http.Handler

	server        *http.Server
	metricsServer *http.Server
	hotReload     *hotreload.Manager
	accepting     atomic.Bool
	reloadOK      atomic.Bool
	started       chan struct{}
	addr          net.Addr
	metricsAddr   net.Addr
	mu            sync.RWMutex

	// Security
	rateLimiter *security.RateLimiter

	// Observability
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// Option customizes a Server
type Option func(*Server)

// WithLogger replaces the logger built from the logging configuration
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracer replaces the tracer built from the tracing configuration
func WithTracer(tracer *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithClock sets the clock used for timestamps and uptime
func WithClock(clock status.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithSources sets where hot reload re-reads the service section from.
// Without it only the configuration file is re-read.
func WithSources(src config.Sources) Option {
	return func(s *Server) {
		s.sources = src
	}
}

func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		config:  cfg,
		sources: config.Sources{ConfigFile: cfg.ConfigFile, BuildVersion: cfg.Service.Version},
		clock:   status.RealClock{},
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		logger, err := observability.NewLogger(cfg.Observability.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		s.logger = logger
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.SetInfo(cfg.Service.Name, cfg.Service.Version)
	s.metrics = metrics

	if s.tracer == nil {
		tracer, err := observability.NewTracer(cfg.Observability.Tracing, cfg.Service)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracer = tracer
	}

	reporter, err := status.NewReporter(cfg.Service.Manifest(), status.WithClock(s.clock))
	if err != nil {
		return nil, fmt.Errorf("invalid service manifest: %w", err)
	}
	reporter.RegisterCheck("accepting", s.accepting.Load)
	s.reporter = reporter

	doc, err := apidoc.Load(cfg.Service.Version)
	if err != nil {
		return nil, err
	}
	s.doc = doc

	s.rateLimiter = security.NewRateLimiter(cfg.Security.RateLimit, s.logger.Logger)

	handler, err := s.buildHandler()
	if err != nil {
		s.rateLimiter.Close()
		return nil, err
	}
	s.handler = handler

	s.accepting.Store(true)
	s.metrics.SetHealthStatus(true)

	return s, nil
}

// Handler returns the full HTTP handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Reporter returns the status reporter backing the routes
func (s *Server) Reporter() *status.Reporter {
	return s.reporter
}

// Started is closed once the listeners are bound
func (s *Server) Started() <-chan struct{} {
	return s.started
}

// Addr returns the bound address of the main listener, or nil before Run
// has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// MetricsAddr returns the bound address of the metrics listener, or nil
// when metrics are disabled or not yet bound.
func (s *Server) MetricsAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metricsAddr
}

func (s *Server) buildHandler() (http.Handler, error) {
	mux := http.NewServeMux()

	routes := []struct {
		path    string
		handler http.Handler
	}{
		{constants.PathHealth, http.HandlerFunc(s.healthHandler)},
		{constants.PathWelcome, http.HandlerFunc(s.welcomeHandler)},
		{constants.PathStatus, http.HandlerFunc(s.statusHandler)},
		{constants.PathReady, http.HandlerFunc(s.readinessHandler)},
		{constants.PathOpenAPI, s.doc.Handler()},
	}

	served := make([]apidoc.Route, 0, len(routes))
	for _, route := range routes {
		if !s.doc.HasOperation(http.MethodGet, route.path) {
			return nil, fmt.Errorf("route %s %s is not documented", http.MethodGet, route.path)
		}
		mux.Handle(http.MethodGet+" "+route.path, s.instrument(route.path, route.handler))
		served = append(served, apidoc.Route{Method: http.MethodGet, Path: route.path})
		s.logger.Debug("Registered route",
			zap.String("method", http.MethodGet),
			zap.String("path", route.path),
		)
	}

	if missing := unservedRoutes(s.doc.Routes(), served); len(missing) > 0 {
		return nil, fmt.Errorf("documented route %s %s is not served", missing[0].Method, missing[0].Path)
	}

	return s.applyMiddleware(mux), nil
}

// unservedRoutes returns the documented routes missing from served
func unservedRoutes(documented, served []apidoc.Route) []apidoc.Route {
	registered := make(map[apidoc.Route]struct{}, len(served))
	for _, route := range served {
		registered[route] = struct{}{}
	}

	var missing []apidoc.Route
	for _, route := range documented {
		if _, ok := registered[route]; !ok {
			missing = append(missing, route)
		}
	}
	return missing
}

// instrument records a span and request metrics for one route
func (s *Server) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.ActiveRequests.Inc()
		defer s.metrics.ActiveRequests.Dec()

		ctx, span := s.tracer.StartSpan(r.Context(), "handle_request",
			attribute.String("http.method", r.Method),
			attribute.String("http.route", endpoint),
			attribute.String("http.user_agent", r.UserAgent()),
		)
		defer span.End()

		rw := middleware.NewResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rw.StatusCode()))
		s.metrics.RecordRequest(r.Method, endpoint, rw.StatusCode(), time.Since(start), rw.BytesWritten())
	})
}

// Run binds the listeners, serves until ctx is done or a listener fails,
// then shuts down gracefully. Bind errors are returned before anything is
// served. Run may be called once.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.config

	ln, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address(), err)
	}

	var metricsLn net.Listener
	if cfg.Observability.Metrics.Enabled {
		metricsLn, err = net.Listen("tcp", cfg.Server.MetricsAddress())
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.Server.MetricsAddress(), err)
		}
	}

	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
		ErrorLog:          zap.NewStdLog(s.logger.Logger),
	}
	if cfg.TLS.Enabled {
		s.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if metricsLn != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(http.MethodGet+" "+cfg.Observability.Metrics.Path, s.metrics.Handler())
		s.metricsServer = &http.Server{
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if err := s.startHotReload(); err != nil {
		_ = ln.Close()
		if metricsLn != nil {
			_ = metricsLn.Close()
		}
		return err
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	if metricsLn != nil {
		s.metricsAddr = metricsLn.Addr()
	}
	s.mu.Unlock()

	port := cfg.Server.Port
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(tcpAddr.Port)
	}

	errCh := make(chan error, 2)

	go func() {
		var err error
		if cfg.TLS.Enabled {
			err = s.server.ServeTLS(ln, cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	if s.metricsServer != nil {
		s.logger.Info("Starting metrics server",
			zap.String("address", metricsLn.Addr().String()),
			zap.String("path", cfg.Observability.Metrics.Path),
		)
		go func() {
			if err := s.metricsServer.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	s.logger.Info("MSY API started",
		zap.String("port", port),
		zap.String("address", ln.Addr().String()),
		zap.String("service", cfg.Service.Name),
		zap.String("version", cfg.Service.Version),
		zap.Bool("tls", cfg.TLS.Enabled),
		zap.Strings("checks", s.reporter.CheckNames()),
	)
	close(s.started)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		s.logger.Error("Listener failed", zap.Error(serveErr))
	}

	return errors.Join(serveErr, s.shutdown())
}

// shutdown marks the server as draining and stops every component within
// the configured shutdown timeout
func (s *Server) shutdown() error {
	s.logger.Info("Shutting down server...")
	s.accepting.Store(false)
	s.metrics.SetHealthStatus(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	if s.metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("Shutting down metrics server...")
			if err := s.metricsServer.Shutdown(ctx); err != nil {
				s.logger.Error("Failed to shutdown metrics server", zap.Error(err))
				record(fmt.Errorf("metrics server shutdown: %w", err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("Shutting down main server...")
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shutdown main server", zap.Error(err))
			record(fmt.Errorf("main server shutdown: %w", err))
		}
	}()

	wg.Wait()

	if s.hotReload != nil {
		if err := s.hotReload.Shutdown(ctx); err != nil {
			record(fmt.Errorf("hot reload shutdown: %w", err))
		}
	}

	s.rateLimiter.Close()

	if err := s.tracer.Shutdown(ctx); err != nil {
		record(fmt.Errorf("tracer shutdown: %w", err))
	}

	s.logger.Info("Server stopped")
	return errors.Join(errs...)
}
