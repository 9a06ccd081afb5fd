package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	HealthStatus    prometheus.Gauge
	Info            *prometheus.GaugeVec

	registry *prometheus.Registry
	handler  http.Handler
}

// NewMetrics creates the service metrics on a private registry, together
// with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status_code"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint", "status_code"},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_requests",
				Help: "Number of HTTP requests currently being served",
			},
		),
		HealthStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_health_status",
				Help: "Application health status (1 = accepting traffic, 0 = draining or stopped)",
			},
		),
		Info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "app_info",
				Help: "Service identity, always 1",
			},
			[]string{"service", "version"},
		),
		registry: prometheus.NewRegistry(),
	}

	for _, c := range []prometheus.Collector{
		m.RequestCount,
		m.RequestDuration,
		m.ResponseSize,
		m.ActiveRequests,
		m.HealthStatus,
		m.Info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m, nil
}

func (m *Metrics) RecordRequest(method, endpoint string, statusCode int, duration time.Duration, responseSize int64) {
	status := strconv.Itoa(statusCode)

	m.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, endpoint, status).Observe(float64(responseSize))
}

func (m *Metrics) SetHealthStatus(healthy bool) {
	if healthy {
		m.HealthStatus.Set(1)
	} else {
		m.HealthStatus.Set(0)
	}
}

// SetInfo publishes the service identity, replacing any previous one.
func (m *Metrics) SetInfo(service, version string) {
	m.Info.Reset()
	m.Info.WithLabelValues(service, version).Set(1)
}

func (m *Metrics) Handler() http.Handler {
	return m.handler
}
